package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/backend/backendtest"
	"github.com/research-portal/research-portal/internal/models"
	"github.com/research-portal/research-portal/internal/session"
)

const testCookie = "rp_session"

type sessionFixture struct {
	codec    *session.CookieCodec
	registry *session.Registry
	persist  *session.MemoryPersistence
	router   *gin.Engine
}

func newSessionFixture(t *testing.T, routes func(r *gin.Engine)) *sessionFixture {
	t.Helper()
	srv := backendtest.New(t)
	client, err := backend.New(backend.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	codec, err := session.NewCookieCodec("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	f := &sessionFixture{
		codec:   codec,
		persist: session.NewMemoryPersistence(),
	}
	f.registry = session.NewRegistry(client, f.persist, session.RegistryOptions{BootTimeout: 2 * time.Second})
	f.router = gin.New()
	f.router.Use(SessionMiddleware(codec, f.registry, SessionOptions{CookieName: testCookie, BootWait: 2 * time.Second}))
	routes(f.router)
	return f
}

// signedCookie returns a cookie for a session whose persisted token is token.
func (f *sessionFixture) signedCookie(t *testing.T, token string, user *models.User) *http.Cookie {
	t.Helper()
	sid := session.NewID()
	if token != "" {
		require.NoError(t, f.persist.Save(context.Background(), sid, token, user))
	}
	value, err := f.codec.Issue(sid)
	require.NoError(t, err)
	return &http.Cookie{Name: testCookie, Value: value}
}

func (f *sessionFixture) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func whoAmI(r *gin.Engine) {
	r.GET("/whoami", func(c *gin.Context) {
		store := SessionFrom(c)
		if store == nil {
			c.String(http.StatusInternalServerError, "no store")
			return
		}
		name := "anonymous"
		if u := store.User(); u != nil {
			name = u.Email
		}
		c.String(http.StatusOK, name)
	})
}

// ---------------------------------------------------------------------------
// SessionMiddleware
// ---------------------------------------------------------------------------

func TestSessionMiddleware_IssuesCookieForNewVisitor(t *testing.T) {
	f := newSessionFixture(t, whoAmI)

	w := f.get("/whoami", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	_, err := f.codec.Parse(cookies[0].Value)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.registry.Len())
}

func TestSessionMiddleware_ReusesValidCookie(t *testing.T) {
	f := newSessionFixture(t, whoAmI)
	cookie := f.signedCookie(t, "", nil)

	w := f.get("/whoami", cookie)
	assert.Empty(t, w.Result().Cookies())
	f.get("/whoami", cookie)
	assert.Equal(t, 1, f.registry.Len())
}

func TestSessionMiddleware_ReplacesForgedCookie(t *testing.T) {
	f := newSessionFixture(t, whoAmI)

	w := f.get("/whoami", &http.Cookie{Name: testCookie, Value: "forged.value.here"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestSessionMiddleware_RehydratesPersistedToken(t *testing.T) {
	f := newSessionFixture(t, whoAmI)
	cookie := f.signedCookie(t, backendtest.AdminToken, &backendtest.AdminUser)

	w := f.get("/whoami", cookie)
	assert.Equal(t, backendtest.AdminUser.Email, w.Body.String())
}

// ---------------------------------------------------------------------------
// RequireSession
// ---------------------------------------------------------------------------

func guarded(requireAdmin bool) func(r *gin.Engine) {
	return func(r *gin.Engine) {
		r.GET("/admin", RequireSession(requireAdmin, nil), func(c *gin.Context) {
			c.String(http.StatusOK, "secret")
		})
	}
}

func TestRequireSession_RedirectsAnonymous(t *testing.T) {
	f := newSessionFixture(t, guarded(false))

	w := f.get("/admin", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestRequireAdmin_RedirectsMember(t *testing.T) {
	f := newSessionFixture(t, guarded(true))

	w := f.get("/admin", f.signedCookie(t, backendtest.MemberToken, &backendtest.MemberUser))
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	f := newSessionFixture(t, guarded(true))

	w := f.get("/admin", f.signedCookie(t, backendtest.AdminToken, &backendtest.AdminUser))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret", w.Body.String())
}

func TestRequireSession_WaitsWhileLoading(t *testing.T) {
	for _, requireAdmin := range []bool{false, true} {
		r := gin.New()
		r.GET("/admin", func(c *gin.Context) {
			// A store that was never booted is still loading.
			c.Set(SessionStoreKey, session.NewStore(session.NewID(), nil, session.NewMemoryPersistence()))
		}, RequireSession(requireAdmin, nil), func(c *gin.Context) {
			c.String(http.StatusOK, "secret")
		})

		w := serve(r, http.MethodGet, "/admin")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
		assert.NotContains(t, w.Body.String(), "secret")
		assert.Contains(t, w.Body.String(), `http-equiv="refresh"`)
	}
}

func TestRequireSession_NoStoreRedirects(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireSession(false, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/admin")
	assert.Equal(t, http.StatusFound, w.Code)
}
