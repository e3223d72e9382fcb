package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/session"
)

// gin.Context keys set by SessionMiddleware.
const (
	SessionIDKey    = "session_id"
	SessionStoreKey = "session_store"
	UserKey         = "user"
)

// SessionOptions configures SessionMiddleware.
type SessionOptions struct {
	CookieName string
	// Secure marks the cookie Secure; set it when served over TLS.
	Secure bool
	// BootWait is how long a request waits for a booting store before the guard
	// sees it as loading.
	BootWait time.Duration
}

// SessionMiddleware binds each browser to its session store. A missing, expired
// or forged cookie gets a fresh session id. The store is left on the gin context
// under SessionStoreKey and the user, when signed in, under UserKey.
func SessionMiddleware(codec *session.CookieCodec, registry *session.Registry, opts SessionOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		sid := ""
		if raw, err := c.Cookie(opts.CookieName); err == nil && raw != "" {
			if parsed, err := codec.Parse(raw); err == nil {
				sid = parsed
			} else {
				slog.DebugContext(ctx, "discarding invalid session cookie", "error", err)
			}
		}
		if sid == "" {
			sid = session.NewID()
			value, err := codec.Issue(sid)
			if err != nil {
				slog.ErrorContext(ctx, "failed to issue session cookie", "error", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(opts.CookieName, value, int(codec.MaxAge().Seconds()), "/", "", opts.Secure, true)
		}

		store := registry.Get(ctx, sid)
		store.Touch(time.Now())
		if opts.BootWait > 0 {
			store.WaitReady(ctx, opts.BootWait)
		}

		c.Set(SessionIDKey, sid)
		c.Set(SessionStoreKey, store)
		if user := store.User(); user != nil {
			c.Set(UserKey, user)
		}

		c.Next()
	}
}

// SessionFrom returns the store bound by SessionMiddleware, or nil.
func SessionFrom(c *gin.Context) *session.Store {
	v, ok := c.Get(SessionStoreKey)
	if !ok {
		return nil
	}
	store, _ := v.(*session.Store)
	return store
}
