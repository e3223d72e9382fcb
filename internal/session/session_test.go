package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/models"
)

const (
	adminToken  = "admin-token"
	memberToken = "member-token"
)

// fakeBackend serves /auth/profile for two known tokens, 401 for anything else,
// and counts logout calls.
type fakeBackend struct {
	srv     *httptest.Server
	logouts atomic.Int32
	// profileDelay holds profile responses back to observe the Loading state.
	profileDelay time.Duration
}

func newFakeBackend(t *testing.T) (*fakeBackend, *backend.Client) {
	t.Helper()
	fb := &fakeBackend{}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		switch r.URL.Path {
		case "/auth/profile":
			if fb.profileDelay > 0 {
				time.Sleep(fb.profileDelay)
			}
			switch token {
			case adminToken:
				_, _ = w.Write([]byte(`{"id":"u1","email":"ana@example.org","fullName":"Ana","role":"admin"}`))
			case memberToken:
				_, _ = w.Write([]byte(`{"id":"u2","email":"bo@example.org","fullName":"Bo","role":"member"}`))
			default:
				w.WriteHeader(http.StatusUnauthorized)
			}
		case "/auth/logout":
			fb.logouts.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		case "/projects":
			if token == memberToken || token == adminToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fb.srv.Close)

	client, err := backend.New(backend.Options{BaseURL: fb.srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return fb, client
}

// ---------------------------------------------------------------------------
// Boot
// ---------------------------------------------------------------------------

func TestStore_BootWithoutPersistedTokenIsAnonymous(t *testing.T) {
	_, client := newFakeBackend(t)
	store := NewStore(NewID(), client, NewMemoryPersistence())

	assert.Equal(t, StateUninitialized, store.State())
	assert.True(t, store.Loading())

	store.Boot(context.Background())

	assert.False(t, store.Loading())
	assert.Equal(t, StateAnonymous, store.State())
	assert.Nil(t, store.User())
}

func TestStore_BootRehydratesPersistedToken(t *testing.T) {
	_, client := newFakeBackend(t)
	persist := NewMemoryPersistence()
	sid := NewID()
	require.NoError(t, persist.Save(context.Background(), sid, adminToken, nil))

	store := NewStore(sid, client, persist)
	store.Boot(context.Background())

	assert.Equal(t, StateAuthenticated, store.State())
	assert.True(t, store.IsAdmin())
	snap, _ := persist.Load(context.Background(), sid)
	require.NotNil(t, snap.User)
	assert.Equal(t, "Ana", snap.User.FullName)
}

func TestStore_BootWithRejectedTokenClearsBothKeys(t *testing.T) {
	_, client := newFakeBackend(t)
	persist := NewMemoryPersistence()
	sid := NewID()
	require.NoError(t, persist.Save(context.Background(), sid, "expired", &models.User{ID: "old"}))

	store := NewStore(sid, client, persist)
	store.Boot(context.Background())

	assert.Equal(t, StateAnonymous, store.State())
	snap, _ := persist.Load(context.Background(), sid)
	assert.True(t, snap.Empty())
	assert.Nil(t, snap.User)
}

func TestStore_LoadingLeftExactlyOnce(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.profileDelay = 100 * time.Millisecond
	persist := NewMemoryPersistence()
	sid := NewID()
	require.NoError(t, persist.Save(context.Background(), sid, memberToken, nil))

	store := NewStore(sid, client, persist)
	store.Start(context.Background(), time.Second)
	store.Start(context.Background(), time.Second)

	assert.True(t, store.Loading())
	assert.Equal(t, StateLoading, store.State())
	require.True(t, store.WaitReady(context.Background(), 2*time.Second))
	assert.False(t, store.Loading())
	assert.Equal(t, StateAuthenticated, store.State())

	// Later identity changes never re-enter Loading.
	store.SignOut(context.Background())
	assert.False(t, store.Loading())
	assert.Equal(t, StateAnonymous, store.State())
	store.Boot(context.Background())
	assert.Equal(t, StateAnonymous, store.State())
}

func TestStore_WaitReadyTimesOut(t *testing.T) {
	fb, client := newFakeBackend(t)
	fb.profileDelay = 300 * time.Millisecond
	persist := NewMemoryPersistence()
	sid := NewID()
	require.NoError(t, persist.Save(context.Background(), sid, memberToken, nil))

	store := NewStore(sid, client, persist)
	store.Start(context.Background(), time.Second)
	assert.False(t, store.WaitReady(context.Background(), 10*time.Millisecond))
	assert.True(t, store.WaitReady(context.Background(), 2*time.Second))
}

// ---------------------------------------------------------------------------
// CompleteAuth / SignOut / Evict
// ---------------------------------------------------------------------------

func TestStore_CompleteAuth(t *testing.T) {
	_, client := newFakeBackend(t)
	persist := NewMemoryPersistence()
	store := NewStore(NewID(), client, persist)

	store.CompleteAuth(context.Background(), memberToken)

	assert.Equal(t, StateAuthenticated, store.State())
	assert.False(t, store.IsAdmin())
	assert.Equal(t, "Bo", store.User().FullName)
	assert.Equal(t, memberToken, store.Token())
	assert.False(t, store.Loading())

	snap, _ := persist.Load(context.Background(), store.ID())
	assert.Equal(t, memberToken, snap.Token)
	require.NotNil(t, snap.User)
}

func TestStore_CompleteAuthFailureLeavesAnonymous(t *testing.T) {
	_, client := newFakeBackend(t)
	persist := NewMemoryPersistence()
	store := NewStore(NewID(), client, persist)
	store.Boot(context.Background())

	store.CompleteAuth(context.Background(), "bogus")

	assert.Equal(t, StateAnonymous, store.State())
	assert.Empty(t, store.Token())
	assert.Equal(t, 0, persist.Len())
}

func TestStore_SignOutIsUnconditional(t *testing.T) {
	fb, client := newFakeBackend(t)
	persist := NewMemoryPersistence()
	store := NewStore(NewID(), client, persist)
	store.CompleteAuth(context.Background(), adminToken)
	require.True(t, store.IsAdmin())

	// The fake backend answers logout with a 500.
	store.SignOut(context.Background())

	assert.Equal(t, int32(1), fb.logouts.Load())
	assert.Equal(t, StateAnonymous, store.State())
	assert.Nil(t, store.User())
	assert.False(t, store.IsAdmin())
	assert.Equal(t, 0, persist.Len())
}

func TestStore_UnauthorizedCallEvictsAndNextCallIsAnonymous(t *testing.T) {
	_, client := newFakeBackend(t)
	persist := NewMemoryPersistence()
	store := NewStore(NewID(), client, persist)
	store.CompleteAuth(context.Background(), memberToken)

	projects := backend.NewResource[models.Project](store.Backend(), backend.Projects)
	_, err := projects.List(context.Background())
	require.ErrorIs(t, err, backend.ErrAuthExpired)

	assert.Equal(t, StateAnonymous, store.State())
	assert.Equal(t, 0, persist.Len())

	// The fake backend serves anonymous callers, proving no Authorization header was sent.
	items, err := projects.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_StaleUnauthorizedIsIgnored(t *testing.T) {
	_, client := newFakeBackend(t)
	store := NewStore(NewID(), client, NewMemoryPersistence())
	store.CompleteAuth(context.Background(), adminToken)

	store.Unauthorized(context.Background(), "some-older-token")
	assert.Equal(t, StateAuthenticated, store.State())

	store.Unauthorized(context.Background(), adminToken)
	assert.Equal(t, StateAnonymous, store.State())
}

func TestStore_IsAdminImpliesUser(t *testing.T) {
	_, client := newFakeBackend(t)
	for _, token := range []string{"", adminToken, memberToken, "bogus"} {
		store := NewStore(NewID(), client, NewMemoryPersistence())
		if token != "" {
			store.CompleteAuth(context.Background(), token)
		} else {
			store.Boot(context.Background())
		}
		if store.IsAdmin() {
			assert.NotNil(t, store.User(), "token %q", token)
		}
	}
}

func TestStore_OAuthState(t *testing.T) {
	store := NewStore(NewID(), nil, NewMemoryPersistence())
	assert.False(t, store.ConsumeOAuthState(""))

	store.SetOAuthState("abc")
	assert.False(t, store.ConsumeOAuthState("xyz"))
	assert.False(t, store.ConsumeOAuthState("abc"), "a mismatch forgets the pending state")

	store.SetOAuthState("abc")
	assert.True(t, store.ConsumeOAuthState("abc"))
	assert.False(t, store.ConsumeOAuthState("abc"))
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistry_GetCreatesOnePerID(t *testing.T) {
	_, client := newFakeBackend(t)
	reg := NewRegistry(client, NewMemoryPersistence(), RegistryOptions{})

	a := reg.Get(context.Background(), "a")
	b := reg.Get(context.Background(), "b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, reg.Get(context.Background(), "a"))
	assert.Equal(t, 2, reg.Len())

	reg.Remove("a")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_SweepRemovesIdleStores(t *testing.T) {
	_, client := newFakeBackend(t)
	persist := NewMemoryPersistence()
	reg := NewRegistry(client, persist, RegistryOptions{ClearOnSweep: true})

	old := reg.Get(context.Background(), NewID())
	old.CompleteAuth(context.Background(), memberToken)
	require.True(t, old.WaitReady(context.Background(), time.Second))
	old.Touch(time.Now().Add(-2 * time.Hour))

	fresh := reg.Get(context.Background(), NewID())
	require.True(t, fresh.WaitReady(context.Background(), time.Second))

	removed := reg.Sweep(context.Background(), time.Now().Add(-time.Hour))

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 0, persist.Len())
}
