// Package session holds the per-browser authentication state of the portal: who is
// signed in, with which role, and the bearer token used for backend calls.
//
// Every browser session owns one *Store. A Store starts Uninitialized, moves to
// Loading when it boots, and settles on Authenticated or Anonymous. Loading is
// left exactly once. Afterwards the only transitions are
//
//	Anonymous     → Authenticated  (CompleteAuth with a token the backend accepts)
//	Authenticated → Anonymous      (SignOut, or any 401 from a backend call)
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/models"
	"github.com/research-portal/research-portal/internal/safego"
	"github.com/research-portal/research-portal/internal/telemetry"
)

// State is the lifecycle position of a Store.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// Eviction reasons, used as metric labels.
const (
	ReasonUnauthorized  = "unauthorized"
	ReasonProfileFailed = "profile_failed"
	ReasonSignOut       = "sign_out"
)

// Store is the session of one browser. All methods are safe for concurrent use.
type Store struct {
	id      string
	client  *backend.Client
	persist Persistence

	mu    sync.RWMutex
	state State
	token string
	user  *models.User
	// gen increments on every identity change so a boot that resolves late
	// cannot overwrite a newer sign-in or sign-out.
	gen        uint64
	oauthState string

	bootOnce  sync.Once
	readyOnce sync.Once
	ready     chan struct{}

	seenMu   sync.Mutex
	lastSeen time.Time
}

// NewStore creates an Uninitialized store for session id sid.
func NewStore(sid string, client *backend.Client, persist Persistence) *Store {
	return &Store{
		id:       sid,
		client:   client,
		persist:  persist,
		ready:    make(chan struct{}),
		lastSeen: time.Now(),
	}
}

// ID returns the session id.
func (s *Store) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading is true from construction until boot has resolved.
func (s *Store) Loading() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

// Ready is closed once boot has resolved.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// User returns a copy of the signed-in profile, or nil.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAdmin reports whether a user is signed in and carries the admin role.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin()
}

// Token implements backend.Credentials.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Unauthorized implements backend.Credentials: a 401 for the current token
// returns the session to anonymous. Rejections of an older token are ignored.
func (s *Store) Unauthorized(ctx context.Context, token string) {
	if token == "" || token != s.Token() {
		return
	}
	s.Evict(ctx, ReasonUnauthorized)
}

// Backend returns a backend caller bound to this session's credentials.
func (s *Store) Backend() *backend.Caller {
	return s.client.With(s)
}

// Start boots the store in the background the first time it is called.
func (s *Store) Start(ctx context.Context, timeout time.Duration) {
	s.bootOnce.Do(func() {
		s.mu.Lock()
		s.state = StateLoading
		s.mu.Unlock()

		bootCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		safego.Go(func() {
			defer cancel()
			defer s.markReady()
			s.boot(bootCtx)
		})
	})
}

// Boot resolves the store synchronously: it rehydrates a persisted token through
// CompleteAuth, or settles on Anonymous when nothing is persisted.
func (s *Store) Boot(ctx context.Context) {
	s.bootOnce.Do(func() {
		s.mu.Lock()
		s.state = StateLoading
		s.mu.Unlock()
		defer s.markReady()
		s.boot(ctx)
	})
}

func (s *Store) boot(ctx context.Context) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	snap, err := s.persist.Load(ctx, s.id)
	if err != nil {
		slog.WarnContext(ctx, "session: load persisted state failed", "error", err)
	}
	if snap.Empty() {
		s.mu.Lock()
		if s.gen == gen && s.state == StateLoading {
			s.state = StateAnonymous
		}
		s.mu.Unlock()
		return
	}
	s.completeAuth(ctx, snap.Token, gen)
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateLoading || s.state == StateUninitialized {
			s.state = StateAnonymous
		}
		s.mu.Unlock()
		close(s.ready)
	})
}

// WaitReady blocks until boot resolves, ctx ends or timeout elapses, and
// reports whether boot resolved.
func (s *Store) WaitReady(ctx context.Context, timeout time.Duration) bool {
	if !s.Loading() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.ready:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// CompleteAuth adopts token if the backend returns a profile for it. On success
// both persisted keys are written; on failure both are cleared and the session is
// anonymous. The outcome is observable through State and User.
func (s *Store) CompleteAuth(ctx context.Context, token string) {
	// An explicit sign-in supersedes rehydration; a boot already running is
	// invalidated by the generation bump below.
	s.bootOnce.Do(func() {})

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.completeAuth(ctx, token, gen)
	s.markReady()
}

func (s *Store) completeAuth(ctx context.Context, token string, gen uint64) {
	user, err := s.client.With(backend.StaticToken(token)).Profile(ctx)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		slog.DebugContext(ctx, "session: discarding stale authentication result", "session", s.id)
		return
	}
	if err != nil {
		s.token, s.user = "", nil
		s.state = StateAnonymous
		s.mu.Unlock()

		telemetry.SessionSignInsTotal.WithLabelValues("failed").Inc()
		telemetry.SessionEvictionsTotal.WithLabelValues(ReasonProfileFailed).Inc()
		slog.WarnContext(ctx, "session: profile fetch failed, clearing session", "session", s.id, "error", err)
		if err := s.persist.Clear(ctx, s.id); err != nil {
			slog.WarnContext(ctx, "session: clear persisted state failed", "error", err)
		}
		return
	}
	s.token, s.user = token, user
	s.state = StateAuthenticated
	s.mu.Unlock()

	telemetry.SessionSignInsTotal.WithLabelValues(string(user.Role)).Inc()
	slog.InfoContext(ctx, "session: authenticated", "session", s.id, "user_id", user.ID, "role", user.Role)
	if err := s.persist.Save(ctx, s.id, token, user); err != nil {
		slog.WarnContext(ctx, "session: persist state failed", "error", err)
	}
}

// SignOut notifies the backend (best effort) and unconditionally clears the session.
func (s *Store) SignOut(ctx context.Context) {
	token := s.Token()
	if token != "" {
		if err := s.client.With(backend.StaticToken(token)).Logout(ctx); err != nil {
			slog.WarnContext(ctx, "session: backend logout failed", "session", s.id, "error", err)
		}
	}
	s.Evict(ctx, ReasonSignOut)
}

// Evict returns the session to anonymous and clears both persisted keys.
func (s *Store) Evict(ctx context.Context, reason string) {
	s.mu.Lock()
	s.gen++
	hadUser := s.user != nil || s.token != ""
	s.token, s.user = "", nil
	if s.state != StateLoading && s.state != StateUninitialized {
		s.state = StateAnonymous
	}
	s.mu.Unlock()

	if hadUser {
		telemetry.SessionEvictionsTotal.WithLabelValues(reason).Inc()
		slog.InfoContext(ctx, "session: evicted", "session", s.id, "reason", reason)
	}
	if err := s.persist.Clear(ctx, s.id); err != nil {
		slog.WarnContext(ctx, "session: clear persisted state failed", "error", err)
	}
}

// SetOAuthState remembers the state parameter of a login in flight.
func (s *Store) SetOAuthState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthState = state
}

// ConsumeOAuthState reports whether state matches the login in flight and forgets it.
func (s *Store) ConsumeOAuthState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := state != "" && s.oauthState == state
	s.oauthState = ""
	return ok
}

// Touch records activity at now.
func (s *Store) Touch(now time.Time) {
	s.seenMu.Lock()
	s.lastSeen = now
	s.seenMu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (s *Store) LastSeen() time.Time {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return s.lastSeen
}
