package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/telemetry"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// BootTimeout bounds the background rehydration of a new store.
	BootTimeout time.Duration
	// ClearOnSweep also drops the persisted state of swept sessions. Set it for
	// volatile persistence so memory does not grow without bound.
	ClearOnSweep bool
}

// Registry maps session ids to stores. A store is never shared between ids.
type Registry struct {
	client  *backend.Client
	persist Persistence
	opts    RegistryOptions

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry(client *backend.Client, persist Persistence, opts RegistryOptions) *Registry {
	if opts.BootTimeout <= 0 {
		opts.BootTimeout = 10 * time.Second
	}
	return &Registry{
		client:  client,
		persist: persist,
		opts:    opts,
		stores:  make(map[string]*Store),
	}
}

// Get returns the store for sid, creating and booting it on first use.
func (r *Registry) Get(ctx context.Context, sid string) *Store {
	r.mu.Lock()
	store, ok := r.stores[sid]
	if !ok {
		store = NewStore(sid, r.client, r.persist)
		r.stores[sid] = store
		telemetry.ActiveSessions.Set(float64(len(r.stores)))
	}
	r.mu.Unlock()

	store.Start(ctx, r.opts.BootTimeout)
	return store
}

// Remove forgets sid. Persisted state is kept.
func (r *Registry) Remove(sid string) {
	r.mu.Lock()
	delete(r.stores, sid)
	telemetry.ActiveSessions.Set(float64(len(r.stores)))
	r.mu.Unlock()
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Sweep removes stores not seen since before cutoff and returns how many went.
func (r *Registry) Sweep(ctx context.Context, cutoff time.Time) int {
	r.mu.Lock()
	var idle []string
	for sid, store := range r.stores {
		if store.LastSeen().Before(cutoff) && !store.Loading() {
			idle = append(idle, sid)
			delete(r.stores, sid)
		}
	}
	telemetry.ActiveSessions.Set(float64(len(r.stores)))
	r.mu.Unlock()

	if r.opts.ClearOnSweep {
		for _, sid := range idle {
			if err := r.persist.Clear(ctx, sid); err != nil {
				slog.WarnContext(ctx, "session: clear swept session failed", "session", sid, "error", err)
			}
		}
	}
	return len(idle)
}
