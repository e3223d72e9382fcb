// session_sweeper.go implements the SessionSweeper background job, which
// periodically drops session stores that have not served a request within the
// idle window. With volatile persistence the swept sessions' tokens go too, so
// memory stays bounded; with Redis the persisted state outlives the sweep and a
// returning browser is rehydrated on its next request.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/research-portal/research-portal/internal/telemetry"
)

// Sweeper is the part of the session registry the job drives.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) int
}

// SessionSweeper periodically removes idle sessions.
type SessionSweeper struct {
	registry Sweeper
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewSessionSweeper creates a sweeper. Non-positive durations fall back to a
// 30 minute idle window checked every 5 minutes.
func NewSessionSweeper(registry Sweeper, idleTTL, interval time.Duration) *SessionSweeper {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		registry: registry,
		idleTTL:  idleTTL,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("session sweeper started", "interval", s.interval, "idle_ttl", s.idleTTL)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			slog.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("session sweeper context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit. It is safe to call more than once.
func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunOnce performs a single sweep and returns how many sessions were removed.
func (s *SessionSweeper) RunOnce(ctx context.Context) int {
	removed := s.registry.Sweep(ctx, s.now().Add(-s.idleTTL))
	if removed > 0 {
		telemetry.SessionsSweptTotal.Add(float64(removed))
		slog.DebugContext(ctx, "swept idle sessions", "count", removed)
	}
	return removed
}
