// Package safego provides panic-recovering goroutine launchers for background work
// and request-scoped fan-out.
package safego

import (
	"log/slog"
	"sync"
)

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged rather than crashing the process. This should be used for all
// fire-and-forget goroutines (background jobs, session sweeps, etc.)
// where an unrecovered panic would silently kill the goroutine forever.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}

// Group runs a set of independent tasks and waits for all of them. Unlike
// errgroup it never cancels siblings: one failing or panicking task leaves the
// others running, and Wait returns only after every task has finished.
type Group struct {
	wg sync.WaitGroup
}

// Go runs fn in the group. A panic in fn is recovered and logged under name.
func (g *Group) Go(name string, fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in grouped goroutine", "task", name, "panic", r)
			}
		}()
		fn()
	}()
}

// Wait blocks until every task started with Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
