// Package events carries in-process commands between admin components. Delivery
// is synchronous and typed: a publisher hands a value to every subscriber of that
// exact type before Publish returns, so no timers or retries are involved.
package events

import (
	"reflect"
	"slices"
	"sync"
)

// Section names one admin manager tab.
type Section string

const (
	SectionOverview      Section = "overview"
	SectionTeam          Section = "team"
	SectionProjects      Section = "projects"
	SectionAnnouncements Section = "announcements"
	SectionEvents        Section = "events"
)

// Sections lists the manager tabs in display order.
var Sections = []Section{SectionTeam, SectionProjects, SectionAnnouncements, SectionEvents}

// ParseSection returns the section named s, or SectionOverview for anything unknown.
func ParseSection(s string) Section {
	sec := Section(s)
	if slices.Contains(Sections, sec) {
		return sec
	}
	return SectionOverview
}

// Intent is what an admin action asks for.
type Intent string

// IntentAdd opens the add form of the target section.
const IntentAdd Intent = "add"

// AdminAction is published by dashboard quick actions.
type AdminAction struct {
	Section Section
	Intent  Intent
}

// OpenAddForm tells the manager of Section to open its add form.
type OpenAddForm struct {
	Section Section
}

type subscriber struct {
	id int
	fn func(any)
}

// Dispatcher routes published values to subscribers by type.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID int
	subs   map[reflect.Type][]subscriber
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[reflect.Type][]subscriber)}
}

// Subscribe registers fn for values of type E and returns a function that removes it.
func Subscribe[E any](d *Dispatcher, fn func(E)) (unsubscribe func()) {
	t := reflect.TypeFor[E]()

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs[t] = append(d.subs[t], subscriber{id: id, fn: func(v any) { fn(v.(E)) }})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.subs[t] = slices.DeleteFunc(d.subs[t], func(s subscriber) bool { return s.id == id })
	}
}

// Publish delivers e to every subscriber of type E, in subscription order, and
// returns how many received it.
func Publish[E any](d *Dispatcher, e E) int {
	d.mu.RLock()
	subs := slices.Clone(d.subs[reflect.TypeFor[E]()])
	d.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
	return len(subs)
}

// ForwardAdminActions turns add-intent AdminActions into OpenAddForm commands.
func ForwardAdminActions(d *Dispatcher) (unsubscribe func()) {
	return Subscribe(d, func(a AdminAction) {
		if a.Intent == IntentAdd && a.Section != SectionOverview {
			Publish(d, OpenAddForm{Section: a.Section})
		}
	})
}
