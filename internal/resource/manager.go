// Package resource implements the list, filter and form workflow shared by every
// admin manager. One generic Manager serves team members, projects, announcements
// and events; a Spec supplies what differs between them.
package resource

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/events"
	"github.com/research-portal/research-portal/internal/models"
)

// ErrConfirmationRequired is returned by Delete when the user has not confirmed.
var ErrConfirmationRequired = errors.New("delete requires confirmation")

// NoticeLoadFailed marks a list that could not be fetched and is shown empty.
const NoticeLoadFailed = "load_failed"

// Spec describes one managed entity type.
type Spec[T models.Entity] struct {
	Section events.Section
	// Resource is the backend collection name.
	Resource string
	// SearchText returns the fields matched by the free-text query.
	SearchText func(T) []string
	// Facet returns the value matched by the facet selector. Nil disables facets.
	Facet func(T) string
	// FacetValues lists the selectable facet values in display order.
	FacetValues []string
	// Validate runs before any write. Its message is shown inline.
	Validate func(T) error
	// NewDraft returns the value of an empty add form.
	NewDraft func(now time.Time) T
}

// Mode is the state of a manager's form.
type Mode int

const (
	ModeClosed Mode = iota
	ModeAdd
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeEdit:
		return "edit"
	default:
		return "closed"
	}
}

// FormState is the add/edit form of a manager.
type FormState[T any] struct {
	Mode      Mode
	EditingID string
	Draft     T
	// Err is the classified failure of the last write, if it failed.
	Err error
}

// Open reports whether the form is shown.
func (f FormState[T]) Open() bool {
	return f.Mode != ModeClosed
}

// ListResult is a fetched collection, newest first.
type ListResult[T any] struct {
	Items []T
	// Notice is NoticeLoadFailed when the fetch failed; Items is then empty.
	Notice string
	Err    error
}

// Manager runs the workflow for one entity type on behalf of one session.
type Manager[T models.Entity] struct {
	spec Spec[T]
	api  *backend.Resource[T]
	now  func() time.Time

	list ListResult[T]
	form FormState[T]

	// AfterCreate runs after a successful create, before the refetch. It is a
	// secondary effect: it must not fail the create.
	AfterCreate func(ctx context.Context, created T)
}

// NewManager creates a manager over api.
func NewManager[T models.Entity](spec Spec[T], api *backend.Resource[T]) *Manager[T] {
	return &Manager[T]{spec: spec, api: api, now: time.Now}
}

// Spec returns the manager's spec.
func (m *Manager[T]) Spec() Spec[T] {
	return m.spec
}

// Subscribe makes the manager open its add form whenever an OpenAddForm for its
// section is published, including before the first List.
func (m *Manager[T]) Subscribe(d *events.Dispatcher) (unsubscribe func()) {
	return events.Subscribe(d, func(e events.OpenAddForm) {
		if e.Section == m.spec.Section {
			m.OpenAdd()
		}
	})
}

// List fetches the full collection. A failed fetch yields an empty list with a
// notice rather than an error.
func (m *Manager[T]) List(ctx context.Context) ListResult[T] {
	items, err := m.api.List(ctx)
	if err != nil {
		m.list = ListResult[T]{Items: []T{}, Notice: NoticeLoadFailed, Err: err}
		return m.list
	}
	SortNewestFirst(items)
	m.list = ListResult[T]{Items: items}
	return m.list
}

// Items returns the last fetched collection.
func (m *Manager[T]) Items() []T {
	return m.list.Items
}

// Result returns the last List outcome.
func (m *Manager[T]) Result() ListResult[T] {
	return m.list
}

// Form returns the current form state.
func (m *Manager[T]) Form() FormState[T] {
	return m.form
}

// OpenAdd shows an empty add form.
func (m *Manager[T]) OpenAdd() {
	var draft T
	if m.spec.NewDraft != nil {
		draft = m.spec.NewDraft(m.now())
	}
	m.form = FormState[T]{Mode: ModeAdd, Draft: draft}
}

// OpenEdit shows the edit form for id, taken from the loaded list or fetched.
func (m *Manager[T]) OpenEdit(ctx context.Context, id string) error {
	for _, item := range m.list.Items {
		if item.GetID() == id {
			m.form = FormState[T]{Mode: ModeEdit, EditingID: id, Draft: item}
			return nil
		}
	}
	item, err := m.api.Get(ctx, id)
	if err != nil {
		return err
	}
	m.form = FormState[T]{Mode: ModeEdit, EditingID: id, Draft: item}
	return nil
}

// CloseForm hides the form and drops the draft.
func (m *Manager[T]) CloseForm() {
	m.form = FormState[T]{}
}

func (m *Manager[T]) validate(draft T) error {
	if m.spec.Validate == nil {
		return nil
	}
	if err := m.spec.Validate(draft); err != nil {
		return backend.Rejected(err.Error())
	}
	return nil
}

// ShowError reopens the form in mode with draft and err, for drafts rejected
// before they reach the manager.
func (m *Manager[T]) ShowError(mode Mode, id string, draft T, err error) {
	m.fail(mode, id, draft, err)
}

// fail keeps the form open with draft and the classified error.
func (m *Manager[T]) fail(mode Mode, id string, draft T, err error) error {
	m.form = FormState[T]{Mode: mode, EditingID: id, Draft: draft, Err: err}
	return err
}

// Create validates draft, issues exactly one create and, on success, refetches
// the collection and closes the form.
func (m *Manager[T]) Create(ctx context.Context, draft T) error {
	if err := m.validate(draft); err != nil {
		return m.fail(ModeAdd, "", draft, err)
	}
	created, err := m.api.Create(ctx, draft)
	if err != nil {
		return m.fail(ModeAdd, "", draft, err)
	}
	if m.AfterCreate != nil {
		m.AfterCreate(ctx, created)
	}
	m.CloseForm()
	m.List(ctx)
	return nil
}

// Update validates draft, patches the record id and refetches on success.
func (m *Manager[T]) Update(ctx context.Context, id string, draft T) error {
	if err := m.validate(draft); err != nil {
		return m.fail(ModeEdit, id, draft, err)
	}
	if _, err := m.api.Update(ctx, id, draft); err != nil {
		return m.fail(ModeEdit, id, draft, err)
	}
	m.CloseForm()
	m.List(ctx)
	return nil
}

// Delete removes id after explicit confirmation. Without it no request is made.
func (m *Manager[T]) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := m.api.Delete(ctx, id); err != nil {
		slog.WarnContext(ctx, "delete failed", "resource", m.spec.Resource, "id", id, "error", err)
		return err
	}
	m.List(ctx)
	return nil
}

// SortNewestFirst orders items by creation time, newest first. Items without a
// creation time sort last; ties keep their input order.
func SortNewestFirst[T models.Entity](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(b.Created().UnixNano(), a.Created().UnixNano())
	})
}

// Newest returns at most n items, newest first, without modifying items.
func Newest[T models.Entity](items []T, n int) []T {
	sorted := slices.Clone(items)
	SortNewestFirst(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
