package backend

import (
	"context"
	"net/http"
	"net/url"
)

// Backend collection names.
const (
	TeamMembers   = "team-members"
	Projects      = "projects"
	Announcements = "announcements"
	Events        = "events"
)

// Resource is a typed view of one REST collection: GET/POST /name and
// GET/PATCH/DELETE /name/{id}.
type Resource[T any] struct {
	caller *Caller
	name   string
}

// NewResource binds collection name to caller.
func NewResource[T any](caller *Caller, name string) *Resource[T] {
	return &Resource[T]{caller: caller, name: name}
}

// Name returns the collection name.
func (r *Resource[T]) Name() string {
	return r.name
}

func (r *Resource[T]) itemPath(id string) string {
	return "/" + r.name + "/" + url.PathEscape(id)
}

// List fetches the whole collection. A null or empty body yields an empty slice.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	if err := r.caller.Do(ctx, r.name, http.MethodGet, "/"+r.name, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get fetches one record.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	err := r.caller.Do(ctx, r.name, http.MethodGet, r.itemPath(id), nil, &item)
	return item, err
}

// Create posts draft and returns the record the server stored.
func (r *Resource[T]) Create(ctx context.Context, draft T) (T, error) {
	var created T
	err := r.caller.Do(ctx, r.name, http.MethodPost, "/"+r.name, draft, &created)
	return created, err
}

// Update patches the record id with draft.
func (r *Resource[T]) Update(ctx context.Context, id string, draft T) (T, error) {
	var updated T
	err := r.caller.Do(ctx, r.name, http.MethodPatch, r.itemPath(id), draft, &updated)
	return updated, err
}

// Delete removes the record id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.caller.Do(ctx, r.name, http.MethodDelete, r.itemPath(id), nil, nil)
}
