package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/dashboard"
	"github.com/research-portal/research-portal/internal/events"
	"github.com/research-portal/research-portal/internal/middleware"
	"github.com/research-portal/research-portal/internal/models"
	"github.com/research-portal/research-portal/internal/resource"
)

// Notices carried across the POST/redirect/GET of a successful write.
var writeNotices = map[string]bool{"created": true, "updated": true, "deleted": true}

// sectionView is what a manager tab renders.
type sectionView[T models.Entity] struct {
	Section     events.Section
	Items       []T
	Total       int
	Form        resource.FormState[T]
	FormError   string
	LoadFailed  bool
	Query       string
	Facet       string
	FacetValues []string
	ConfirmID   string
}

// adminSession builds the managers of one admin request, wired to a fresh
// dispatcher.
func adminSession(caller *backend.Caller) (*resource.Managers, *events.Dispatcher) {
	managers := resource.NewManagers(caller)
	d := events.NewDispatcher()
	managers.Subscribe(d)
	events.ForwardAdminActions(d)
	return managers, d
}

// admin renders the admin area.
// GET /admin?tab=<section>[&action=add][&edit=<id>][&delete=<id>][&q=..&facet=..]
func (h *Handler) admin(c *gin.Context) {
	tab := events.ParseSection(c.Query("tab"))
	managers, d := adminSession(h.caller(c))

	if events.Intent(c.Query("action")) == events.IntentAdd {
		events.Publish(d, events.AdminAction{Section: tab, Intent: events.IntentAdd})
	}

	flash := ""
	if n := c.Query("notice"); writeNotices[n] {
		flash = n
	}
	h.renderAdmin(c, http.StatusOK, tab, managers, flash, nil)
}

// renderAdmin loads what tab needs and renders it. If the session was evicted by
// a 401 while loading, the visitor is sent home instead.
func (h *Handler) renderAdmin(c *gin.Context, status int, tab events.Section, managers *resource.Managers, flash string, actionErr error) {
	ctx := c.Request.Context()
	data := h.page(c, "admin.title")
	l := data["L"].(Localizer)

	data["Tab"] = tab
	data["Tabs"] = append([]events.Section{events.SectionOverview}, events.Sections...)
	data["Flash"] = flash
	if actionErr != nil {
		data["ActionError"] = errorMessage(l, actionErr)
	}

	switch tab {
	case events.SectionTeam:
		data["Team"] = loadSection(ctx, c, l, managers.Team)
	case events.SectionProjects:
		data["Projects"] = loadSection(ctx, c, l, managers.Projects)
		if managers.Team.Result().Items == nil {
			managers.Team.List(ctx)
		}
		data["AllMembers"] = managers.Team.Items()
		data["ProjectStatuses"] = models.ProjectStatuses
	case events.SectionAnnouncements:
		data["Announcements"] = loadSection(ctx, c, l, managers.Announcements)
	case events.SectionEvents:
		data["Events"] = loadSection(ctx, c, l, managers.Events)
		data["EventTypes"] = models.EventTypes
	default:
		data["Stats"] = dashboard.NewAggregator(h.caller(c)).Load(ctx, h.now())
		data["QuickActions"] = dashboard.QuickActions()
	}

	if currentUser(c) == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.render(c, status, "admin", data)
}

func loadSection[T models.Entity](ctx context.Context, c *gin.Context, l Localizer, m *resource.Manager[T]) *sectionView[T] {
	if m.Result().Items == nil {
		m.List(ctx)
	}
	if id := c.Query("edit"); id != "" && !m.Form().Open() {
		if err := m.OpenEdit(ctx, id); err != nil {
			slog.WarnContext(ctx, "cannot open record for editing", "section", m.Spec().Section, "id", id, "error", err)
		}
	}

	res := m.Result()
	spec := m.Spec()
	query, facet := c.Query("q"), c.Query("facet")
	v := &sectionView[T]{
		Section:     spec.Section,
		Items:       resource.Filter(spec, res.Items, query, facet),
		Total:       len(res.Items),
		Form:        m.Form(),
		LoadFailed:  res.Notice == resource.NoticeLoadFailed,
		Query:       query,
		Facet:       facet,
		FacetValues: spec.FacetValues,
		ConfirmID:   c.Query("delete"),
	}
	if v.Form.Err != nil {
		v.FormError = errorMessage(l, v.Form.Err)
	}
	return v
}

// errorMessage turns a classified backend error into a user-facing message.
func errorMessage(l Localizer, err error) string {
	switch backend.KindOf(err) {
	case backend.KindValidationRejected:
		return l.T("error.validation_rejected", backend.MessageOf(err))
	case backend.KindNotFound:
		return l.T("error.not_found")
	case backend.KindAuthExpired:
		return l.T("error.auth_expired")
	default:
		return l.T("error.transport_failure")
	}
}

func statusFor(err error) int {
	switch backend.KindOf(err) {
	case backend.KindValidationRejected:
		return http.StatusUnprocessableEntity
	case backend.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func adminURL(section events.Section, params ...string) string {
	q := url.Values{"tab": {string(section)}}
	for i := 0; i+1 < len(params); i += 2 {
		q.Set(params[i], params[i+1])
	}
	return "/admin?" + q.Encode()
}

// adminSave creates (no id) or updates (id) a record.
// POST /admin/:section and POST /admin/:section/:id
func (h *Handler) adminSave(c *gin.Context) {
	section := events.Section(c.Param("section"))
	id := c.Param("id")
	managers, _ := adminSession(h.caller(c))

	switch section {
	case events.SectionTeam:
		saveEntity(h, c, managers, managers.Team, id, decodeTeamMember)
	case events.SectionProjects:
		saveEntity(h, c, managers, managers.Projects, id, decodeProject)
	case events.SectionAnnouncements:
		saveEntity(h, c, managers, managers.Announcements, id, decodeAnnouncement)
	case events.SectionEvents:
		saveEntity(h, c, managers, managers.Events, id, decodeEvent)
	default:
		h.notFound(c, "admin.title")
	}
}

func saveEntity[T models.Entity](h *Handler, c *gin.Context, managers *resource.Managers, m *resource.Manager[T], id string, decode func(*gin.Context) (T, error)) {
	ctx := c.Request.Context()
	section := m.Spec().Section

	mode, notice := resource.ModeAdd, "created"
	if id != "" {
		mode, notice = resource.ModeEdit, "updated"
	}

	draft, err := decode(c)
	if err != nil {
		m.ShowError(mode, id, draft, err)
	} else if id == "" {
		err = m.Create(ctx, draft)
	} else {
		err = m.Update(ctx, id, draft)
	}

	if err == nil {
		middleware.MarkAudited(c, notice)
		c.Redirect(http.StatusSeeOther, adminURL(section, "notice", notice))
		return
	}
	if errors.Is(err, backend.ErrAuthExpired) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.renderAdmin(c, statusFor(err), section, managers, "", nil)
}

// adminDelete removes a record once the confirmation field is present.
// POST /admin/:section/:id/delete
func (h *Handler) adminDelete(c *gin.Context) {
	section := events.Section(c.Param("section"))
	id := c.Param("id")
	confirmed := c.PostForm("confirm") == "yes"
	managers, _ := adminSession(h.caller(c))

	switch section {
	case events.SectionTeam:
		deleteEntity(h, c, managers, managers.Team, id, confirmed)
	case events.SectionProjects:
		deleteEntity(h, c, managers, managers.Projects, id, confirmed)
	case events.SectionAnnouncements:
		deleteEntity(h, c, managers, managers.Announcements, id, confirmed)
	case events.SectionEvents:
		deleteEntity(h, c, managers, managers.Events, id, confirmed)
	default:
		h.notFound(c, "admin.title")
	}
}

func deleteEntity[T models.Entity](h *Handler, c *gin.Context, managers *resource.Managers, m *resource.Manager[T], id string, confirmed bool) {
	section := m.Spec().Section

	err := m.Delete(c.Request.Context(), id, confirmed)
	switch {
	case err == nil:
		middleware.MarkAudited(c, "deleted")
		c.Redirect(http.StatusSeeOther, adminURL(section, "notice", "deleted"))
	case errors.Is(err, resource.ErrConfirmationRequired):
		c.Redirect(http.StatusSeeOther, adminURL(section, "delete", id))
	case errors.Is(err, backend.ErrAuthExpired):
		c.Redirect(http.StatusSeeOther, "/")
	default:
		h.renderAdmin(c, statusFor(err), section, managers, "", err)
	}
}

// requireAdminPage is the guard for admin routes, rendering the localized
// waiting page while the session resolves.
func (h *Handler) requireAdminPage() gin.HandlerFunc {
	return middleware.RequireAdmin(func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		h.render(c, http.StatusOK, "wait", h.page(c, "auth.loading"))
	})
}
