package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/models"
	"github.com/research-portal/research-portal/internal/resource"
	"github.com/research-portal/research-portal/internal/safego"
)

// featuredProjects is how many projects the home page shows.
const featuredProjects = 3

// listOrEmpty fetches a collection for a public page. A failure is logged by the
// backend client and shown as an empty list with a notice.
func listOrEmpty[T models.Entity](ctx context.Context, caller *backend.Caller, name string) ([]T, bool) {
	items, err := backend.NewResource[T](caller, name).List(ctx)
	if err != nil {
		return []T{}, false
	}
	return items, true
}

func (h *Handler) home(c *gin.Context) {
	ctx := c.Request.Context()
	caller := h.caller(c)

	var (
		projects []models.Project
		members  []models.TeamMember
		okP, okM bool
		g        safego.Group
	)
	g.Go("home.projects", func() { projects, okP = listOrEmpty[models.Project](ctx, caller, backend.Projects) })
	g.Go("home.members", func() { members, okM = listOrEmpty[models.TeamMember](ctx, caller, backend.TeamMembers) })
	g.Wait()

	data := h.page(c, "home.title")
	data["ProjectCount"] = len(projects)
	data["MemberCount"] = len(members)
	data["PublicationCount"] = h.cfg.Site.PublicationsCount
	data["Featured"] = resource.Newest(projects, featuredProjects)
	data["LoadFailed"] = !okP || !okM
	data["SignInFailed"] = c.Query("error") == "signin_failed"
	h.render(c, http.StatusOK, "home", data)
}

func (h *Handler) team(c *gin.Context) {
	members, ok := listOrEmpty[models.TeamMember](c.Request.Context(), h.caller(c), backend.TeamMembers)

	data := h.page(c, "team.title")
	data["Members"] = members
	data["LoadFailed"] = !ok
	h.render(c, http.StatusOK, "team", data)
}

func (h *Handler) teamMember(c *gin.Context) {
	ctx := c.Request.Context()
	caller := h.caller(c)
	id := c.Param("id")

	var (
		member    models.TeamMember
		memberErr error
		projects  []models.Project
		g         safego.Group
	)
	g.Go("member.get", func() {
		member, memberErr = backend.NewResource[models.TeamMember](caller, backend.TeamMembers).Get(ctx, id)
	})
	g.Go("member.projects", func() { projects, _ = listOrEmpty[models.Project](ctx, caller, backend.Projects) })
	g.Wait()

	if memberErr != nil {
		h.detailFailed(c, "team.title", "team.notFound", memberErr)
		return
	}

	data := h.page(c, "team.title")
	data["Title"] = member.Name
	data["Member"] = member
	data["Projects"] = models.FilterProjectsByMember(projects, member.ID)
	h.render(c, http.StatusOK, "member", data)
}

func (h *Handler) projects(c *gin.Context) {
	projects, ok := listOrEmpty[models.Project](c.Request.Context(), h.caller(c), backend.Projects)
	resource.SortNewestFirst(projects)

	data := h.page(c, "projects.title")
	data["Projects"] = projects
	data["LoadFailed"] = !ok
	h.render(c, http.StatusOK, "projects", data)
}

func (h *Handler) project(c *gin.Context) {
	ctx := c.Request.Context()
	caller := h.caller(c)
	id := c.Param("id")

	var (
		project    models.Project
		projectErr error
		members    []models.TeamMember
		g          safego.Group
	)
	g.Go("project.get", func() {
		project, projectErr = backend.NewResource[models.Project](caller, backend.Projects).Get(ctx, id)
	})
	g.Go("project.members", func() { members, _ = listOrEmpty[models.TeamMember](ctx, caller, backend.TeamMembers) })
	g.Wait()

	if projectErr != nil {
		h.detailFailed(c, "projects.title", "projects.notFound", projectErr)
		return
	}

	data := h.page(c, "projects.title")
	data["Title"] = project.Name
	data["Project"] = project
	data["Members"] = project.ResolveMembers(members)
	h.render(c, http.StatusOK, "project", data)
}

func (h *Handler) announcements(c *gin.Context) {
	items, ok := listOrEmpty[models.Announcement](c.Request.Context(), h.caller(c), backend.Announcements)
	resource.SortNewestFirst(items)

	data := h.page(c, "announcements.title")
	data["Announcements"] = items
	data["LoadFailed"] = !ok
	h.render(c, http.StatusOK, "announcements", data)
}

func (h *Handler) calendar(c *gin.Context) {
	items, ok := listOrEmpty[models.Event](c.Request.Context(), h.caller(c), backend.Events)
	upcoming := models.UpcomingAfter(items, models.Today(h.now()))
	models.SortByDate(upcoming)

	data := h.page(c, "calendar.title")
	data["Events"] = upcoming
	data["LoadFailed"] = !ok
	h.render(c, http.StatusOK, "calendar", data)
}
