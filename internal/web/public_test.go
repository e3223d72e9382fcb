package web

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/models"
)

func project(name string, members ...string) models.Project {
	p := models.NewProjectDraft()
	p.Name = name
	p.Description = "About " + name
	p.TeamMembers = append([]string{}, members...)
	return p
}

func member(name, role string) models.TeamMember {
	m := models.NewTeamMemberDraft()
	m.Name = name
	m.Role = role
	return m
}

// ---------------------------------------------------------------------------
// Probes
// ---------------------------------------------------------------------------

func TestProbes(t *testing.T) {
	p := newPortal(t)

	assert.Equal(t, http.StatusOK, p.get("/health").Status)
	assert.Contains(t, p.get("/version").Body, Version)

	ready := p.get("/ready")
	assert.Equal(t, http.StatusOK, ready.Status)
	assert.Contains(t, ready.Body, `"backend":"healthy"`)

	p.backend.FailNext(http.MethodGet, "/", http.StatusBadGateway)
	assert.Equal(t, http.StatusServiceUnavailable, p.get("/ready").Status)
}

func TestProbesSetNoSessionCookie(t *testing.T) {
	p := newPortal(t)
	resp := p.get("/health")
	assert.Empty(t, resp.Header.Values("Set-Cookie"))
}

// ---------------------------------------------------------------------------
// Home
// ---------------------------------------------------------------------------

func TestHome_CountsAndFeaturedProjects(t *testing.T) {
	p := newPortal(t)
	p.backend.Seed(backend.Projects, project("Alpha"), project("Beta"), project("Gamma"), project("Delta"))
	p.backend.Seed(backend.TeamMembers, member("Ana", "PI"), member("Luis", "Student"))

	resp := p.get("/")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `id="stat-projects">4<`)
	assert.Contains(t, resp.Body, `id="stat-members">2<`)
	assert.Contains(t, resp.Body, `id="stat-publications">12<`)

	// The three newest projects are featured.
	assert.Contains(t, resp.Body, "Delta")
	assert.Contains(t, resp.Body, "Gamma")
	assert.Contains(t, resp.Body, "Beta")
	assert.NotContains(t, resp.Body, "Alpha")
	assert.NotContains(t, resp.Body, "Could not load data")
}

func TestHome_LoadFailureShowsNoticeAndZeroCounts(t *testing.T) {
	p := newPortal(t)
	p.backend.Seed(backend.Projects, project("Alpha"))
	p.backend.FailNext(http.MethodGet, "/projects", http.StatusInternalServerError)

	resp := p.get("/")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, `id="stat-projects">0<`)
	assert.Contains(t, resp.Body, "Could not load data")
}

func TestHome_SignInFailedBanner(t *testing.T) {
	p := newPortal(t)
	assert.Contains(t, p.get("/?error=signin_failed").Body, "Sign-in failed")
}

// ---------------------------------------------------------------------------
// Team and projects
// ---------------------------------------------------------------------------

func TestTeamMemberPage_ListsTheirProjects(t *testing.T) {
	p := newPortal(t)
	p.backend.Seed(backend.TeamMembers, member("Ana", "PI"))
	ana := p.backend.Records(backend.TeamMembers)[0]["id"].(string)
	p.backend.Seed(backend.Projects, project("Hers", ana), project("Other"))

	resp := p.get("/team/" + ana)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "Ana")
	assert.Contains(t, resp.Body, "Hers")
	assert.NotContains(t, resp.Body, "Other")
}

func TestTeamMemberPage_Unknown(t *testing.T) {
	p := newPortal(t)
	resp := p.get("/team/missing")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Body, "Team member not found.")
}

func TestProjectPage_RendersMarkdownAndMembers(t *testing.T) {
	p := newPortal(t)
	p.backend.Seed(backend.TeamMembers, member("Ana", "PI"))
	ana := p.backend.Records(backend.TeamMembers)[0]["id"].(string)
	pr := project("Sensors", ana, "ghost")
	pr.Content = "## Goals\n\n<script>alert(1)</script>"
	p.backend.Seed(backend.Projects, pr)
	id := p.backend.Records(backend.Projects)[0]["id"].(string)

	resp := p.get("/projects/" + id)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "<h2>Goals</h2>")
	assert.NotContains(t, resp.Body, "<script>alert(1)</script>")
	assert.Contains(t, resp.Body, `href="/team/`+ana+`"`)
}

func TestProjectPage_Unknown(t *testing.T) {
	p := newPortal(t)
	resp := p.get("/projects/nope")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Body, "Project not found.")
}

func TestDetailPages_BackendFailureIsNotNotFound(t *testing.T) {
	p := newPortal(t)
	p.backend.Seed(backend.TeamMembers, member("Ana", "PI"))
	ana := p.backend.Records(backend.TeamMembers)[0]["id"].(string)
	p.backend.Seed(backend.Projects, project("Sensors", ana))
	pr := p.backend.Records(backend.Projects)[0]["id"].(string)

	p.backend.FailNext(http.MethodGet, "/team-members/"+ana, http.StatusInternalServerError)
	resp := p.get("/team/" + ana)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Contains(t, resp.Body, "Could not load this page from the server.")
	assert.NotContains(t, resp.Body, "Team member not found.")

	p.backend.FailNext(http.MethodGet, "/projects/"+pr, http.StatusServiceUnavailable)
	resp = p.get("/projects/" + pr)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Contains(t, resp.Body, "Could not load this page from the server.")
	assert.NotContains(t, resp.Body, "Project not found.")

	// The failure was one-shot; the record is still there.
	assert.Equal(t, http.StatusOK, p.get("/projects/"+pr).Status)
}

func TestUnknownRouteRendersNotFoundPage(t *testing.T) {
	p := newPortal(t)
	resp := p.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Body, "<h1>404</h1>")
}

// ---------------------------------------------------------------------------
// Announcements and calendar
// ---------------------------------------------------------------------------

func TestAnnouncements_NewestFirst(t *testing.T) {
	p := newPortal(t)
	now := time.Now()
	p.backend.Seed(backend.Announcements,
		models.Announcement{Title: "Older news", Content: "a", Date: models.Today(now)},
		models.Announcement{Title: "Newer news", Content: "b", Date: models.Today(now)},
	)

	body := p.get("/announcements").Body
	require.Contains(t, body, "Older news")
	assert.Less(t, strings.Index(body, "Newer news"), strings.Index(body, "Older news"))
}

func TestCalendar_OnlyEventsAfterToday(t *testing.T) {
	p := newPortal(t)
	today := models.Today(time.Now())
	day := func(n int) models.Date { return models.NewDate(today.AddDate(0, 0, n)) }
	p.backend.Seed(backend.Events,
		models.Event{Title: "Yesterday seminar", Date: day(-1), Time: "10:00", Type: models.EventMeeting},
		models.Event{Title: "Today seminar", Date: day(0), Time: "10:00", Type: models.EventMeeting},
		models.Event{Title: "Late workshop", Date: day(5), Time: "09:00", Type: "workshop"},
		models.Event{Title: "Soon deadline", Date: day(1), Time: "23:59", Type: models.EventDeadline},
	)

	body := p.get("/calendar").Body
	assert.NotContains(t, body, "Yesterday seminar")
	assert.NotContains(t, body, "Today seminar")
	require.Contains(t, body, "Soon deadline")
	require.Contains(t, body, "Late workshop")
	assert.Less(t, strings.Index(body, "Soon deadline"), strings.Index(body, "Late workshop"))
	// Unknown types display as "other".
	assert.Contains(t, body, `data-type="other"`)
}

func TestCalendar_Empty(t *testing.T) {
	p := newPortal(t)
	assert.Contains(t, p.get("/calendar").Body, "There are no upcoming events.")
}
