package dashboard

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/backend/backendtest"
	"github.com/research-portal/research-portal/internal/events"
	"github.com/research-portal/research-portal/internal/models"
)

var base = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func at(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func TestDerive_TotalsAndActiveProjects(t *testing.T) {
	snap := Snapshot{
		Members: []models.TeamMember{{ID: "m1"}, {ID: "m2"}},
		Projects: []models.Project{
			{ID: "p1", Status: models.ProjectActive},
			{ID: "p2", Status: models.ProjectCompleted},
			{ID: "p3", Status: models.ProjectActive},
		},
		Announcements: []models.Announcement{{ID: "a1"}},
	}
	st := Derive(snap, models.Today(base))

	assert.Equal(t, 2, st.TotalMembers)
	assert.Equal(t, 3, st.TotalProjects)
	assert.Equal(t, 1, st.TotalAnnouncements)
	assert.Equal(t, 0, st.TotalEvents)
	assert.Equal(t, 2, st.ActiveProjects)
}

func TestDerive_UpcomingIncludesToday(t *testing.T) {
	today := models.Today(base)
	snap := Snapshot{Events: []models.Event{
		{ID: "past", Date: models.NewDate(base.AddDate(0, 0, -1))},
		{ID: "today", Date: today},
		{ID: "next", Date: models.NewDate(base.AddDate(0, 0, 1))},
	}}
	assert.Equal(t, 2, Derive(snap, today).UpcomingEvents)
}

func TestDerive_RecentActivityMergesTopThreeOfEach(t *testing.T) {
	snap := Snapshot{
		Projects: []models.Project{
			{ID: "p1", Name: "One", CreatedAt: at(1)},
			{ID: "p2", Name: "Two", CreatedAt: at(2)},
			{ID: "p3", Name: "Three", CreatedAt: at(3)},
			{ID: "p4", Name: "Four", CreatedAt: at(10)},
		},
		Announcements: []models.Announcement{
			{ID: "a1", Title: "Alpha", CreatedAt: at(4)},
			{ID: "a2", Title: "Beta", CreatedAt: at(5)},
			{ID: "a3", Title: "Gamma", CreatedAt: at(0)},
			{ID: "a4", Title: "Delta", CreatedAt: at(-5)},
		},
	}
	st := Derive(snap, models.Today(base))

	require.Len(t, st.Recent, RecentActivity)
	var ids []string
	for _, a := range st.Recent {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"p4", "a2", "a1", "p3", "p2"}, ids)
	assert.Equal(t, "Four", st.Recent[0].Title)
	assert.Equal(t, "Beta", st.Recent[1].Title)
	assert.Equal(t, ActivityProject, st.Recent[0].Kind)
	assert.Equal(t, ActivityAnnouncement, st.Recent[1].Kind)
}

func TestDerive_EmptySnapshot(t *testing.T) {
	st := Derive(Snapshot{}, models.Today(base))
	assert.Zero(t, st.TotalProjects)
	assert.Empty(t, st.Recent)
}

func TestQuickActions_LinkToAddForms(t *testing.T) {
	actions := QuickActions()
	require.Len(t, actions, len(events.Sections))
	assert.Equal(t, "/admin?tab=team&action=add", actions[0].Href)
}

func TestAggregator_ToleratesPartialFailure(t *testing.T) {
	srv := backendtest.New(t)
	srv.Seed(backend.TeamMembers, models.TeamMember{Name: "Ana", Role: "PI", IsActive: true})
	srv.Seed(backend.Projects, models.Project{Name: "P", Description: "d", Status: models.ProjectActive})
	srv.FailNext(http.MethodGet, "/events", http.StatusBadGateway)

	client, err := backend.New(backend.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	st := NewAggregator(client.With(backend.StaticToken(backendtest.AdminToken))).Load(context.Background(), base)

	assert.Equal(t, 1, st.TotalMembers)
	assert.Equal(t, 1, st.TotalProjects)
	assert.Equal(t, 1, st.ActiveProjects)
	assert.Zero(t, st.TotalEvents)
	assert.Equal(t, []events.Section{events.SectionEvents}, st.Notices)
}
