package resource

import (
	"context"
	"log/slog"
	"time"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/events"
	"github.com/research-portal/research-portal/internal/models"
	"github.com/research-portal/research-portal/internal/telemetry"
)

// TeamSpec manages team members: searched by name, role and email, faceted by
// active/inactive.
var TeamSpec = Spec[models.TeamMember]{
	Section:  events.SectionTeam,
	Resource: backend.TeamMembers,
	SearchText: func(m models.TeamMember) []string {
		return []string{m.Name, m.Role, m.Email}
	},
	Facet:       func(m models.TeamMember) string { return string(m.Status()) },
	FacetValues: []string{string(models.MemberStatusActive), string(models.MemberStatusInactive)},
	Validate:    models.TeamMember.Validate,
	NewDraft:    func(time.Time) models.TeamMember { return models.NewTeamMemberDraft() },
}

// ProjectSpec manages projects: searched by name and description, faceted by status.
var ProjectSpec = Spec[models.Project]{
	Section:  events.SectionProjects,
	Resource: backend.Projects,
	SearchText: func(p models.Project) []string {
		return []string{p.Name, p.Description}
	},
	Facet: func(p models.Project) string { return string(p.Status.Bucket()) },
	FacetValues: []string{
		string(models.ProjectActive), string(models.ProjectCompleted), string(models.ProjectOnHold),
	},
	Validate: models.Project.Validate,
	NewDraft: func(time.Time) models.Project { return models.NewProjectDraft() },
}

// AnnouncementSpec manages announcements: searched by title and content.
var AnnouncementSpec = Spec[models.Announcement]{
	Section:  events.SectionAnnouncements,
	Resource: backend.Announcements,
	SearchText: func(a models.Announcement) []string {
		return []string{a.Title, a.Content}
	},
	Validate: models.Announcement.Validate,
	NewDraft: models.NewAnnouncementDraft,
}

// EventSpec manages calendar events: searched by title, description and
// location, faceted by type.
var EventSpec = Spec[models.Event]{
	Section:  events.SectionEvents,
	Resource: backend.Events,
	SearchText: func(e models.Event) []string {
		return []string{e.Title, e.Description, e.Location}
	},
	Facet: func(e models.Event) string { return string(e.Type.Bucket()) },
	FacetValues: []string{
		string(models.EventMeeting), string(models.EventDeadline),
		string(models.EventConference), string(models.EventOther),
	},
	Validate: models.Event.Validate,
	NewDraft: models.NewEventDraft,
}

// Managers bundles the four managers of one admin session.
type Managers struct {
	Team          *Manager[models.TeamMember]
	Projects      *Manager[models.Project]
	Announcements *Manager[models.Announcement]
	Events        *Manager[models.Event]
}

// NewManagers builds the four managers over caller and wires the announcement
// calendar side effect.
func NewManagers(caller *backend.Caller) *Managers {
	eventsAPI := backend.NewResource[models.Event](caller, backend.Events)
	m := &Managers{
		Team:          NewManager(TeamSpec, backend.NewResource[models.TeamMember](caller, backend.TeamMembers)),
		Projects:      NewManager(ProjectSpec, backend.NewResource[models.Project](caller, backend.Projects)),
		Announcements: NewManager(AnnouncementSpec, backend.NewResource[models.Announcement](caller, backend.Announcements)),
		Events:        NewManager(EventSpec, eventsAPI),
	}
	m.Announcements.AfterCreate = AnnouncementCalendarHook(eventsAPI)
	return m
}

// Subscribe connects every manager to d.
func (m *Managers) Subscribe(d *events.Dispatcher) {
	m.Team.Subscribe(d)
	m.Projects.Subscribe(d)
	m.Announcements.Subscribe(d)
	m.Events.Subscribe(d)
}

// AnnouncementCalendarHook publishes every new announcement as an "other" event.
// A failure is logged and counted, never returned.
func AnnouncementCalendarHook(eventsAPI *backend.Resource[models.Event]) func(context.Context, models.Announcement) {
	return func(ctx context.Context, a models.Announcement) {
		if _, err := eventsAPI.Create(ctx, a.CalendarEvent()); err != nil {
			telemetry.SecondaryEffectFailuresTotal.WithLabelValues("announcement_event").Inc()
			slog.WarnContext(ctx, "announcement saved but calendar event could not be created",
				"announcement_id", a.ID, "title", a.Title, "error", err)
		}
	}
}
