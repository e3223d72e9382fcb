// Package dashboard builds the admin overview: per-resource totals, active
// projects, upcoming events and a merged recent-activity feed.
package dashboard

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/events"
	"github.com/research-portal/research-portal/internal/models"
	"github.com/research-portal/research-portal/internal/resource"
	"github.com/research-portal/research-portal/internal/safego"
)

// Feed sizes.
const (
	RecentPerSource = 3
	RecentActivity  = 5
)

// ActivityKind names the source of an activity entry.
type ActivityKind string

const (
	ActivityProject      ActivityKind = "project"
	ActivityAnnouncement ActivityKind = "announcement"
)

// Activity is one entry of the recent-activity feed. Title is the record's own
// name; the "new project"/"new announcement" label is localized from Kind.
type Activity struct {
	Kind  ActivityKind
	ID    string
	Title string
	At    time.Time
}

// Snapshot is the raw input of Derive.
type Snapshot struct {
	Members       []models.TeamMember
	Projects      []models.Project
	Announcements []models.Announcement
	Events        []models.Event
	// Notices names the sections whose fetch failed.
	Notices []events.Section
}

// Stats is what the overview renders.
type Stats struct {
	TotalMembers       int
	TotalProjects      int
	TotalAnnouncements int
	TotalEvents        int
	ActiveProjects     int
	UpcomingEvents     int
	Recent             []Activity
	Notices            []events.Section
}

// QuickAction is a dashboard shortcut to an add form.
type QuickAction struct {
	Section events.Section
	Href    string
}

// QuickActions lists one add shortcut per managed section.
func QuickActions() []QuickAction {
	out := make([]QuickAction, 0, len(events.Sections))
	for _, s := range events.Sections {
		out = append(out, QuickAction{Section: s, Href: "/admin?tab=" + string(s) + "&action=" + string(events.IntentAdd)})
	}
	return out
}

// Derive computes Stats from snap. today is compared to event dates inclusively.
func Derive(snap Snapshot, today models.Date) Stats {
	st := Stats{
		TotalMembers:       len(snap.Members),
		TotalProjects:      len(snap.Projects),
		TotalAnnouncements: len(snap.Announcements),
		TotalEvents:        len(snap.Events),
		UpcomingEvents:     len(models.OnOrAfter(snap.Events, today)),
		Notices:            snap.Notices,
	}
	for _, p := range snap.Projects {
		if p.Status == models.ProjectActive {
			st.ActiveProjects++
		}
	}

	recent := make([]Activity, 0, 2*RecentPerSource)
	for _, p := range resource.Newest(snap.Projects, RecentPerSource) {
		recent = append(recent, Activity{Kind: ActivityProject, ID: p.ID, Title: p.Name, At: p.CreatedAt})
	}
	for _, a := range resource.Newest(snap.Announcements, RecentPerSource) {
		recent = append(recent, Activity{Kind: ActivityAnnouncement, ID: a.ID, Title: a.Title, At: a.CreatedAt})
	}
	slices.SortStableFunc(recent, func(a, b Activity) int {
		return cmp.Compare(b.At.UnixNano(), a.At.UnixNano())
	})
	if len(recent) > RecentActivity {
		recent = recent[:RecentActivity]
	}
	st.Recent = recent
	return st
}

// Aggregator fetches the four collections for the overview.
type Aggregator struct {
	members       *backend.Resource[models.TeamMember]
	projects      *backend.Resource[models.Project]
	announcements *backend.Resource[models.Announcement]
	events        *backend.Resource[models.Event]
}

// NewAggregator reads through caller.
func NewAggregator(caller *backend.Caller) *Aggregator {
	return &Aggregator{
		members:       backend.NewResource[models.TeamMember](caller, backend.TeamMembers),
		projects:      backend.NewResource[models.Project](caller, backend.Projects),
		announcements: backend.NewResource[models.Announcement](caller, backend.Announcements),
		events:        backend.NewResource[models.Event](caller, backend.Events),
	}
}

// Load issues the four list calls concurrently and derives Stats. A failed list
// counts as empty and is reported in Stats.Notices; it never fails the others.
func (a *Aggregator) Load(ctx context.Context, now time.Time) Stats {
	snap, _ := a.Fetch(ctx)
	return Derive(snap, models.Today(now))
}

// Fetch loads the raw collections. The returned error is the first failure, if any.
func (a *Aggregator) Fetch(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		errs [4]error
		g    safego.Group
	)
	g.Go("dashboard.members", func() { snap.Members, errs[0] = a.members.List(ctx) })
	g.Go("dashboard.projects", func() { snap.Projects, errs[1] = a.projects.List(ctx) })
	g.Go("dashboard.announcements", func() { snap.Announcements, errs[2] = a.announcements.List(ctx) })
	g.Go("dashboard.events", func() { snap.Events, errs[3] = a.events.List(ctx) })
	g.Wait()

	sections := [4]events.Section{events.SectionTeam, events.SectionProjects, events.SectionAnnouncements, events.SectionEvents}
	var first error
	for i, err := range errs {
		if err != nil {
			snap.Notices = append(snap.Notices, sections[i])
			if first == nil {
				first = err
			}
		}
	}
	return snap, first
}
