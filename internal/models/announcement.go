// Package models - announcement.go defines the Announcement resource and the calendar
// event derived from it when an announcement is created.
package models

import (
	"errors"
	"strings"
	"time"
)

const (
	// AnnouncementEventTime is the start time given to events derived from announcements.
	AnnouncementEventTime = "09:00"
	// AnnouncementEventLocation is the location given to events derived from announcements.
	AnnouncementEventLocation = "Portal Web"
	// AnnouncementEventPrefix prefixes the title of derived events.
	AnnouncementEventPrefix = "Anuncio: "
)

// Announcement is a dated news item.
type Announcement struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Date      Date      `json:"date"`
	Links     []string  `json:"links"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

func (a Announcement) GetID() string      { return a.ID }
func (a Announcement) Created() time.Time { return a.CreatedAt }

// NewAnnouncementDraft returns the empty add-form value dated today.
func NewAnnouncementDraft(now time.Time) Announcement {
	return Announcement{Date: Today(now), Links: []string{}}
}

// Validate checks the fields the admin form marks as required.
func (a Announcement) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(a.Content) == "" {
		return errors.New("content is required")
	}
	if a.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

// CalendarEvent builds the event that mirrors a if it is published on the calendar.
func (a Announcement) CalendarEvent() Event {
	return Event{
		Title:       AnnouncementEventPrefix + a.Title,
		Description: a.Content,
		Date:        a.Date,
		Time:        AnnouncementEventTime,
		Location:    AnnouncementEventLocation,
		Type:        EventOther,
	}
}
