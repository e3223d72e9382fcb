// Package models - event.go defines the calendar Event resource and its closed type set.
package models

import (
	"errors"
	"regexp"
	"slices"
	"strings"
	"time"
)

// EventType classifies a calendar entry.
type EventType string

const (
	EventMeeting    EventType = "meeting"
	EventDeadline   EventType = "deadline"
	EventConference EventType = "conference"
	EventOther      EventType = "other"
)

// EventTypes lists the valid types in display order.
var EventTypes = []EventType{EventMeeting, EventDeadline, EventConference, EventOther}

// DefaultEventTime is the time preselected on the add form.
const DefaultEventTime = "09:00"

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Valid reports whether t is one of the known types.
func (t EventType) Valid() bool {
	return slices.Contains(EventTypes, t)
}

// Bucket maps unknown values onto EventOther.
func (t EventType) Bucket() EventType {
	if t.Valid() {
		return t
	}
	return EventOther
}

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        Date      `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location,omitempty"`
	Type        EventType `json:"type"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

func (e Event) GetID() string      { return e.ID }
func (e Event) Created() time.Time { return e.CreatedAt }

// NewEventDraft returns the empty add-form value.
func NewEventDraft(now time.Time) Event {
	return Event{Date: Today(now), Time: DefaultEventTime, Type: EventMeeting}
}

// Validate checks required fields, the clock format and the type enumeration.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("title is required")
	}
	if e.Date.IsZero() {
		return errors.New("date is required")
	}
	if !clockPattern.MatchString(e.Time) {
		return errors.New("time must be HH:MM")
	}
	if !e.Type.Valid() {
		return errors.New("type must be meeting, deadline, conference or other")
	}
	return nil
}

// UpcomingAfter returns the events dated strictly after today, in input order.
func UpcomingAfter(events []Event, today Date) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Date.After(today) {
			out = append(out, e)
		}
	}
	return out
}

// OnOrAfter returns the events dated today or later.
func OnOrAfter(events []Event, today Date) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Date.Before(today) {
			out = append(out, e)
		}
	}
	return out
}

// SortByDate orders events by date ascending, then by time.
func SortByDate(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return strings.Compare(a.Time, b.Time)
	})
}
