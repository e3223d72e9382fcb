// Package models defines the entities exchanged with the backend API: team members,
// projects, announcements, events and the signed-in user. The portal never owns these
// records; every value here is a read-through copy of what the backend returned.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Entity is implemented by every resource the portal manages.
type Entity interface {
	GetID() string
	Created() time.Time
}

// DateLayout is the wire format for calendar dates (announcement and event dates).
const DateLayout = "2006-01-02"

// Date is a calendar day. It accepts either a bare YYYY-MM-DD value or a full
// RFC3339 timestamp on input, and always emits YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD or RFC3339 input.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return NewDate(t), nil
}

// String returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d falls on an earlier calendar day than other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d falls on a later calendar day than other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Equal reports whether both dates name the same calendar day.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. null and "" leave the zero date.
// A value that is not a recognised date is logged and also decodes to the zero
// date, so one bad record never fails the collection it arrived in.
func (d *Date) UnmarshalJSON(data []byte) error {
	*d = Date{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Warn("ignoring non-string date", "value", string(data))
		return nil
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		slog.Warn("ignoring unparseable date", "value", s, "error", err)
		return nil
	}
	*d = parsed
	return nil
}

// Today returns the calendar day containing now.
func Today(now time.Time) Date {
	return NewDate(now)
}

// SplitLines splits a textarea value into trimmed, non-empty lines.
func SplitLines(value string) []string {
	return splitAndTrim(value, "\n")
}

// SplitComma splits a comma separated value into trimmed, non-empty items.
func SplitComma(value string) []string {
	return splitAndTrim(value, ",")
}

func splitAndTrim(value, sep string) []string {
	parts := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
