// Package models - project.go defines the Project resource and its closed status set.
package models

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on-hold"

	// ProjectStatusUnknown is the display bucket for values outside the closed set.
	ProjectStatusUnknown ProjectStatus = "unknown"
)

// ProjectStatuses lists the valid statuses in display order.
var ProjectStatuses = []ProjectStatus{ProjectActive, ProjectCompleted, ProjectOnHold}

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	return slices.Contains(ProjectStatuses, s)
}

// Bucket maps s onto a displayable status; unknown values never fail.
func (s ProjectStatus) Bucket() ProjectStatus {
	if s.Valid() {
		return s
	}
	return ProjectStatusUnknown
}

// Project is a research project.
type Project struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Content     string        `json:"content"`
	Images      []string      `json:"images"`
	Files       []string      `json:"files"`
	TeamMembers []string      `json:"teamMembers"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt,omitzero"`
	Creator     *User         `json:"creator,omitempty"`
}

func (p Project) GetID() string      { return p.ID }
func (p Project) Created() time.Time { return p.CreatedAt }

// NewProjectDraft returns the empty add-form value.
func NewProjectDraft() Project {
	return Project{
		Status:      ProjectActive,
		Images:      []string{},
		Files:       []string{},
		TeamMembers: []string{},
	}
}

// Validate checks required fields and the status enumeration.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return errors.New("description is required")
	}
	if !p.Status.Valid() {
		return errors.New("status must be active, completed or on-hold")
	}
	return nil
}

// HasMember reports whether memberID is listed on the project.
func (p Project) HasMember(memberID string) bool {
	return slices.Contains(p.TeamMembers, memberID)
}

// ResolveMembers returns the loaded members referenced by the project. Ids that are
// not present in members are skipped.
func (p Project) ResolveMembers(members []TeamMember) []TeamMember {
	out := make([]TeamMember, 0, len(p.TeamMembers))
	for _, m := range members {
		if p.HasMember(m.ID) {
			out = append(out, m)
		}
	}
	return out
}
