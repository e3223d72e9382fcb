// Package models - team_member.go defines the TeamMember resource.
package models

import (
	"errors"
	"strings"
	"time"
)

// TeamMember is a person shown on the team pages.
type TeamMember struct {
	ID            string    `json:"id,omitempty"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Bio           string    `json:"bio"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	ResearchAreas []string  `json:"researchAreas"`
	GithubURL     string    `json:"githubUrl,omitempty"`
	LinkedinURL   string    `json:"linkedinUrl,omitempty"`
	Email         string    `json:"email,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

func (m TeamMember) GetID() string      { return m.ID }
func (m TeamMember) Created() time.Time { return m.CreatedAt }

// NewTeamMemberDraft returns the empty add-form value: active, no research areas.
func NewTeamMemberDraft() TeamMember {
	return TeamMember{IsActive: true, ResearchAreas: []string{}}
}

// Validate checks the fields the admin form marks as required.
func (m TeamMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(m.Role) == "" {
		return errors.New("role is required")
	}
	return nil
}

// MemberStatus is the active/inactive facet used by the team manager.
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

// Status returns the facet value for m.
func (m TeamMember) Status() MemberStatus {
	if m.IsActive {
		return MemberStatusActive
	}
	return MemberStatusInactive
}

// FilterProjectsByMember returns the projects whose member list contains memberID.
func FilterProjectsByMember(projects []Project, memberID string) []Project {
	out := make([]Project, 0)
	for _, p := range projects {
		if p.HasMember(memberID) {
			out = append(out, p)
		}
	}
	return out
}
