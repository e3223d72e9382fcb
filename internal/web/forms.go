package web

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/models"
)

// checkURL rejects values that are not absolute http(s) URLs. Empty is allowed.
func checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return backend.Rejected(fmt.Sprintf("%s must be an http(s) URL: %q", field, raw))
	}
	return nil
}

func checkURLs(field string, raws []string) error {
	for _, raw := range raws {
		if err := checkURL(field, raw); err != nil {
			return err
		}
	}
	return nil
}

func parseFormDate(raw string) (models.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return models.Date{}, backend.Rejected(fmt.Sprintf("date must be YYYY-MM-DD: %q", raw))
	}
	return d, nil
}

func field(c *gin.Context, name string) string {
	return strings.TrimSpace(c.PostForm(name))
}

// decodeTeamMember reads the team member form. Research areas are comma separated.
func decodeTeamMember(c *gin.Context) (models.TeamMember, error) {
	m := models.TeamMember{
		Name:          field(c, "name"),
		Role:          field(c, "role"),
		Bio:           field(c, "bio"),
		AvatarURL:     field(c, "avatarUrl"),
		ResearchAreas: models.SplitComma(c.PostForm("researchAreas")),
		GithubURL:     field(c, "githubUrl"),
		LinkedinURL:   field(c, "linkedinUrl"),
		Email:         field(c, "email"),
		IsActive:      c.PostForm("isActive") != "",
	}
	for name, v := range map[string]string{"avatarUrl": m.AvatarURL, "githubUrl": m.GithubURL, "linkedinUrl": m.LinkedinURL} {
		if err := checkURL(name, v); err != nil {
			return m, err
		}
	}
	return m, nil
}

// decodeProject reads the project form. Images and files are one URL per line;
// team members come from a multi-select.
func decodeProject(c *gin.Context) (models.Project, error) {
	p := models.Project{
		Name:        field(c, "name"),
		Description: field(c, "description"),
		Content:     c.PostForm("content"),
		Images:      models.SplitLines(c.PostForm("images")),
		Files:       models.SplitLines(c.PostForm("files")),
		TeamMembers: c.PostFormArray("teamMembers"),
		Status:      models.ProjectStatus(field(c, "status")),
	}
	if p.TeamMembers == nil {
		p.TeamMembers = []string{}
	}
	if err := checkURLs("images", p.Images); err != nil {
		return p, err
	}
	return p, checkURLs("files", p.Files)
}

// decodeAnnouncement reads the announcement form. Links are one URL per line.
func decodeAnnouncement(c *gin.Context) (models.Announcement, error) {
	a := models.Announcement{
		Title:   field(c, "title"),
		Content: c.PostForm("content"),
		Links:   models.SplitLines(c.PostForm("links")),
	}
	d, err := parseFormDate(c.PostForm("date"))
	if err != nil {
		return a, err
	}
	a.Date = d
	return a, checkURLs("links", a.Links)
}

// decodeEvent reads the event form.
func decodeEvent(c *gin.Context) (models.Event, error) {
	e := models.Event{
		Title:       field(c, "title"),
		Description: c.PostForm("description"),
		Time:        field(c, "time"),
		Location:    field(c, "location"),
		Type:        models.EventType(field(c, "type")),
	}
	d, err := parseFormDate(c.PostForm("date"))
	if err != nil {
		return e, err
	}
	e.Date = d
	return e, nil
}
