// Package web serves the portal: public pages, sign-in and the admin area, all
// rendered server-side over the REST backend.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/auth"
	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/config"
	"github.com/research-portal/research-portal/internal/middleware"
	"github.com/research-portal/research-portal/internal/models"
)

// Handler serves every page route.
type Handler struct {
	cfg           *config.Config
	client        *backend.Client
	flow          auth.Flow
	i18n          *I18n
	renderer      *Renderer
	secureCookies bool
	now           func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg *config.Config, client *backend.Client, flow auth.Flow, i18n *I18n, renderer *Renderer) *Handler {
	return &Handler{
		cfg:           cfg,
		client:        client,
		flow:          flow,
		i18n:          i18n,
		renderer:      renderer,
		secureCookies: secureCookies(cfg),
		now:           time.Now,
	}
}

// secureCookies reports whether cookies get the Secure flag: outside dev mode
// whenever the portal is served over https.
func secureCookies(cfg *config.Config) bool {
	if cfg.Server.DevMode {
		return false
	}
	return cfg.Security.TLS.Enabled || strings.HasPrefix(cfg.Server.GetPublicURL(), "https://")
}

// caller returns the backend caller of the request's session. Without a session
// requests go out anonymously.
func (h *Handler) caller(c *gin.Context) *backend.Caller {
	if store := middleware.SessionFrom(c); store != nil {
		return store.Backend()
	}
	return h.client.With(backend.StaticToken(""))
}

// currentUser returns the signed-in user, re-read from the store so an eviction
// during this request is visible.
func currentUser(c *gin.Context) *models.User {
	if store := middleware.SessionFrom(c); store != nil {
		return store.User()
	}
	return nil
}

// page returns the data every template expects.
func (h *Handler) page(c *gin.Context, titleKey string) gin.H {
	l := h.i18n.Negotiate(c)
	user := currentUser(c)
	loading := false
	if store := middleware.SessionFrom(c); store != nil {
		loading = store.Loading()
	}
	return gin.H{
		"L":        l,
		"Title":    l.T(titleKey),
		"Site":     h.cfg.Site.Name,
		"User":     user,
		"IsAdmin":  user.IsAdmin(),
		"Loading":  loading,
		"Path":     c.Request.URL.RequestURI(),
		"CSRF":     middleware.CSRFToken(c),
		"CSRFName": middleware.CSRFFieldName,
		"Year":     h.now().Year(),
	}
}

// render writes page with data.
func (h *Handler) render(c *gin.Context, status int, page string, data gin.H) {
	h.renderer.Render(c, status, page, data)
}

// notFound renders the not-found page with the message under key.
func (h *Handler) notFound(c *gin.Context, key string) {
	data := h.page(c, key)
	data["Message"] = data["L"].(Localizer).T(key)
	h.render(c, http.StatusNotFound, "notfound", data)
}

// detailFailed renders the page under titleKey with a could-not-load notice in
// place of a record the backend failed to return. A 404 is still a not-found page.
func (h *Handler) detailFailed(c *gin.Context, titleKey, notFoundKey string, err error) {
	if errors.Is(err, backend.ErrNotFound) {
		h.notFound(c, notFoundKey)
		return
	}
	slog.WarnContext(c.Request.Context(), "detail page fetch failed", "path", c.Request.URL.Path, "error", err)
	data := h.page(c, titleKey)
	h.render(c, http.StatusBadGateway, "unavailable", data)
}

// safeReturnPath accepts only local absolute paths.
func safeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	if u, err := url.Parse(p); err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return p
}
