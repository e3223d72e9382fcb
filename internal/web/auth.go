package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/auth"
	"github.com/research-portal/research-portal/internal/middleware"
)

// signInFailed is the query flag shown as a banner after a failed callback.
const signInFailed = "/?error=signin_failed"

// login sends the browser to the sign-in flow.
// GET /auth/login
func (h *Handler) login(c *gin.Context) {
	store := middleware.SessionFrom(c)
	if store == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	state := ""
	if h.flow.UsesState() {
		var err error
		if state, err = auth.GenerateState(); err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to generate oauth state", "error", err)
			c.Redirect(http.StatusFound, signInFailed)
			return
		}
		store.SetOAuthState(state)
	}
	c.Redirect(http.StatusFound, h.flow.AuthURL(state))
}

// callback completes sign-in and lands admins on /admin and everyone else on /.
// GET /auth/callback?token=... (backend mode) or ?code=...&state=... (oidc mode)
func (h *Handler) callback(c *gin.Context) {
	ctx := c.Request.Context()
	store := middleware.SessionFrom(c)
	if store == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	if h.flow.UsesState() && !store.ConsumeOAuthState(c.Query("state")) {
		slog.WarnContext(ctx, "auth callback with unknown state", "session", store.ID())
		c.Redirect(http.StatusFound, signInFailed)
		return
	}

	token, err := h.flow.Token(ctx, c.Request.URL.Query())
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, auth.ErrProviderDenied) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "auth callback rejected", "mode", h.flow.Mode(), "error", err)
		c.Redirect(http.StatusFound, signInFailed)
		return
	}

	store.CompleteAuth(ctx, token)
	if store.User() == nil {
		c.Redirect(http.StatusFound, signInFailed)
		return
	}
	c.Redirect(http.StatusFound, auth.LandingPath(store.IsAdmin()))
}

// logout signs out and returns home. The session is cleared even when the
// backend logout call fails.
// POST /auth/logout
func (h *Handler) logout(c *gin.Context) {
	if store := middleware.SessionFrom(c); store != nil {
		store.SignOut(c.Request.Context())
	}
	c.Redirect(http.StatusSeeOther, "/")
}
