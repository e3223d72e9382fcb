package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/auth"
)

// WaitRenderer writes the neutral page shown while a session is still loading.
type WaitRenderer func(c *gin.Context)

// DefaultWaitPage is a minimal self-refreshing page.
func DefaultWaitPage(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(
		`<!doctype html><html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head>`+
			`<body><p>Loading…</p></body></html>`))
}

// RequireSession gates a route group on the session bound by SessionMiddleware.
// While the session loads it renders wait (status 200, never a redirect); an
// anonymous visitor, or a non-admin when requireAdmin is set, is redirected home.
func RequireSession(requireAdmin bool, wait WaitRenderer) gin.HandlerFunc {
	if wait == nil {
		wait = DefaultWaitPage
	}
	return func(c *gin.Context) {
		in := auth.GuardInput{}
		if store := SessionFrom(c); store != nil {
			in = auth.GuardInput{
				Loading: store.Loading(),
				HasUser: store.User() != nil,
				IsAdmin: store.IsAdmin(),
			}
		}

		switch auth.Evaluate(in, requireAdmin) {
		case auth.Allow:
			c.Next()
		case auth.Wait:
			wait(c)
			c.Abort()
		default:
			c.Redirect(http.StatusFound, auth.RedirectTarget)
			c.Abort()
		}
	}
}

// RequireAdmin is RequireSession for admin-only views.
func RequireAdmin(wait WaitRenderer) gin.HandlerFunc {
	return RequireSession(true, wait)
}
