// audit.go records admin writes to the audit trail.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/audit"
	"github.com/research-portal/research-portal/internal/models"
	"github.com/research-portal/research-portal/internal/safego"
)

// AuditOutcomeKey is set by a handler once a write has been applied. Its value
// is the past-tense verb ("created", "updated", "deleted").
const AuditOutcomeKey = "audit_outcome"

// MarkAudited tells AuditMiddleware that the current request changed data.
func MarkAudited(c *gin.Context, outcome string) {
	c.Set(AuditOutcomeKey, outcome)
}

// AuditMiddleware ships an entry for every admin write a handler marked as
// applied. With logFailed it also records writes that ended in a 4xx or 5xx.
func AuditMiddleware(shipper audit.Shipper, logFailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		// The session may be evicted mid-request; remember who started it.
		var user *models.User
		if v, ok := c.Get(UserKey); ok {
			user, _ = v.(*models.User)
		}

		c.Next()

		if shipper == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		outcome := c.GetString(AuditOutcomeKey)
		if outcome == "" {
			if status < http.StatusBadRequest || !logFailed {
				return
			}
			outcome = attemptedVerb(c) + "_failed"
		}

		entry := &audit.LogEntry{
			Timestamp:  time.Now().UTC(),
			Action:     c.Param("section") + "." + outcome,
			Section:    c.Param("section"),
			ResourceID: c.Param("id"),
			IPAddress:  c.ClientIP(),
			RequestID:  c.GetString(RequestIDKey),
			StatusCode: status,
		}
		if user != nil {
			entry.UserID = user.ID
			entry.UserEmail = user.Email
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shipper.Ship(ctx, entry); err != nil {
				slog.Error("audit: ship failed", "action", entry.Action, "error", err)
			}
		})
	}
}

// attemptedVerb names the write a route performs.
func attemptedVerb(c *gin.Context) string {
	switch path := c.FullPath(); {
	case strings.HasSuffix(path, "/delete"):
		return "delete"
	case strings.Contains(path, ":id"):
		return "update"
	default:
		return "create"
	}
}
