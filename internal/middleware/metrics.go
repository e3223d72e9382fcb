// Package middleware provides the gin middleware of the portal: request ids,
// metrics, security headers, rate limiting, CSRF, session binding and the
// route guard. Everything here is registered in internal/web/router.go.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/research-portal/research-portal/internal/telemetry"
)

// noRoute labels requests that matched no route so stray URLs do not add series.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds
// for every request, labelled by the gin route template (c.FullPath()).
//
// Register it after gin.Recovery() and RequestIDMiddleware so the final status
// written by error handlers is the one recorded.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
