package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/research-portal/research-portal/internal/telemetry"
)

func newMetricsRouter(status int) *gin.Engine {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/projects/:id", func(c *gin.Context) { c.Status(status) })
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestMetricsMiddleware_CountsByRouteTemplate(t *testing.T) {
	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", "/projects/:id", "200")
	before := testutil.ToFloat64(counter)

	serve(newMetricsRouter(http.StatusOK), http.MethodGet, "/projects/42")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("http_requests_total{path=/projects/:id} moved by %.0f, want 1", got)
	}
	if n := testutil.ToFloat64(telemetry.HTTPRequestsTotal.WithLabelValues("GET", "/projects/42", "200")); n != 0 {
		t.Errorf("raw URL used as path label (%.0f samples)", n)
	}
}

func TestMetricsMiddleware_RecordsErrorStatus(t *testing.T) {
	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", "/projects/:id", "500")
	before := testutil.ToFloat64(counter)

	serve(newMetricsRouter(http.StatusInternalServerError), http.MethodGet, "/projects/x")

	if testutil.ToFloat64(counter)-before != 1 {
		t.Error("http_requests_total for status=500 not incremented")
	}
}

func TestMetricsMiddleware_ObservesDuration(t *testing.T) {
	before := testutil.CollectAndCount(telemetry.HTTPRequestDuration)
	serve(newMetricsRouter(http.StatusOK), http.MethodGet, "/projects/7")
	if testutil.CollectAndCount(telemetry.HTTPRequestDuration) < max(before, 1) {
		t.Error("http_request_duration_seconds has no series after a request")
	}
}

func TestMetricsMiddleware_NoRouteLabel(t *testing.T) {
	counter := telemetry.HTTPRequestsTotal.WithLabelValues("GET", noRoute, "404")
	before := testutil.ToFloat64(counter)

	r := gin.New()
	r.Use(MetricsMiddleware())
	serve(r, http.MethodGet, "/does-not-exist")

	if testutil.ToFloat64(counter)-before != 1 {
		t.Error("unmatched request was not recorded under <no-route>")
	}
}
