package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// newRequestIDRouter echoes the id seen by the handler through both the gin
// context and the request context.
func newRequestIDRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.Header("X-Gin-ID", c.GetString(RequestIDKey))
		c.Header("X-Ctx-ID", RequestIDFrom(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDMiddleware_GeneratesUUIDWhenAbsent(t *testing.T) {
	w := serve(newRequestIDRouter(), http.MethodGet, "/")

	id := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-ID %q is not a UUID: %v", id, err)
	}
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	const upstreamID = "upstream-provided-request-id-001"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, upstreamID)
	w := httptest.NewRecorder()
	newRequestIDRouter().ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != upstreamID {
		t.Errorf("response X-Request-ID = %q, want %q", got, upstreamID)
	}
}

func TestRequestIDMiddleware_StoresIDInBothContexts(t *testing.T) {
	w := serve(newRequestIDRouter(), http.MethodGet, "/")

	id := w.Header().Get(RequestIDHeader)
	if got := w.Header().Get("X-Gin-ID"); got != id {
		t.Errorf("gin context id = %q, want %q", got, id)
	}
	if got := w.Header().Get("X-Ctx-ID"); got != id {
		t.Errorf("request context id = %q, want %q", got, id)
	}
}

func TestRequestIDMiddleware_DifferentIDsPerRequest(t *testing.T) {
	r := newRequestIDRouter()
	seen := make(map[string]bool, 10)
	for i := range 10 {
		id := serve(r, http.MethodGet, "/").Header().Get(RequestIDHeader)
		if seen[id] {
			t.Errorf("duplicate request ID %q on iteration %d", id, i)
		}
		seen[id] = true
	}
}

func TestRequestIDFrom_EmptyWithoutMiddleware(t *testing.T) {
	if id := RequestIDFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("RequestIDFrom() = %q, want empty", id)
	}
}
