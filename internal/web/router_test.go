package web

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-portal/research-portal/internal/middleware"
)

func TestCSRFKey(t *testing.T) {
	a, err := csrfKey("", "session-secret")
	require.NoError(t, err)
	assert.Len(t, a, 32)

	b, err := csrfKey("", "session-secret")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := csrfKey("explicit", "session-secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestNewRouter_ProductionNeedsSessionSecret(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Server.DevMode = false
	_, _, err := NewRouter(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewRouter_InvalidBackendURL(t *testing.T) {
	cfg := testConfig("")
	_, _, err := NewRouter(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestLoggerMiddleware_LogsRequestWithID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), LoggerMiddleware())
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom?x=1", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"path":"/boom"`)
	assert.Contains(t, out, `"query":"x=1"`)
	assert.Contains(t, out, `"request_id":"req-123"`)
}
