package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/research-portal/research-portal/internal/backend/backendtest"
	"github.com/research-portal/research-portal/internal/config"
)

// portal is a running router over an in-memory backend, driven by a browser
// that keeps cookies and does not follow redirects.
type portal struct {
	t       *testing.T
	backend *backendtest.Server
	server  *httptest.Server
	client  *http.Client
}

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, BaseURL: "http://localhost:8080", DevMode: true},
		Backend: config.BackendConfig{
			URL:        backendURL,
			Timeout:    2 * time.Second,
			LoginPath:  "/auth/google",
			HealthPath: "/",
		},
		Auth: config.AuthConfig{Mode: config.AuthModeBackend},
		Session: config.SessionConfig{
			CookieName:    "rp_session",
			CookieMaxAge:  time.Hour,
			Store:         config.SessionStoreMemory,
			IdleTTL:       time.Hour,
			SweepInterval: time.Hour,
			BootTimeout:   2 * time.Second,
			BootWait:      2 * time.Second,
		},
		I18n: config.I18nConfig{DefaultLanguage: "en", Supported: []string{"en", "es"}},
		Site: config.SiteConfig{Name: "Research Group", PublicationsCount: 12},
	}
}

func newPortal(t *testing.T, mutate ...func(*config.Config)) *portal {
	t.Helper()
	be := backendtest.New(t)
	cfg := testConfig(be.URL)
	for _, m := range mutate {
		m(cfg)
	}

	router, bg, err := NewRouter(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(bg.Shutdown)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &portal{t: t, backend: be, server: srv, client: client}
}

type response struct {
	Status   int
	Location string
	Body     string
	Header   http.Header
}

func (p *portal) do(req *http.Request) response {
	p.t.Helper()
	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	return response{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Body: string(body), Header: resp.Header}
}

func (p *portal) get(path string, headers ...string) response {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodGet, p.server.URL+path, nil)
	require.NoError(p.t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return p.do(req)
}

func (p *portal) post(path string, form url.Values) response {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodPost, p.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req)
}

// signIn completes the backend callback with token and returns the landing path.
func (p *portal) signIn(token string) string {
	p.t.Helper()
	resp := p.get("/auth/callback?token=" + url.QueryEscape(token))
	require.Equal(p.t, http.StatusFound, resp.Status)
	return resp.Location
}

var csrfInput = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// csrfToken reads the token embedded in the page at path.
func (p *portal) csrfToken(path string) string {
	p.t.Helper()
	m := csrfInput.FindStringSubmatch(p.get(path).Body)
	require.Len(p.t, m, 2, "page %s carries no csrf token", path)
	return m[1]
}
