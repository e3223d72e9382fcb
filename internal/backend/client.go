// Package backend is the HTTP client adapter for the research group REST API.
// It attaches the caller's bearer token, classifies failures into a small error
// taxonomy and turns any 401 into an eviction of the caller's session.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/research-portal/research-portal/internal/telemetry"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultLoginPath = "/auth/google"
	maxErrorBody     = 64 << 10
)

// Credentials supplies the bearer token for outgoing calls and is told when the
// backend rejects it. A session store implements it.
type Credentials interface {
	// Token returns the current bearer token, or "" for anonymous calls.
	Token() string
	// Unauthorized is invoked once per 401 response with the token that was rejected.
	Unauthorized(ctx context.Context, token string)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	LoginPath  string
	HealthPath string
	UserAgent  string
	HTTPClient *http.Client
}

// Client holds the connection settings shared by all sessions.
type Client struct {
	baseURL    string
	loginPath  string
	healthPath string
	userAgent  string
	httpClient *http.Client
}

// New creates a Client. The HTTP client's Timeout bounds every call.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", opts.BaseURL, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = defaultLoginPath
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "research-portal"
	}

	return &Client{
		baseURL:    base,
		loginPath:  loginPath,
		healthPath: opts.HealthPath,
		userAgent:  userAgent,
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoginURL is where the browser is sent to start the backend's OAuth flow.
func (c *Client) LoginURL() string {
	return c.baseURL + c.loginPath
}

// With binds the client to one session's credentials. creds may be nil for
// purely anonymous callers.
func (c *Client) With(creds Credentials) *Caller {
	return &Caller{client: c, creds: creds}
}

// Ping checks that the backend answers at all. Any response below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return fmt.Errorf("backend: create ping request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(KindTransportFailure, 0, "backend unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return NewError(KindTransportFailure, resp.StatusCode, "backend unhealthy", nil)
	}
	return nil
}

// Caller performs requests on behalf of a single session.
type Caller struct {
	client *Client
	creds  Credentials
}

// Do sends one request. in, when non-nil, is sent as the JSON body; out, when
// non-nil, receives the decoded JSON response. resource only labels metrics.
func (c *Caller) Do(ctx context.Context, resource, method, path string, in, out any) error {
	start := time.Now()
	err := c.do(ctx, method, path, in, out)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	telemetry.BackendRequestsTotal.WithLabelValues(resource, method, outcome).Inc()
	telemetry.BackendRequestDuration.WithLabelValues(resource, method).Observe(time.Since(start).Seconds())

	if err != nil {
		slog.WarnContext(ctx, "backend call failed",
			"resource", resource, "method", method, "path", path, "outcome", outcome, "error", err)
	}
	return err
}

func (c *Caller) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.client.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.client.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	var token string
	if c.creds != nil {
		token = c.creds.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		return NewError(KindTransportFailure, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := classifyStatus(resp.StatusCode)
		if kind == KindAuthExpired && c.creds != nil {
			c.creds.Unauthorized(ctx, token)
		}
		return NewError(kind, resp.StatusCode, errorMessage(raw, resp.StatusCode), nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(KindTransportFailure, resp.StatusCode, "read response", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(KindTransportFailure, resp.StatusCode, "invalid response body", err)
	}
	return nil
}

// errorMessage extracts a human readable reason from a JSON error body.
// The backend uses either {"message": ...} or {"error": ...}.
func errorMessage(raw []byte, status int) string {
	var payload struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, v := range []any{payload.Message, payload.Error} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case []any:
				parts := make([]string, 0, len(m))
				for _, p := range m {
					parts = append(parts, fmt.Sprint(p))
				}
				if len(parts) > 0 {
					return strings.Join(parts, "; ")
				}
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}

// StaticToken is a Credentials holding a fixed token that ignores rejections.
type StaticToken string

func (t StaticToken) Token() string                        { return string(t) }
func (t StaticToken) Unauthorized(context.Context, string) {}
