// Package auth - flow.go defines the two ways a visitor can sign in: through the
// backend's own OAuth entry point, or through an OIDC provider the portal talks to
// directly. Either way the result is a bearer token for the backend API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrMissingToken   = errors.New("auth callback carried no token")
	ErrMissingCode    = errors.New("auth callback carried no authorization code")
	ErrProviderDenied = errors.New("identity provider returned an error")
)

// Flow starts and completes a sign-in.
type Flow interface {
	// Mode names the flow for logs and templates.
	Mode() string
	// UsesState reports whether the callback must echo an OAuth state parameter.
	UsesState() bool
	// AuthURL is where the browser is sent to sign in.
	AuthURL(state string) string
	// Token turns callback query parameters into a backend bearer token.
	Token(ctx context.Context, params url.Values) (string, error)
}

// GenerateState returns a random OAuth state value.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CallbackError returns ErrProviderDenied when params carry an OAuth error.
func CallbackError(params url.Values) error {
	if code := params.Get("error"); code != "" {
		if desc := params.Get("error_description"); desc != "" {
			return fmt.Errorf("%w: %s: %s", ErrProviderDenied, code, desc)
		}
		return fmt.Errorf("%w: %s", ErrProviderDenied, code)
	}
	return nil
}

// BackendFlow delegates the whole OAuth exchange to the backend, which redirects
// back with ?token=<bearer>.
type BackendFlow struct {
	loginURL string
}

// NewBackendFlow creates a flow that starts at loginURL.
func NewBackendFlow(loginURL string) *BackendFlow {
	return &BackendFlow{loginURL: loginURL}
}

func (f *BackendFlow) Mode() string    { return "backend" }
func (f *BackendFlow) UsesState() bool { return false }

func (f *BackendFlow) AuthURL(string) string {
	return f.loginURL
}

func (f *BackendFlow) Token(_ context.Context, params url.Values) (string, error) {
	if err := CallbackError(params); err != nil {
		return "", err
	}
	token := params.Get("token")
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
