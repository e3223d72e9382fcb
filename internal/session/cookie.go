// Package session - cookie.go signs and verifies the browser session cookie. The
// cookie carries only the session id; the token and profile never leave the server.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const cookieIssuer = "research-portal"

// Claims is the payload of the session cookie.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieCodec issues and parses HS256-signed session cookies.
type CookieCodec struct {
	secret []byte
	maxAge time.Duration
}

// ResolveSecret returns the configured secret. Without one, development mode gets a
// random secret (sessions do not survive restarts) and production fails fast.
func ResolveSecret(configured string, devMode bool) (string, error) {
	if configured != "" {
		if len(configured) < 32 {
			slog.Warn("session secret is shorter than the recommended 32 characters")
		}
		return configured, nil
	}
	if !devMode {
		return "", errors.New("RP_SESSION_SECRET is required outside development. " +
			"Generate one with: go run ./scripts/generate-key.go")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	slog.Warn("RP_SESSION_SECRET not set; using an auto-generated secret, sessions will not survive restarts")
	return hex.EncodeToString(buf), nil
}

// NewCookieCodec creates a codec. maxAge bounds how long a cookie is accepted.
func NewCookieCodec(secret string, maxAge time.Duration) (*CookieCodec, error) {
	if secret == "" {
		return nil, errors.New("session: cookie secret is required")
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	return &CookieCodec{secret: []byte(secret), maxAge: maxAge}, nil
}

// MaxAge is the lifetime given to issued cookies.
func (c *CookieCodec) MaxAge() time.Duration {
	return c.maxAge
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Issue signs a cookie value for sid.
func (c *CookieCodec) Issue(sid string) (string, error) {
	now := time.Now()
	claims := &Claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cookieIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse verifies value and returns the session id it names.
func (c *CookieCodec) Parse(value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithIssuer(cookieIssuer))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.New("invalid session cookie")
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	return claims.SessionID, nil
}
