package backend

import (
	"context"
	"net/http"

	"github.com/research-portal/research-portal/internal/models"
)

const authResource = "auth"

// Profile fetches the signed-in user's profile with the caller's token.
func (c *Caller) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.Do(ctx, authResource, http.MethodGet, "/auth/profile", nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" && user.Email == "" {
		return nil, NewError(KindTransportFailure, http.StatusOK, "empty profile", nil)
	}
	return &user, nil
}

// Logout tells the backend to invalidate the caller's token.
func (c *Caller) Logout(ctx context.Context) error {
	return c.Do(ctx, authResource, http.MethodPost, "/auth/logout", nil, nil)
}
