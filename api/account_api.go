package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/BikyaITI/bikya-go-client/identity"
)

// ChangePasswordRequest carries the payload for PUT /change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AccountAPI binds the authenticated account endpoints. It must be
// constructed with a client whose transport attaches the bearer token.
type AccountAPI struct {
	baseURL string
	http    *HTTPClient
	log     zerolog.Logger
}

// NewAccountAPI creates an AccountAPI rooted at the given base URL.
func NewAccountAPI(baseURL string, client *HTTPClient, log zerolog.Logger) *AccountAPI {
	return &AccountAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		log:     log,
	}
}

// Profile fetches the logged-in user's profile via GET /profile.
func (a *AccountAPI) Profile(ctx context.Context) (*identity.Identity, error) {
	envelope, err := doEnvelope[identity.Identity](ctx, a.http, http.MethodGet, a.baseURL+"/profile", nil)
	if err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// ChangePassword updates the account password via PUT /change-password.
func (a *AccountAPI) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	_, err := doEnvelope[struct{}](ctx, a.http, http.MethodPut, a.baseURL+"/change-password", req)
	return err
}

// Logout revokes the refresh token server-side via POST /logout. Local
// session teardown is the session manager's job and must happen regardless
// of whether this call succeeds.
func (a *AccountAPI) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	_, err := doEnvelope[struct{}](ctx, a.http, http.MethodPost, a.baseURL+"/logout", body)
	if err != nil {
		a.log.Debug().Err(err).Msg("server-side logout failed")
	}
	return err
}
