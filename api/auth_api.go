package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/BikyaITI/bikya-go-client/identity"
	"github.com/BikyaITI/bikya-go-client/session"
)

// authPayload is the data portion of login, register and refresh responses.
type authPayload struct {
	Token        string             `json:"token"`
	RefreshToken string             `json:"refreshToken"`
	UserID       int64              `json:"userId,omitempty"`
	Email        string             `json:"email,omitempty"`
	FullName     string             `json:"fullName,omitempty"`
	User         *identity.Identity `json:"user,omitempty"`
}

// credentials converts the payload for the session manager. When the
// response omits the user object the manager decodes the token instead.
func (p *authPayload) credentials() *session.Credentials {
	return &session.Credentials{
		AccessToken:  p.Token,
		RefreshToken: p.RefreshToken,
		User:         p.User,
	}
}

// LoginRequest carries user credentials for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries the registration form for POST /register.
type RegisterRequest struct {
	UserName        string `json:"userName"`
	Email           string `json:"email"`
	FullName        string `json:"fullName"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ResetPasswordRequest completes a forgot-password flow.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// VerifyEmailRequest confirms a registration email.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// AuthAPI binds the public authentication endpoints. These routes never
// carry a bearer token, so AuthAPI works with the unauthenticated client and
// is safe to call from inside the refresh path.
type AuthAPI struct {
	baseURL string
	http    *HTTPClient
	log     zerolog.Logger
}

var _ session.Refresher = (*AuthAPI)(nil)

// NewAuthAPI creates an AuthAPI rooted at the given base URL.
func NewAuthAPI(baseURL string, client *HTTPClient, log zerolog.Logger) *AuthAPI {
	return &AuthAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		log:     log,
	}
}

// Login exchanges credentials for a token pair via POST /login.
func (a *AuthAPI) Login(ctx context.Context, req LoginRequest) (*session.Credentials, error) {
	envelope, err := doEnvelope[authPayload](ctx, a.http, http.MethodPost, a.baseURL+"/login", req)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("email", req.Email).Msg("login succeeded")
	return envelope.Data.credentials(), nil
}

// Register creates an account via POST /register and returns its first
// token pair.
func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*session.Credentials, error) {
	envelope, err := doEnvelope[authPayload](ctx, a.http, http.MethodPost, a.baseURL+"/register", req)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("email", req.Email).Msg("registration succeeded")
	return envelope.Data.credentials(), nil
}

// ExchangeRefreshToken implements session.Refresher via POST /refresh.
func (a *AuthAPI) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*session.Credentials, error) {
	body := map[string]string{"refreshToken": refreshToken}
	envelope, err := doEnvelope[authPayload](ctx, a.http, http.MethodPost, a.baseURL+"/refresh", body)
	if err != nil {
		return nil, err
	}
	return envelope.Data.credentials(), nil
}

// ForgotPassword requests a password-reset email via POST /forgot-password.
func (a *AuthAPI) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	_, err := doEnvelope[struct{}](ctx, a.http, http.MethodPost, a.baseURL+"/forgot-password", body)
	return err
}

// ResetPassword completes the reset flow via POST /reset-password.
func (a *AuthAPI) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	_, err := doEnvelope[struct{}](ctx, a.http, http.MethodPost, a.baseURL+"/reset-password", req)
	return err
}

// VerifyEmail confirms a registration via POST /verify-email.
func (a *AuthAPI) VerifyEmail(ctx context.Context, req VerifyEmailRequest) error {
	_, err := doEnvelope[struct{}](ctx, a.http, http.MethodPost, a.baseURL+"/verify-email", req)
	return err
}
