package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	errs "github.com/BikyaITI/bikya-go-client/internal/errors"
	"github.com/BikyaITI/bikya-go-client/session"
)

// SessionSource is the slice of the session manager the transport depends on.
type SessionSource interface {
	AccessToken() string
	Refresh(ctx context.Context, staleToken string) (string, error)
	ClearSession(reason session.TeardownReason)
}

// authPaths are the backend routes that handle credentials themselves. They
// must never carry a bearer header: a stale token on /login would mask the
// real auth error.
var authPaths = []string{
	"/login",
	"/register",
	"/refresh",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
}

// AuthTransport is an http.RoundTripper that attaches the bearer token to
// outbound requests and drives the refresh-on-401 state machine: a 401 on an
// authenticated request triggers exactly one coalesced refresh, then one
// replay with the fresh token. A second 401 is returned to the caller as-is,
// and the original request's response or error is always what propagates,
// never the refresh call's.
type AuthTransport struct {
	base    http.RoundTripper
	session SessionSource
	log     zerolog.Logger
}

var _ http.RoundTripper = (*AuthTransport)(nil)

// TransportOption defines a function type to modify the AuthTransport instance.
type TransportOption func(*AuthTransport)

// WithBase sets the underlying RoundTripper (defaults to http.DefaultTransport).
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *AuthTransport) {
		t.base = base
	}
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) TransportOption {
	return func(t *AuthTransport) {
		t.log = log
	}
}

// New creates an AuthTransport bound to the given session.
func New(session SessionSource, options ...TransportOption) *AuthTransport {
	t := &AuthTransport{
		base:    http.DefaultTransport,
		session: session,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.New().String())
	}

	if isAuthPath(req.URL.Path) {
		req = req.Clone(req.Context())
		req.Header.Del("Authorization")
		return t.base.RoundTrip(req)
	}

	token := t.session.AccessToken()
	if token == "" {
		return t.base.RoundTrip(req)
	}

	// Buffer the body so the request can be replayed after a refresh.
	if req.Body != nil && req.GetBody == nil {
		body, err := io.ReadAll(req.Body)
		if closeErr := req.Body.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, errs.Wrapf(err, "[RoundTrip] buffering request body")
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.base.RoundTrip(authed)
	if err != nil {
		// network errors pass through untouched and never log the user out
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	fresh, refreshErr := t.session.Refresh(req.Context(), token)
	if refreshErr != nil {
		// the session is already torn down where appropriate; the caller
		// sees the original 401
		t.log.Debug().Err(refreshErr).Str("path", req.URL.Path).Msg("refresh after 401 failed")
		return resp, nil
	}

	drain(resp)

	replay := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errs.Wrapf(err, "[RoundTrip] rebuilding request body for replay")
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+fresh)

	t.log.Debug().Str("path", req.URL.Path).Msg("replaying request with refreshed token")
	replayed, err := t.base.RoundTrip(replay)
	if err != nil {
		return nil, err
	}
	if replayed.StatusCode == http.StatusUnauthorized {
		// the freshly issued token was rejected; retrying further would
		// loop, so the session is fatally broken
		t.log.Warn().Str("path", req.URL.Path).Msg("replayed request rejected, clearing session")
		t.session.ClearSession(session.TeardownRefreshFailed)
	}
	return replayed, nil
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func isAuthPath(path string) bool {
	for _, p := range authPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}
