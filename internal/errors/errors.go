package errors

import (
	stderrors "errors"

	pkgerrors "github.com/pkg/errors"
)

// Common error types for the Bikya API client
var (
	// Session errors
	ErrNoSession     = stderrors.New("no active session")
	ErrSessionClosed = stderrors.New("session closed")
	ErrEmptyToken    = stderrors.New("empty access token")
	ErrDecodeFailed  = stderrors.New("access token decode failed")

	// Refresh errors
	ErrRefreshFailed  = stderrors.New("token refresh failed")
	ErrNoRefreshToken = stderrors.New("no refresh token available")

	// HTTP errors
	ErrUnauthorized = stderrors.New("unauthorized")
	ErrForbidden    = stderrors.New("forbidden")
	ErrNetwork      = stderrors.New("network error")

	// Envelope errors
	ErrEnvelopeFailure = stderrors.New("request rejected by server")
)

// Wrapf annotates an error with context while keeping the original reachable
// through errors.Is / errors.As.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithMessagef(err, format, args...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
