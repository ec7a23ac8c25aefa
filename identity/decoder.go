package identity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/BikyaITI/bikya-go-client/internal/errors"
	"github.com/BikyaITI/bikya-go-client/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Legacy claim URIs emitted by the backend's token issuer. The issuer has
// changed claim naming over time, so every logical field is looked up through
// an ordered candidate list, first non-empty match wins.
const (
	claimURINameID = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimURIName   = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	claimURIEmail  = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	claimURIRole   = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

var (
	subjectClaims  = []string{"nameid", "sub", claimURINameID, "userId", "uid"}
	userNameClaims = []string{"unique_name", "username", "preferred_username", claimURIName}
	emailClaims    = []string{"email", claimURIEmail}
	fullNameClaims = []string{"fullName", "name", "given_name", claimURIName}
	roleClaims     = []string{"role", "roles", claimURIRole}
)

// Decode extracts an Identity from a raw access token without verifying its
// signature. Verification is the backend's job; the client only needs the
// claims for display and role gating. A missing or unparseable subject claim
// fails with ErrDecodeFailed.
func Decode(rawToken string) (*Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.Wrapf(errors.ErrDecodeFailed, "empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDecodeFailed, "parse token: %s", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrDecodeFailed, "error extracting claims")
	}

	id, err := subjectID(claims)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		ID:       id,
		UserName: firstString(claims, userNameClaims),
		Email:    firstString(claims, emailClaims),
		FullName: firstString(claims, fullNameClaims),
		Roles:    roleSet(claims),
	}

	if iat, ok := claims["iat"].(float64); ok {
		identity.CreatedAt = time.Unix(int64(iat), 0).UTC()
	}

	return identity, nil
}

// Expiry reports the exp claim of the token without verifying it. Local
// expiry is a best-effort hint only; a 401 from the backend is authoritative.
func Expiry(rawToken string) (time.Time, error) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return time.Time{}, fmt.Errorf("error extracting claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("token missing exp claim")
	}

	return time.Unix(int64(exp), 0), nil
}

// ExpiresWithin reports whether the token's exp claim falls inside the given
// window from now. Tokens without a readable exp claim are treated as
// expiring, so callers fall through to the reactive 401 path.
func ExpiresWithin(rawToken string, window time.Duration) bool {
	exp, err := Expiry(rawToken)
	if err != nil {
		return true
	}
	return NowTimeFunc().Add(window).After(exp)
}

// subjectID resolves the mandatory user ID from the subject claim candidates.
func subjectID(claims jwtlib.MapClaims) (int64, error) {
	for _, key := range subjectClaims {
		switch v := claims[key].(type) {
		case string:
			if v == "" {
				continue
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, errors.Wrapf(errors.ErrDecodeFailed, "subject claim %q is not numeric: %s", key, v)
			}
			return id, nil
		case float64:
			return int64(v), nil
		}
	}
	return 0, errors.Wrapf(errors.ErrDecodeFailed, "missing subject claim")
}

// firstString returns the first non-empty string value among the candidates.
func firstString(claims jwtlib.MapClaims, candidates []string) string {
	for _, key := range candidates {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// roleSet normalizes the roles claim, which may be a single string or a
// collection, into a RoleSet.
func roleSet(claims jwtlib.MapClaims) RoleSet {
	for _, key := range roleClaims {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return FromStrings([]string{v})
			}
		case []any:
			return FromStrings(utils.ToStringSlice(v))
		}
	}
	return NewRoleSet()
}
