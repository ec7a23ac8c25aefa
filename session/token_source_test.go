package session_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	errs "github.com/BikyaITI/bikya-go-client/internal/errors"
	"github.com/BikyaITI/bikya-go-client/session"
	"github.com/BikyaITI/bikya-go-client/tokenstore"
)

func TestTokenSourceLoggedOut(t *testing.T) {
	f := newFixture(t, &fakeRefresher{}, nil)

	_, err := f.manager.TokenSource(context.Background()).Token()
	require.ErrorIs(t, err, errs.ErrNoSession)
}

func TestTokenSourceReturnsCurrentToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := makeToken(t, jwtlib.MapClaims{"nameid": "7", "exp": exp.Unix()})
	f := newFixture(t, &fakeRefresher{}, &tokenstore.Tokens{
		AccessToken:  token,
		RefreshToken: "r1",
	})

	got, err := f.manager.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, token, got.AccessToken)
	require.Equal(t, "r1", got.RefreshToken)
	require.Equal(t, "Bearer", got.TokenType)
	require.True(t, got.Expiry.Equal(exp))
}

func TestTokenSourceRefreshesExpiredToken(t *testing.T) {
	expired := makeToken(t, jwtlib.MapClaims{
		"nameid": "7",
		"exp":    time.Now().Add(-time.Minute).Unix(),
	})
	fresh := makeToken(t, jwtlib.MapClaims{
		"nameid": "7",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	refresher := &fakeRefresher{
		creds: &session.Credentials{AccessToken: fresh, RefreshToken: "r2"},
	}
	f := newFixture(t, refresher, &tokenstore.Tokens{
		AccessToken:  expired,
		RefreshToken: "r1",
	})

	got, err := f.manager.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, fresh, got.AccessToken)
	require.Equal(t, 1, refresher.callCount())
}
