package session

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/BikyaITI/bikya-go-client/identity"
	errs "github.com/BikyaITI/bikya-go-client/internal/errors"
)

// TokenSource adapts the manager to oauth2.TokenSource so the session can be
// plugged into oauth2-aware HTTP stacks. The returned source refreshes
// through the manager's coalesced exchange when the stored token has
// expired locally.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{manager: m, ctx: ctx}
}

type managerTokenSource struct {
	manager *Manager
	ctx     context.Context
}

var _ oauth2.TokenSource = (*managerTokenSource)(nil)

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	access := ts.manager.AccessToken()
	if access == "" {
		return nil, errs.ErrNoSession
	}

	if identity.ExpiresWithin(access, 0) {
		refreshed, err := ts.manager.Refresh(ts.ctx, access)
		if err != nil {
			return nil, err
		}
		access = refreshed
	}

	token := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: ts.manager.RefreshToken(),
		TokenType:    "Bearer",
	}
	if exp, err := identity.Expiry(access); err == nil {
		token.Expiry = exp
	}
	return token, nil
}
