package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/BikyaITI/bikya-go-client/identity"
	errs "github.com/BikyaITI/bikya-go-client/internal/errors"
	"github.com/BikyaITI/bikya-go-client/tokenstore"
)

// TeardownReason explains why a session was cleared. It replaces scattered
// per-call-site logging with one structured diagnostic at the single
// teardown entry point.
type TeardownReason string

const (
	TeardownUserInitiated TeardownReason = "user_initiated"
	TeardownRefreshFailed TeardownReason = "refresh_failed"
	TeardownDecodeFailed  TeardownReason = "decode_failed"
	TeardownForbidden     TeardownReason = "forbidden"
)

// Credentials mirrors the auth payload of login, register and refresh
// responses. User is optional; when absent the identity is decoded from the
// access token.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         *identity.Identity
}

// Refresher exchanges a refresh token for a fresh credential pair.
type Refresher interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*Credentials, error)
}

// Manager is the single owner of the current-session state. All mutation
// goes through SetSession, ClearSession and the coalesced Refresh; every
// change is persisted to the token store and emitted to subscribers in
// completion order.
type Manager struct {
	store      tokenstore.Repo
	refresher  Refresher
	log        zerolog.Logger
	onTeardown func(TeardownReason)
	nowTime    func() time.Time

	refreshGroup singleflight.Group

	lock    sync.Mutex
	state   *tokenstore.Tokens
	gen     uint64 // bumped on every mutation; stale refreshes compare against it
	subs    map[int]chan *identity.Identity
	nextSub int
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithLogger sets the structured logger used for session diagnostics.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithTeardownHook registers a callback invoked after every session
// teardown, e.g. to route the UI back to the login entry point.
func WithTeardownHook(hook func(TeardownReason)) ManagerOption {
	return func(m *Manager) {
		m.onTeardown = hook
	}
}

// NewManager initializes a Manager and restores any persisted session: a
// cached user object is trusted verbatim, otherwise the identity is decoded
// from the stored access token, and if that fails too the partial state is
// destroyed and the manager starts logged out.
func NewManager(store tokenstore.Repo, refresher Refresher, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errs.Wrapf(errs.ErrNoSession, "[NewManager] token store is required")
	}
	if refresher == nil {
		return nil, errs.Wrapf(errs.ErrNoSession, "[NewManager] refresher is required")
	}

	m := &Manager{
		store:     store,
		refresher: refresher,
		log:       zerolog.Nop(),
		nowTime:   time.Now,
		subs:      make(map[int]chan *identity.Identity),
	}

	for _, opt := range options {
		opt(m)
	}

	m.restore()
	return m, nil
}

// restore loads the persisted session, enforcing the both-or-neither
// invariant between token and user.
func (m *Manager) restore() {
	tokens, err := m.store.Get()
	if err != nil {
		m.log.Warn().Err(err).Msg("session restore failed, starting logged out")
		return
	}
	if tokens == nil || tokens.AccessToken == "" {
		if tokens != nil {
			// refresh token without an access token is partial state
			m.clearStore()
		}
		return
	}

	if tokens.User == nil {
		decoded, derr := identity.Decode(tokens.AccessToken)
		if derr != nil {
			m.log.Info().Str("reason", string(TeardownDecodeFailed)).Msg("session cleared")
			m.clearStore()
			return
		}
		tokens.User = decoded
	}

	m.state = tokens
	m.log.Debug().Int64("user_id", tokens.User.ID).Msg("session restored")
}

// SetSession installs the credential pair from a login, register or refresh
// response. The access token must be non-empty; when the response carries no
// user object the identity is decoded from the token, and a decode failure
// tears the whole session down.
func (m *Manager) SetSession(creds *Credentials) (*identity.Identity, error) {
	if creds == nil || strings.TrimSpace(creds.AccessToken) == "" {
		return nil, errs.ErrEmptyToken
	}

	user := creds.User
	if user == nil {
		decoded, err := identity.Decode(creds.AccessToken)
		if err != nil {
			m.ClearSession(TeardownDecodeFailed)
			return nil, err
		}
		user = decoded
	}

	tokens := &tokenstore.Tokens{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         user,
	}

	m.lock.Lock()
	if err := m.store.Save(tokens); err != nil {
		m.lock.Unlock()
		return nil, errs.Wrapf(err, "[SetSession] persisting session")
	}
	m.gen++
	m.state = tokens
	m.emitLocked(user)
	m.lock.Unlock()

	m.log.Info().Int64("user_id", user.ID).Msg("session established")
	return user, nil
}

// ClearSession wipes the token store and emits a logged-out state. It is
// idempotent; clearing an already logged-out manager is a no-op apart from
// the store wipe.
func (m *Manager) ClearSession(reason TeardownReason) {
	m.lock.Lock()
	notify := m.teardownLocked(reason)
	m.lock.Unlock()

	if notify && m.onTeardown != nil {
		m.onTeardown(reason)
	}
}

// teardownLocked clears state under the lock and reports whether a session
// was actually torn down.
func (m *Manager) teardownLocked(reason TeardownReason) bool {
	m.clearStore()
	m.gen++
	if m.state == nil {
		return false
	}
	m.state = nil
	m.emitLocked(nil)
	m.log.Info().Str("reason", string(reason)).Msg("session cleared")
	return true
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing token store failed")
	}
}

// CurrentUser returns a synchronous snapshot of the logged-in identity, or
// nil when logged out.
func (m *Manager) CurrentUser() *identity.Identity {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.User
}

// AccessToken returns the current access token, or "" when logged out.
func (m *Manager) AccessToken() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == nil {
		return ""
	}
	return m.state.AccessToken
}

// RefreshToken returns the current refresh token, or "" when logged out.
func (m *Manager) RefreshToken() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == nil {
		return ""
	}
	return m.state.RefreshToken
}

// Subscribe registers a listener for session changes. The current state is
// delivered immediately, then every login, refresh and logout in completion
// order. The returned cancel function unregisters the listener.
func (m *Manager) Subscribe() (<-chan *identity.Identity, func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ch := make(chan *identity.Identity, 16)
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	if m.state != nil {
		ch <- m.state.User
	} else {
		ch <- nil
	}

	cancel := func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// emitLocked fans the new state out to subscribers. Slow subscribers drop
// updates rather than block the session lock.
func (m *Manager) emitLocked(user *identity.Identity) {
	for _, ch := range m.subs {
		select {
		case ch <- user:
		default:
			m.log.Warn().Msg("dropping session update for slow subscriber")
		}
	}
}

// Refresh exchanges the refresh token for a new access token and returns it.
// Concurrent callers holding the same stale token coalesce into a single
// exchange; callers whose token was already replaced get the fresh token
// without a network call. Exchange failure tears the session down with
// TeardownRefreshFailed, and an exchange resolving after a logout is
// discarded.
func (m *Manager) Refresh(ctx context.Context, staleToken string) (string, error) {
	m.lock.Lock()
	if m.state == nil {
		m.lock.Unlock()
		return "", errs.ErrNoSession
	}
	if m.state.AccessToken != staleToken {
		fresh := m.state.AccessToken
		m.lock.Unlock()
		return fresh, nil
	}
	m.lock.Unlock()

	// The exchange is shared between callers, so it must not die with the
	// first caller's context.
	exchangeCtx := context.WithoutCancel(ctx)

	token, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		// re-check under the flight: a caller may join just after a
		// finished exchange already replaced the token
		m.lock.Lock()
		if m.state == nil {
			m.lock.Unlock()
			return nil, errs.ErrSessionClosed
		}
		if m.state.AccessToken != staleToken {
			fresh := m.state.AccessToken
			m.lock.Unlock()
			return fresh, nil
		}
		refreshToken := m.state.RefreshToken
		startGen := m.gen
		m.lock.Unlock()

		if refreshToken == "" {
			m.teardownIfUnchanged(startGen, TeardownRefreshFailed)
			return nil, errs.ErrNoRefreshToken
		}

		creds, err := m.refresher.ExchangeRefreshToken(exchangeCtx, refreshToken)
		if err != nil {
			m.log.Warn().Err(err).Msg("refresh exchange failed")
			m.teardownIfUnchanged(startGen, TeardownRefreshFailed)
			return nil, errs.Wrapf(errs.ErrRefreshFailed, "%s", err)
		}
		return m.commitRefresh(startGen, creds)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// commitRefresh installs the exchanged credentials unless the session
// mutated since the exchange started (logout wins over in-flight refresh).
func (m *Manager) commitRefresh(startGen uint64, creds *Credentials) (string, error) {
	if strings.TrimSpace(creds.AccessToken) == "" {
		m.teardownIfUnchanged(startGen, TeardownRefreshFailed)
		return "", errs.Wrapf(errs.ErrRefreshFailed, "refresh response carried no token")
	}

	user := creds.User
	if user == nil {
		if decoded, err := identity.Decode(creds.AccessToken); err == nil {
			user = decoded
		}
	}

	m.lock.Lock()
	if m.gen != startGen || m.state == nil {
		m.lock.Unlock()
		m.log.Debug().Msg("discarding refresh result, session mutated while in flight")
		return "", errs.ErrSessionClosed
	}

	if user == nil {
		// token rotation does not change who is logged in
		user = m.state.User
	}
	if user == nil {
		notify := m.teardownLocked(TeardownDecodeFailed)
		m.lock.Unlock()
		if notify && m.onTeardown != nil {
			m.onTeardown(TeardownDecodeFailed)
		}
		return "", errs.ErrDecodeFailed
	}

	refreshToken := creds.RefreshToken
	if refreshToken == "" {
		refreshToken = m.state.RefreshToken
	}

	tokens := &tokenstore.Tokens{
		AccessToken:  creds.AccessToken,
		RefreshToken: refreshToken,
		User:         user,
	}
	if err := m.store.Save(tokens); err != nil {
		// session stays valid in memory; next mutation retries the write
		m.log.Warn().Err(err).Msg("persisting refreshed session failed")
	}
	m.gen++
	m.state = tokens
	m.emitLocked(user)
	m.lock.Unlock()

	m.log.Debug().Msg("session refreshed")
	return creds.AccessToken, nil
}

func (m *Manager) teardownIfUnchanged(startGen uint64, reason TeardownReason) {
	m.lock.Lock()
	if m.gen != startGen {
		m.lock.Unlock()
		return
	}
	notify := m.teardownLocked(reason)
	m.lock.Unlock()

	if notify && m.onTeardown != nil {
		m.onTeardown(reason)
	}
}

// EnsureFresh proactively refreshes when the current token's exp claim falls
// within the given window. This is an optimization only; the backend's 401
// remains the authority on token validity.
func (m *Manager) EnsureFresh(ctx context.Context, window time.Duration) error {
	token := m.AccessToken()
	if token == "" {
		return errs.ErrNoSession
	}
	if exp, err := identity.Expiry(token); err == nil && m.nowTime().Add(window).Before(exp) {
		return nil
	}
	_, err := m.Refresh(ctx, token)
	return err
}
