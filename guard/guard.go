package guard

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/BikyaITI/bikya-go-client/identity"
)

// Well-known navigation targets. Exact paths are a presentation concern, but
// the redirect contracts (returnUrl preserved, role homes) are not.
const (
	LoginPath        = "/login"
	DashboardPath    = "/dashboard"
	DeliveryHomePath = "/delivery/dashboard"

	adminPrefix    = "/admin"
	deliveryPrefix = "/delivery"
)

// publicPaths never require a session.
var publicPaths = []string{
	"/login",
	"/register",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
}

// Decision is the outcome of a navigation check. When Allowed is false,
// RedirectTo names the route the caller must navigate to instead.
type Decision struct {
	Allowed      bool
	RedirectTo   string
	AccessDenied bool // role mismatch, surface an access-denied indicator
}

func allow() Decision {
	return Decision{Allowed: true}
}

func redirect(target string) Decision {
	return Decision{RedirectTo: target}
}

// Session is the slice of the session manager the guard consults. All checks
// run against cached state; only the admin path may trigger a refresh.
type Session interface {
	AccessToken() string
	CurrentUser() *identity.Identity
	EnsureFresh(ctx context.Context, window time.Duration) error
}

// Guard gates navigation by role claims: delivery staff are confined to the
// delivery namespace, admin routes require the Admin role.
type Guard struct {
	session    Session
	log        zerolog.Logger
	expirySkew time.Duration
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.log = log
	}
}

// WithExpirySkew sets the local-expiry window used by the admin check.
func WithExpirySkew(skew time.Duration) GuardOption {
	return func(g *Guard) {
		g.expirySkew = skew
	}
}

// New creates a Guard bound to the given session.
func New(session Session, options ...GuardOption) *Guard {
	g := &Guard{
		session:    session,
		log:        zerolog.Nop(),
		expirySkew: 30 * time.Second,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Check evaluates whether navigation to path is allowed. Checks run in
// order: public paths first, then session presence, then role namespaces.
func (g *Guard) Check(ctx context.Context, path string) Decision {
	if isPublicPath(path) {
		return allow()
	}

	if g.session.AccessToken() == "" {
		return redirect(loginRedirect(path))
	}

	user := g.session.CurrentUser()

	// Delivery staff never leave their namespace, and nobody else enters it.
	if user.IsDelivery() {
		if !strings.HasPrefix(path, deliveryPrefix) {
			g.log.Debug().Str("path", path).Msg("delivery user redirected home")
			return redirect(DeliveryHomePath)
		}
		return allow()
	}
	if strings.HasPrefix(path, deliveryPrefix) {
		return Decision{RedirectTo: DashboardPath, AccessDenied: true}
	}

	if strings.HasPrefix(path, adminPrefix) {
		return g.checkAdmin(ctx, path)
	}

	return allow()
}

// checkAdmin gates the admin namespace. A locally expired token gets one
// refresh attempt before the role check; the refreshed claims are re-read
// from the session. Local expiry is an optimization only, so a refresh
// failure falls back to the login redirect rather than a hard error.
func (g *Guard) checkAdmin(ctx context.Context, path string) Decision {
	if err := g.session.EnsureFresh(ctx, g.expirySkew); err != nil {
		g.log.Debug().Err(err).Str("path", path).Msg("admin check could not refresh session")
		return redirect(loginRedirect(path))
	}

	user := g.session.CurrentUser()
	if user == nil {
		return redirect(loginRedirect(path))
	}
	if !user.IsAdmin() {
		g.log.Debug().Int64("user_id", user.ID).Str("path", path).Msg("admin route denied")
		return Decision{RedirectTo: DashboardPath, AccessDenied: true}
	}
	return allow()
}

// loginRedirect preserves the originally requested path across the login
// redirect.
func loginRedirect(returnURL string) string {
	return LoginPath + "?returnUrl=" + url.QueryEscape(returnURL)
}

func isPublicPath(path string) bool {
	trimmed := strings.TrimSuffix(path, "/")
	for _, p := range publicPaths {
		if trimmed == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
