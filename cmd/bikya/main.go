package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/BikyaITI/bikya-go-client/api"
	"github.com/BikyaITI/bikya-go-client/internal/config"
	"github.com/BikyaITI/bikya-go-client/session"
	"github.com/BikyaITI/bikya-go-client/tokenstore"
	"github.com/BikyaITI/bikya-go-client/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// app bundles the wired-up client pieces the subcommands work with.
type app struct {
	manager *session.Manager
	auth    *api.AuthAPI
	account *api.AccountAPI
	log     zerolog.Logger
}

func run(args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if len(args) == 0 {
		displayAppname(cfg.AppName)
		usage()
		return nil
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout+10*time.Second)
	defer cancel()

	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "whoami":
		return a.whoami()
	case "profile":
		return a.profile(ctx)
	case "logout":
		return a.logout(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newApp(cfg config.Config) (*app, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	httpCfg := api.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	httpCfg.MaxRetries = cfg.MaxRetries

	store := tokenstore.NewFileStore(cfg.SessionFile)
	authAPI := api.NewAuthAPI(cfg.BaseURL, api.NewHTTPClient(httpCfg, nil), logger)

	manager, err := session.NewManager(store, authAPI,
		session.WithLogger(logger),
		session.WithTeardownHook(func(reason session.TeardownReason) {
			if reason != session.TeardownUserInitiated {
				logger.Warn().Str("reason", string(reason)).Msg("session ended, please log in again")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}

	authed := api.NewHTTPClient(httpCfg, transport.New(manager, transport.WithLogger(logger)))
	accountAPI := api.NewAccountAPI(cfg.BaseURL, authed, logger)

	return &app{
		manager: manager,
		auth:    authAPI,
		account: accountAPI,
		log:     logger,
	}, nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: bikya login <email> <password>")
	}

	creds, err := a.auth.Login(ctx, api.LoginRequest{Email: args[0], Password: args[1]})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	user, err := a.manager.SetSession(creds)
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return printJSON(user)
}

func (a *app) whoami() error {
	user := a.manager.CurrentUser()
	if user == nil {
		fmt.Println("not logged in")
		return nil
	}
	return printJSON(user)
}

func (a *app) profile(ctx context.Context) error {
	profile, err := a.account.Profile(ctx)
	if err != nil {
		return fmt.Errorf("fetching profile: %w", err)
	}
	return printJSON(profile)
}

func (a *app) logout(ctx context.Context) error {
	if refreshToken := a.manager.RefreshToken(); refreshToken != "" {
		// best effort, the local session is cleared either way
		if err := a.account.Logout(ctx, refreshToken); err != nil {
			a.log.Warn().Err(err).Msg("server-side logout failed")
		}
	}
	a.manager.ClearSession(session.TeardownUserInitiated)
	fmt.Println("logged out")
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func usage() {
	fmt.Println("Usage: bikya <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login <email> <password>  authenticate and store the session")
	fmt.Println("  whoami                    show the cached session identity")
	fmt.Println("  profile                   fetch the profile from the API")
	fmt.Println("  logout                    revoke and clear the session")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
