package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/routine-quest/internal/auth"
	"github.com/HendryAvila/routine-quest/internal/config"
	"github.com/HendryAvila/routine-quest/internal/httpapi"
	"github.com/HendryAvila/routine-quest/internal/logging"
	"github.com/HendryAvila/routine-quest/internal/routine"
	mcpserver "github.com/HendryAvila/routine-quest/internal/server"
	"github.com/HendryAvila/routine-quest/internal/store"
)

func configFileHint() string {
	return config.ConfigFile()
}

// env bundles what every command needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	close  func()
}

// setup loads configuration from file (or the default location), then
// opens the logger and the store.
func setup(file string) (*env, error) {
	v := viper.New()
	if err := config.Init(v, file); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Log.Level, cfg.LogFile())
	if err != nil {
		return nil, err
	}

	st, err := store.New(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	return &env{
		cfg:    cfg,
		store:  st,
		logger: logger,
		close: func() {
			if err := st.Close(); err != nil {
				logger.Warn("store close", "error", err)
			}
			_ = logCloser.Close()
		},
	}, nil
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	file := fs.String("config", "", "config file (default "+config.ConfigFile()+")")
	return fs, file
}

// runServe starts the MCP stdio server for the user named by auth.token.
func runServe(args []string) error {
	fs, file := newFlagSet("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := setup(*file)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.cfg.RequireSecret(); err != nil {
		return err
	}
	if e.cfg.Auth.Token == "" {
		return errors.New("auth.token is required: issue one with `routinequest token --email ...` and set ROUTINEQUEST_AUTH_TOKEN")
	}
	id, err := auth.NewVerifier(e.cfg.Auth.Secret).Verify(e.cfg.Auth.Token)
	if err != nil {
		return fmt.Errorf("auth.token: %w", err)
	}

	ctx := context.Background()
	user, err := e.store.GetUser(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("auth.token: %w", err)
	}

	e.logger.Info("mcp server starting", "user_id", user.ID, "version", mcpserver.Version)
	s := mcpserver.New(e.store, user.ID, e.logger)
	return server.ServeStdio(s)
}

// runHTTP serves the REST API until SIGINT or SIGTERM, then drains
// in-flight requests for up to http.shutdown_timeout.
func runHTTP(args []string) error {
	fs, file := newFlagSet("http")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := setup(*file)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.cfg.RequireSecret(); err != nil {
		return err
	}

	api := httpapi.New(e.store, auth.NewVerifier(e.cfg.Auth.Secret), e.logger, httpapi.Options{
		CORSOrigins: e.cfg.HTTP.CORSOrigins,
		Version:     mcpserver.Version,
	})
	srv := api.NewHTTPServer(e.cfg.HTTP.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.logger.Info("http server listening", "addr", e.cfg.HTTP.Addr, "environment", e.cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		e.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runUser handles `user create`.
func runUser(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "create" {
		return errors.New("usage: routinequest user create --email EMAIL [--name NAME] [--tier TIER]")
	}

	fs, file := newFlagSet("user create")
	email := fs.String("email", "", "email address (required)")
	name := fs.String("name", "", "display name")
	tier := fs.String("tier", string(routine.TierFree), "tier: free, basic, pro or team")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	e, err := setup(*file)
	if err != nil {
		return err
	}
	defer e.close()

	u, err := e.store.CreateUser(context.Background(), routine.NewUserParams{
		Email:       *email,
		DisplayName: *name,
		Tier:        routine.Tier(*tier),
	})
	if err != nil {
		return err
	}
	e.logger.Info("user created", "user_id", u.ID, "tier", u.Tier)
	fmt.Fprintf(out, "Created user %d (%s, %s tier)\n", u.ID, u.Email, u.Tier)
	return nil
}

// runToken issues an access token and prints it alone on stdout so it
// can be captured by scripts.
func runToken(args []string, out io.Writer) error {
	fs, file := newFlagSet("token")
	email := fs.String("email", "", "email of the user (required)")
	ttl := fs.Duration("ttl", 0, "token lifetime (default auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	e, err := setup(*file)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.cfg.RequireSecret(); err != nil {
		return err
	}
	lifetime := e.cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	if lifetime < time.Minute {
		return fmt.Errorf("--ttl must be at least 1m, got %s", lifetime)
	}

	u, err := e.store.GetUserByEmail(context.Background(), *email)
	if err != nil {
		return err
	}
	token, err := auth.NewIssuer(e.cfg.Auth.Secret).Issue(u.ID, lifetime)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
