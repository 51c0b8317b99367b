// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/config"
	"codeberg.org/oliverandrich/studyhub/internal/cooldown"
	"codeberg.org/oliverandrich/studyhub/internal/database"
	"codeberg.org/oliverandrich/studyhub/internal/events"
	"codeberg.org/oliverandrich/studyhub/internal/i18n"
	"codeberg.org/oliverandrich/studyhub/internal/metrics"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/auth"
	"codeberg.org/oliverandrich/studyhub/internal/services/email"
	"codeberg.org/oliverandrich/studyhub/internal/services/oauth"
	"codeberg.org/oliverandrich/studyhub/internal/services/session"
	"codeberg.org/oliverandrich/studyhub/internal/services/token"
	"codeberg.org/oliverandrich/studyhub/internal/services/verification"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return startWithGracefulShutdown(app.Echo, cfg)
}

// App is a fully wired server.
type App struct {
	Echo    *echo.Echo
	Repo    *repository.Repository
	closers []func() error
}

// New opens the database, connects the optional backends and registers
// middleware and routes.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	// Database, migrations run on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.closers = append(app.closers, func() error { return database.Close(db) })
	app.Repo = repository.New(db)

	if err := i18n.Init(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	svc, sm, err := app.buildAuth(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	providers, idTokens := buildProviders(cfg)
	slog.Info("oauth providers", "enabled", providers.Names())

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		metrics.MustRegister(reg)
	}

	setupMiddleware(e, cfg, sm, svc, reg != nil)
	setupRoutes(e, routeDeps{
		repo:      app.Repo,
		auth:      svc,
		sessions:  sm,
		providers: providers,
		idTokens:  idTokens,
		registry:  reg,
	})

	app.Echo = e
	return app, nil
}

// buildAuth wires the token codec, cookies, mail, cooldown and events into
// the auth service.
func (a *App) buildAuth(ctx context.Context, cfg *config.Config) (*auth.Service, *session.Manager, error) {
	codec, err := token.NewCodec(cfg.Auth.Secret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	sm, err := session.NewManager(&cfg.Auth, &cfg.Session, cfg.SecureCookies())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	var mailer email.Mailer = email.LogMailer{}
	if cfg.SMTP.Enabled() {
		svc, err := email.NewService(&cfg.SMTP)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create email service: %w", err)
		}
		mailer = svc
	} else {
		slog.Warn("SMTP not configured, emails are written to the log")
	}

	var limiter cooldown.Limiter
	if cfg.Redis.URL != "" {
		r, err := cooldown.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		limiter = r
	} else {
		limiter = cooldown.NewMemory()
	}
	a.closers = append(a.closers, limiter.Close)

	publisher := events.NewNoop()
	if cfg.AMQP.URL != "" {
		p, err := events.NewRabbit(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		publisher = p
	}
	a.closers = append(a.closers, publisher.Close)

	codes := verification.NewService(a.Repo, mailer, limiter, cfg.Auth.CodeTTL, cfg.Auth.ResendCooldown)

	svc := auth.NewService(auth.Deps{
		Repo:         a.Repo,
		Codec:        codec,
		Sessions:     session.NewStore(a.Repo, codec, cfg.Auth.RefreshTTL),
		Codes:        codes,
		Mailer:       mailer,
		Events:       publisher,
		Exchange:     cfg.AMQP.Exchange,
		BaseURL:      cfg.Server.BaseURL,
		AccessTTL:    cfg.Auth.AccessTTL,
		MagicLinkTTL: cfg.Auth.MagicLinkTTL,
	})
	return svc, sm, nil
}

// buildProviders registers every OAuth provider that has credentials.
func buildProviders(cfg *config.Config) (*oauth.Registry, *oauth.IDTokenVerifier) {
	callback := func(name string) string {
		return cfg.Server.BaseURL + "/api/auth/" + name + "/callback"
	}

	var (
		providers []oauth.Provider
		idTokens  *oauth.IDTokenVerifier
	)
	if c := cfg.OAuth.Google; c.Enabled() {
		providers = append(providers, oauth.NewGoogle(c.ClientID, c.ClientSecret, callback(oauth.ProviderGoogle)))
		idTokens = oauth.NewIDTokenVerifier(c.ClientID)
	}
	if c := cfg.OAuth.GitHub; c.Enabled() {
		providers = append(providers, oauth.NewGitHub(c.ClientID, c.ClientSecret, callback(oauth.ProviderGitHub)))
	}
	if c := cfg.OAuth.WeChat; c.Enabled() {
		providers = append(providers, oauth.NewWeChat(c.ClientID, c.ClientSecret, callback(oauth.ProviderWeChat)))
	}
	return oauth.NewRegistry(providers...), idTokens
}

// Close releases backends in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
