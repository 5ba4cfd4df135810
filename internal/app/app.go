package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatehouse/gatehouse/internal/httpapi"
	"github.com/gatehouse/gatehouse/internal/invite"
	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/session"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/store/file"
	"github.com/gatehouse/gatehouse/internal/store/sqlite"
	"github.com/gatehouse/gatehouse/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gatehouse service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	store    store.UserStore
	sessions *session.Registry
	invites  *invite.List // nil when no invitation file is configured

	// Services
	authService         *service.AuthService
	registrationService *service.RegistrationService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatehouse",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			File:    cfg.LogFile,
		}),
		sessions: session.NewRegistry(cfg.SessionLifetime),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	if err := app.initInvitations(); err != nil {
		_ = app.store.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gatehouse starting",
		"port", app.cfg.Port,
		"backend", app.cfg.Backend,
		"version", BuildVersion,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatehouse...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing user store", "error", err)
		return err
	}

	app.logger.Info("gatehouse stopped")
	return nil
}

// OpenStore opens the user store backend the config selects. The sqlite
// backend has its migrations applied before it is returned. Shared with
// gatehousectl so the CLI operates on the same table the daemon serves.
func OpenStore(cfg Config) (store.UserStore, error) {
	switch cfg.Backend {
	case "file":
		st, err := file.Open(cfg.UserFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open user file: %w", err)
		}
		return st, nil

	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DatabaseFile)
		st, err := sqlite.Open(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := st.ApplyMigrations(); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown backend %q (want file or sqlite)", cfg.Backend)
	}
}

// initStore opens the configured user store backend.
func (app *Application) initStore() error {
	st, err := OpenStore(app.cfg)
	if err != nil {
		return err
	}
	app.store = st

	if app.cfg.Backend == "sqlite" {
		app.logger.Info("database migrations applied successfully")
	}
	return nil
}

// initInvitations loads the invitation code list when one is configured.
func (app *Application) initInvitations() error {
	if !app.cfg.RegistrationEnabled || app.cfg.InvitationFile == "" {
		return nil
	}

	invites, err := invite.Load(app.cfg.InvitationFile, app.cfg.InvitationDispose)
	if err != nil {
		return fmt.Errorf("failed to load invitation list: %w", err)
	}
	app.invites = invites
	app.logger.Info("invitation list loaded", "codes", invites.Len())
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:    app.store,
		Sessions: app.sessions,
	}

	app.registrationService = &service.RegistrationService{
		Store:       app.store,
		Enabled:     app.cfg.RegistrationEnabled,
		Invitations: app.invites,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.cfg.CookieName,
		app.cfg.SessionLifetime,
		BuildVersion,
		app.store,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.RegistrationService = app.registrationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
