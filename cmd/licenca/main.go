// Licenca: environmental-licensing back office API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	licencaapi "github.com/d9705996/licenca/internal/api"
	"github.com/d9705996/licenca/internal/api/handler"
	"github.com/d9705996/licenca/internal/api/middleware"
	"github.com/d9705996/licenca/internal/auth"
	"github.com/d9705996/licenca/internal/config"
	"github.com/d9705996/licenca/internal/db"
	"github.com/d9705996/licenca/internal/health"
	"github.com/d9705996/licenca/internal/observability"
	"github.com/d9705996/licenca/internal/orgctx"
	"github.com/d9705996/licenca/internal/prefs"
	"github.com/d9705996/licenca/internal/seed"
	"github.com/d9705996/licenca/internal/status"
	"github.com/d9705996/licenca/internal/store"
	"github.com/d9705996/licenca/internal/version"
	"github.com/d9705996/licenca/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability -------------------------------------------------------
	obs, log, err := observability.New(ctx, &observability.Config{
		ServiceName:    "licenca",
		ServiceVersion: version.Version,
		LogLevel:       cfg.Log.Level,
		LogFormat:      cfg.Log.Format,
		OTLPEndpoint:   cfg.OTel.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer obs.Shutdown(context.Background())
	slog.SetDefault(log)
	log.Info("starting licenca", "version", version.Version, "commit", version.Commit, "db_driver", cfg.DB.Driver)

	// --- Database ------------------------------------------------------------
	gormDB, pool, err := db.New(ctx, &cfg.DB, log)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}
	client := store.NewGormClient(gormDB, nil)
	log.Info("database ready", "driver", cfg.DB.Driver)

	// --- Seed admin ----------------------------------------------------------
	if err := seed.EnsureAdmin(ctx, client, seed.AdminOptions{
		Email:    cfg.App.SeedAdminEmail,
		Password: cfg.App.SeedAdminPassword,
	}, log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// --- Worker queue --------------------------------------------------------
	if pool != nil {
		if err := worker.MigrateRiver(ctx, pool); err != nil {
			return fmt.Errorf("river migrations: %w", err)
		}
		log.Info("river migrations applied")
	}

	clock := status.SystemClock{}
	wq, err := worker.New(ctx, pool, cfg.DB.Driver, cfg.Worker.Concurrency, worker.ScanConfig{
		Client:   client,
		Clock:    clock,
		Location: cfg.App.Location,
		Interval: cfg.Worker.DeadlineScanInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	if err := wq.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wq.Stop(stopCtx); err != nil {
			log.Error("worker stop error", "err", err)
		}
	}()

	// --- HTTP routes ---------------------------------------------------------
	sessions := &middleware.Sessions{
		Resolver: orgctx.NewResolver(client, seed.NewSeeder(client, log), log),
		Signer:   prefs.NewSigner(cfg.JWT.Secret, cfg.Prefs.CookieSecure),
	}
	refresh := auth.NewRefreshStore(gormDB, cfg.JWT.RefreshTTL)

	mux := http.NewServeMux()
	licencaapi.RegisterRoutes(mux, licencaapi.Handlers{
		Health:        health.New(health.Check{Name: "database", Pinger: db.NewPinger(gormDB)}),
		Auth:          handler.NewAuthHandler(client, refresh, cfg.JWT.Secret, cfg.JWT.AccessTTL),
		Session:       handler.NewSessionHandler(sessions, log),
		Organizations: handler.NewOrganizationHandler(client, sessions, log),
		Processes:     handler.NewProcessHandler(client, clock, cfg.App.Location, log),
		Metrics:       obs.MetricsHandler(),
	}, sessions, cfg.JWT.Secret, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Start server --------------------------------------------------------
	log.Info("http server listening", "addr", srv.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped cleanly")
	return nil
}
