// Package main is the entry point for the mileage journal API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // REPORT_TIMEZONE must resolve on minimal images

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/pkordes/korjournal/internal/config"
	"github.com/pkordes/korjournal/internal/deduction"
	"github.com/pkordes/korjournal/internal/domain"
	"github.com/pkordes/korjournal/internal/handler"
	"github.com/pkordes/korjournal/internal/middleware"
	"github.com/pkordes/korjournal/internal/odometer"
	"github.com/pkordes/korjournal/internal/repo"
	"github.com/pkordes/korjournal/internal/service"
	"github.com/pkordes/korjournal/migrations"
	"github.com/pkordes/korjournal/spec"
)

func main() {
	// --- Config -----------------------------------------------------------
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.MigrateOnStart {
		if err := migrate(context.Background(), pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	// --- Services ---------------------------------------------------------
	tripRepo := repo.NewTripRepo(pool)

	tripSvc := service.NewTripService(tripRepo, cfg.MaxTripDistanceKm, logger)
	settingsSvc := service.NewSettingsService(repo.NewSettingsRepo(pool), domain.HomeAssistantSettings{
		BaseURL:        cfg.HomeAssistant.BaseURL,
		Token:          cfg.HomeAssistant.Token,
		OdometerEntity: cfg.HomeAssistant.OdometerEntity,
		ForceDomain:    cfg.HomeAssistant.ForceDomain,
		ForceService:   cfg.HomeAssistant.ForceService,
		ForceData:      cfg.HomeAssistant.ForceData,
	})
	templateSvc := service.NewTemplateService(repo.NewTemplateRepo(pool), tripSvc)
	calc := deduction.NewCalculator(deduction.DefaultRules().WithKmPerMil(cfg.KmPerMil), cfg.ReportLocation)
	reportSvc := service.NewDeductionService(tripRepo, settingsSvc, calc, cfg.ReportLocation)
	exportSvc := service.NewExportService(tripRepo, cfg.ReportLocation)

	ha := odometer.NewHomeAssistant(settingsSvc.HomeAssistant, odometer.HomeAssistantOptions{
		PollTimeout:      cfg.HomeAssistant.PollTimeout,
		ForceWait:        cfg.HomeAssistant.ForceWait,
		ForceMinInterval: cfg.HomeAssistant.ForceMinInterval,
		Logger:           logger,
	})
	resolver := odometer.NewResolver(ha,
		cfg.HomeAssistant.PollTimeout,
		cfg.HomeAssistant.ForceWait+cfg.HomeAssistant.PollTimeout,
		logger,
	)

	server := handler.NewServer(handler.Deps{
		Trips:         tripSvc,
		Templates:     templateSvc,
		Settings:      settingsSvc,
		Reports:       reportSvc,
		Export:        exportSvc,
		Odometer:      resolver,
		HomeAssistant: ha,
		OpenAPI:       spec.OpenAPI,
		Location:      cfg.ReportLocation,
	})

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Mount("/", server.Routes())

	// --- HTTP Server ------------------------------------------------------
	// A forced odometer refresh waits for the car, so the write timeout
	// leaves room for the whole provider chain.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10*time.Second + cfg.HomeAssistant.ForceWait + 2*cfg.HomeAssistant.PollTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// migrate applies pending goose migrations through a database/sql handle
// borrowed from the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		slog.Info("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	return nil
}
