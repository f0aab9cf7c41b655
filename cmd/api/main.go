// Command api is the Kadro notification and stats server.
//
// Usage:
//
//	kadro-api
//	API_PORT=8080 kadro-api

// @title Kadro Server API
// @version 1.0.0
// @description Push-notification emission and aggregated match stats for the Kadro pickup-football community.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Kadro
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/kadrohq/kadro-server/internal/api"
	"github.com/kadrohq/kadro-server/internal/api/handler"
	"github.com/kadrohq/kadro-server/internal/attendance"
	"github.com/kadrohq/kadro-server/internal/cache"
	"github.com/kadrohq/kadro-server/internal/config"
	"github.com/kadrohq/kadro-server/internal/crossing"
	"github.com/kadrohq/kadro-server/internal/db"
	"github.com/kadrohq/kadro-server/internal/listener"
	"github.com/kadrohq/kadro-server/internal/maintenance"
	"github.com/kadrohq/kadro-server/internal/notify"
	"github.com/kadrohq/kadro-server/internal/schedule"
	"github.com/kadrohq/kadro-server/internal/store"

	_ "github.com/kadrohq/kadro-server/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("Invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Push sender: FCM when configured, log-only otherwise
	var sender notify.Sender
	fcm, err := notify.NewFCMSender(ctx, cfg.FCMCredentialsFile, cfg.WebPushLink, logger)
	if err != nil {
		logger.Error("Failed to initialize FCM", "error", err)
		os.Exit(1)
	}
	if fcm != nil {
		sender = fcm
		logger.Info("FCM sender initialized")
	} else {
		sender = notify.NewLogSender(logger)
		logger.Info("FCM disabled (no FIREBASE_CREDENTIALS_FILE), logging sends only")
	}

	// Notification emission path
	stateStore := store.NewPostgres(pool.Pool)
	ledger := notify.NewLedger(stateStore)
	dispatcher := notify.NewDispatcher(notify.NewPGResolver(pool.Pool), sender, logger)
	emitter := notify.NewEmitter(ledger, dispatcher, logger)

	// Crossing evaluation path
	matchday := attendance.New(pool.Pool)
	trigger := crossing.NewTrigger(crossing.NewEvaluator(stateStore), emitter)

	// Timed-rule scheduler (+ stats watcher when configured)
	var watcher *schedule.StatsWatcher
	if cfg.StatsPollURL != "" {
		watcher = schedule.NewStatsWatcher(cfg.StatsPollURL, logger)
	}
	scheduler := schedule.New(emitter, matchday, watcher, loc, logger)
	go scheduler.Run(ctx)

	// LISTEN/NOTIFY consumer for real-time attendance changes
	go listener.New(cfg.DatabaseURL, matchday, trigger, loc, logger).Start(ctx)

	// Maintenance tickers (ledger cleanup)
	go maintenance.Start(ctx, pool.Pool, maintenance.DefaultConfig(), logger)

	// Create router
	h := handler.New(pool.Pool, cfg, cache.New(cfg.CacheEnabled), emitter, ledger, trigger, matchday, loc)
	router := api.NewRouter(h, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Kadro Server",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
