package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flighttrack/internal/config"
	"flighttrack/internal/feed"
	"flighttrack/internal/handlers"
	"flighttrack/internal/sensor"
	"flighttrack/internal/services"
	"flighttrack/internal/store"
	"flighttrack/pkg/logging"
	"flighttrack/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("flighttrack", version, logging.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info(ctx, "[STARTUP] Starting flight tracker", logging.Fields{
		"version":       version,
		"feed_url":      cfg.Feed.URL,
		"data_dir":      cfg.Tracker.DataDir,
		"poll_interval": cfg.Tracker.PollInterval.String(),
		"squawk_codes":  cfg.Tracker.SquawkCodes,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("flighttrack")

	// Initialize stores
	stateStore, err := store.NewStateStore(cfg.Tracker.DataDir, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize state store", logging.Fields{
			"data_dir": cfg.Tracker.DataDir,
		}, err)
	}

	archive := store.NewArchiveWriter(cfg.Tracker.DataDir, logger, metricsCollector)

	db, err := store.OpenDB(cfg.Tracker.DataDir, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open history database", logging.Fields{}, err)
	}
	defer db.Close()

	history, err := store.NewHistoryStore(db, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize history store", logging.Fields{}, err)
	}

	// Initialize the aggregation core
	aggregator := services.NewAggregator(cfg.Tracker, stateStore, archive, history, logger, metricsCollector)
	aggregator.Load(ctx)

	feedClient := feed.NewClient(cfg.Feed, logger, metricsCollector)

	// Sensor events reach the aggregation loop over this channel; the loop
	// is the only writer of tracker state.
	events := make(chan services.SensorEvent, 16)

	sensorFeed, err := sensor.NewFeed(cfg.Sensor, events, logger)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect sensor feed", logging.Fields{
			"nats_url": cfg.Sensor.NATSURL,
		}, err)
	}
	if sensorFeed != nil {
		if err := sensorFeed.Start(); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to subscribe sensor feed", logging.Fields{}, err)
		}
		defer sensorFeed.Close()
	}

	// Setup the read-only stats API
	statsHandler := handlers.NewStatsHandler(aggregator, history, logger, metricsCollector)

	router := mux.NewRouter()
	statsHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] Stats API listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Run the aggregation loop until a signal arrives
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- aggregator.Run(ctx, feedClient, events)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info(ctx, "[SHUTDOWN] Signal received, shutting down", logging.Fields{})
		cancel()
		if err := <-loopDone; err != nil {
			logger.Fatal(context.Background(), "[SHUTDOWN_ERROR] Failed to persist state on shutdown", logging.Fields{}, err)
		}
	case err := <-loopDone:
		if err != nil {
			// Persistence failures are fatal: continuing would silently
			// lose accumulated statistics on every tick.
			logger.Fatal(context.Background(), "[LOOP_ERROR] Aggregation loop failed", logging.Fields{}, err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(context.Background(), "[SHUTDOWN_COMPLETE] Tracker stopped", logging.Fields{})
}
