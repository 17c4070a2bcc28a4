package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hivewarden/apis-viewer/internal/api"
	"github.com/hivewarden/apis-viewer/internal/config"
	"github.com/hivewarden/apis-viewer/internal/database"
	"github.com/hivewarden/apis-viewer/internal/recorder"
	"github.com/hivewarden/apis-viewer/internal/units"
	"github.com/hivewarden/apis-viewer/internal/version"
	"github.com/hivewarden/apis-viewer/internal/viewer"
	"github.com/hivewarden/apis-viewer/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/viewer.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting viewer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"server_url", cfg.Server.URL,
		"recorder_enabled", cfg.Recorder.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the event store when recording is enabled
	var pool *pgxpool.Pool
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Recorder.Database.Host,
			"port", cfg.Recorder.Database.Port,
			"database", cfg.Recorder.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Recorder.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connected")
	}

	// Create APIS server client
	apiClient := api.NewClient(
		cfg.Server.URL,
		cfg.Server.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Server.Timeout),
		api.WithRetries(cfg.Server.MaxRetries, time.Second),
	)

	// Create unit registry
	registryCfg := units.Config{
		ReconcileInterval: cfg.Units.ReconcileInterval,
	}
	registry := units.NewRegistry(registryCfg, apiClient, logger)

	// Start unit registry (initial sync)
	logger.Info("starting unit registry (initial sync)...")
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start unit registry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		registry.Stop(shutdownCtx)
	}()

	logger.Info("unit registry started", "units", len(registry.Units()))

	// Create viewer manager
	managerCfg := viewer.Config{
		ServerURL:        cfg.Server.URL,
		APIKey:           cfg.Server.APIKey,
		RetryBaseDelay:   cfg.Streams.RetryBaseDelay,
		MaxRetries:       cfg.Streams.MaxRetries,
		HandshakeTimeout: cfg.Streams.HandshakeTimeout,
		EventBufferSize:  cfg.Streams.EventBufferSize,
	}
	manager := viewer.NewManager(managerCfg, registry, nil, logger)

	// Start event recorder before the manager so no events are missed
	recorderCfg := recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
	}
	rec := recorder.NewEventRecorder(recorderCfg, manager.Events(), pool, logger)
	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start event recorder", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		rec.Stop(shutdownCtx)
	}()

	// Start viewer manager
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start viewer manager", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		manager.Stop(shutdownCtx)
	}()

	// Start HTTP surface
	webServer := web.NewServer(web.Config{
		Port:        cfg.HTTP.Port,
		MetricsPath: cfg.HTTP.MetricsPath,
	}, manager, logger)

	go func() {
		if err := webServer.Start(); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("viewer running",
		"instance_id", cfg.Instance.ID,
		"sessions", manager.SessionCount(),
		"http_port", cfg.HTTP.Port,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	webServer.Stop(shutdownCtx)

	logger.Info("viewer stopped")
}
