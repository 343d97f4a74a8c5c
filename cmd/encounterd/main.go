// Package main provides the encounter daemon: it opens the configured encounter
// store and runs the expiry sweeper until terminated.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/game/encounter"
	"github.com/cory-johannsen/encounter/internal/notify"
	"github.com/cory-johannsen/encounter/internal/observability"
	"github.com/cory-johannsen/encounter/internal/server"
	"github.com/cory-johannsen/encounter/internal/storage"
)

const serviceName = "encounterd"

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	shutdownTimeout := flag.Duration("shutdown-timeout", server.DefaultShutdownTimeout, "maximum time to wait for services to stop")
	healthInterval := flag.Duration("health-interval", 30*time.Second, "interval between backend health checks")
	healthTimeout := flag.Duration("health-timeout", 5*time.Second, "timeout for each backend health check")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, serviceName)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting encounter daemon",
		zap.String("store", cfg.Encounter.Store),
		zap.String("notifier", cfg.Encounter.Notifier),
		zap.Int("max_attempts", cfg.Encounter.MaxAttempts),
	)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.SetShutdownTimeout(*shutdownTimeout)

	tracingCfg, err := observability.LoadTracingConfig()
	if err != nil {
		logger.Fatal("loading tracing config", zap.Error(err))
	}
	shutdownTracing, err := observability.SetupTracing(ctx, tracingCfg, serviceName)
	if err != nil {
		logger.Fatal("setting up tracing", zap.Error(err))
	}
	lifecycle.AddCloser("tracing", shutdownTracing)

	backends, err := storage.Open(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("opening encounter backends", zap.Error(err))
	}
	for _, c := range backends.Closers() {
		lifecycle.AddCloser(c.Name, c.Close)
	}

	coordinator := encounter.NewCoordinator(
		backends.Store,
		backends.Characters,
		backends.Locations,
		buildNotifier(&cfg, backends, logger),
		logger.Named("coordinator"),
		encounter.Options{
			MaxAttempts:           cfg.Encounter.MaxAttempts,
			HighTierMin:           cfg.Encounter.HighTierMin,
			HighTierMax:           cfg.Encounter.HighTierMax,
			SideEffectConcurrency: cfg.Encounter.SideEffectConcurrency,
		},
	)

	sweeper := encounter.NewSweeper(
		coordinator,
		cfg.Encounter.SweepInterval,
		cfg.Encounter.SweepConcurrency,
		logger.Named("sweeper"),
	)
	lifecycle.Add("expiry-sweeper", sweeper)

	healthLogger := logger.Named("health")
	lifecycle.Add("backend-health", server.ServiceFunc(func(ctx context.Context) error {
		return backends.MonitorHealth(ctx, *healthInterval, *healthTimeout, healthLogger)
	}))

	logger.Info("encounter daemon ready",
		zap.Duration("sweep_interval", cfg.Encounter.SweepInterval),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("encounter daemon exited with error", zap.Error(err))
	}
}

// buildNotifier returns the event sink named by cfg.Encounter.Notifier, or nil
// when events are disabled.
func buildNotifier(cfg *config.Config, backends *storage.Backends, logger *zap.Logger) encounter.Notifier {
	switch cfg.Encounter.Notifier {
	case config.NotifierLog:
		return notify.NewLogNotifier(logger)
	case config.NotifierRedis:
		return notify.Fanout{
			notify.NewLogNotifier(logger),
			notify.NewRedisPublisher(backends.Redis, cfg.Redis.EventChannel),
		}
	default:
		return nil
	}
}
