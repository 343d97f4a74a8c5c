// Package main spawns raids and waves described in a YAML seed file into the
// configured encounter store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/game/encounter"
	"github.com/cory-johannsen/encounter/internal/observability"
	"github.com/cory-johannsen/encounter/internal/storage"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	seedPath := flag.String("seed", "", "path to the encounter seed YAML file")
	flag.Parse()

	if *seedPath == "" {
		fmt.Fprintln(os.Stderr, "usage: spawn -seed <file> [-config <file>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if cfg.Encounter.Store == config.StoreMemory {
		log.Fatalf("encounter.store is %q; spawned encounters would not outlive this process", cfg.Encounter.Store)
	}

	logger, err := observability.NewLogger(cfg.Logging, "spawn")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	seeds, err := loadSeedFile(*seedPath)
	if err != nil {
		logger.Fatal("loading seeds", zap.Error(err))
	}

	ctx := context.Background()
	backends, err := storage.Open(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("opening encounter backends", zap.Error(err))
	}
	defer func() {
		if err := backends.Close(ctx); err != nil {
			logger.Warn("closing backends", zap.Error(err))
		}
	}()

	coordinator := encounter.NewCoordinator(
		backends.Store,
		backends.Characters,
		backends.Locations,
		nil,
		logger.Named("coordinator"),
		encounter.Options{MaxAttempts: cfg.Encounter.MaxAttempts},
	)

	spawned, err := spawn(ctx, coordinator, seeds, time.Now().UTC())
	if err != nil {
		logger.Error("spawn stopped early", zap.Int("spawned", spawned), zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("spawned %d encounters in %s\n", spawned, time.Since(start).Round(time.Millisecond))
}

// spawn creates every seeded encounter and joins its listed participants.
// It stops at the first failure and returns how many encounters were created.
func spawn(ctx context.Context, coord *encounter.Coordinator, seeds seedFile, now time.Time) (int, error) {
	created := 0
	for i, s := range seeds.Encounters {
		rec, err := s.build(now)
		if err != nil {
			return created, fmt.Errorf("seed %d: %w", i, err)
		}
		if err := coord.Create(ctx, rec); err != nil {
			return created, fmt.Errorf("seed %d: %w", i, err)
		}
		created++
		for _, p := range s.Participants {
			if _, err := coord.AddParticipant(ctx, rec.SessionID, p.participant()); err != nil {
				return created, fmt.Errorf("seed %d joining %s: %w", i, p.UserID, err)
			}
		}
	}
	return created, nil
}
