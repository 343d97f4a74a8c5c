// Package storage opens the encounter store and collaborator services selected
// by configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/game/encounter"
	"github.com/cory-johannsen/encounter/internal/storage/memory"
	"github.com/cory-johannsen/encounter/internal/storage/mongostore"
	"github.com/cory-johannsen/encounter/internal/storage/postgres"
	"github.com/cory-johannsen/encounter/internal/storage/redisstore"
)

// Backends holds the opened store, the optional collaborators, and the clients
// that back them.
type Backends struct {
	Store encounter.Store
	// Characters and Locations are nil when collaborators are disabled.
	Characters encounter.CharacterService
	Locations  encounter.LocationDamager
	// Redis is non-nil when the store or the notifier uses redis.
	Redis *redis.Client

	closers []NamedCloser
	checks  []namedCheck
}

type namedCheck struct {
	name  string
	check func(ctx context.Context, timeout time.Duration) error
}

// Closers returns the release steps in the order the resources were opened.
func (b *Backends) Closers() []NamedCloser {
	return append([]NamedCloser(nil), b.closers...)
}

// NamedCloser is a resource release step with a name for logging.
type NamedCloser struct {
	Name  string
	Close func(ctx context.Context) error
}

// Close releases every opened resource, last opened first, and returns the
// first failure.
func (b *Backends) Close(ctx context.Context) error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(ctx); err != nil && first == nil {
			first = fmt.Errorf("closing %s: %w", b.closers[i].Name, err)
		}
	}
	return first
}

// Health pings every connected backend, each bounded by timeout, and returns
// the first failure. The memory store has nothing to ping.
func (b *Backends) Health(ctx context.Context, timeout time.Duration) error {
	for _, c := range b.checks {
		if err := c.check(ctx, timeout); err != nil {
			return fmt.Errorf("%s health: %w", c.name, err)
		}
	}
	return nil
}

// MonitorHealth checks backend health every interval until ctx is cancelled,
// logging failures and recoveries. It never fails on its own.
//
// Precondition: interval and timeout must be positive.
func (b *Backends) MonitorHealth(ctx context.Context, interval, timeout time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := b.Health(ctx, timeout)
			switch {
			case err != nil && ctx.Err() == nil:
				logger.Warn("backend health check failed", zap.Error(err))
				healthy = false
			case err == nil && !healthy:
				logger.Info("backends healthy again")
				healthy = true
			}
		}
	}
}

func (b *Backends) onHealth(name string, fn func(ctx context.Context, timeout time.Duration) error) {
	b.checks = append(b.checks, namedCheck{name: name, check: fn})
}

// ping bounds a context-only ping by timeout.
func ping(fn func(ctx context.Context) error) func(context.Context, time.Duration) error {
	return func(ctx context.Context, timeout time.Duration) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx)
	}
}

func (b *Backends) onClose(name string, fn func(ctx context.Context) error) {
	b.closers = append(b.closers, NamedCloser{Name: name, Close: fn})
}

// Open connects the backends named by cfg.Encounter.
//
// Precondition: cfg must have passed Validate.
// Postcondition: On success Store is non-nil. On failure every resource opened
// so far has been released.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Backends, err error) {
	b := &Backends{}
	defer func() {
		if err != nil {
			_ = b.Close(context.WithoutCancel(ctx))
		}
	}()

	var pool *postgres.Pool
	needPostgres := cfg.Encounter.Store == config.StorePostgres || cfg.Encounter.Collaborators == config.CollaboratorsPostgres
	if needPostgres {
		start := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b.onClose("postgres", func(context.Context) error { pool.Close(); return nil })
		b.onHealth("postgres", pool.Health)
		logger.Info("postgres connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	needRedis := cfg.Encounter.Store == config.StoreRedis || cfg.Encounter.Notifier == config.NotifierRedis
	if needRedis {
		start := time.Now()
		b.Redis, err = redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		client := b.Redis
		b.onClose("redis", func(context.Context) error { return client.Close() })
		b.onHealth("redis", ping(func(ctx context.Context) error { return client.Ping(ctx).Err() }))
		logger.Info("redis connected",
			zap.String("addr", cfg.Redis.Addr),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	switch cfg.Encounter.Store {
	case config.StoreMemory:
		b.Store = memory.NewEncounterStore()
	case config.StorePostgres:
		b.Store = postgres.NewEncounterRepository(pool.DB())
	case config.StoreRedis:
		b.Store = redisstore.NewEncounterStore(b.Redis, cfg.Redis.KeyPrefix)
	case config.StoreMongo:
		start := time.Now()
		client, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		b.onClose("mongo", client.Disconnect)
		b.onHealth("mongo", ping(func(ctx context.Context) error { return client.Ping(ctx, nil) }))
		store := mongostore.NewEncounterStore(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("creating mongo indexes: %w", err)
		}
		b.Store = store
		logger.Info("mongo connected",
			zap.String("database", cfg.Mongo.Database),
			zap.String("collection", cfg.Mongo.Collection),
			zap.Duration("elapsed", time.Since(start)),
		)
	default:
		return nil, fmt.Errorf("unknown encounter store %q", cfg.Encounter.Store)
	}

	if cfg.Encounter.Collaborators == config.CollaboratorsPostgres {
		b.Characters = postgres.NewCharacterRepository(pool.DB())
		b.Locations = postgres.NewLocationRepository(pool.DB())
	}

	logger.Info("encounter backends ready",
		zap.String("store", cfg.Encounter.Store),
		zap.String("collaborators", cfg.Encounter.Collaborators),
	)
	return b, nil
}
