package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/storage/memory"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Encounter: config.EncounterConfig{
			Store:         config.StoreMemory,
			Notifier:      config.NotifierLog,
			Collaborators: config.CollaboratorsNone,
		},
	}
}

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), memoryConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.IsType(t, &memory.EncounterStore{}, b.Store)
	assert.Nil(t, b.Characters)
	assert.Nil(t, b.Locations)
	assert.Nil(t, b.Redis)
	assert.Empty(t, b.Closers())
	assert.NoError(t, b.Close(context.Background()))
}

func TestOpenUnknownStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Encounter.Store = "sqlite"
	b, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, b)
}

func TestCloseRunsInReverseAndReportsFirstFailure(t *testing.T) {
	var order []string
	b := &Backends{}
	b.onClose("first", func(context.Context) error {
		order = append(order, "first")
		return errors.New("first failed")
	})
	b.onClose("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("second failed")
	})

	err := b.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing second")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Len(t, b.Closers(), 2)
}

func TestHealthReportsFirstFailure(t *testing.T) {
	b := &Backends{}
	var seen []time.Duration
	b.onHealth("postgres", func(_ context.Context, timeout time.Duration) error {
		seen = append(seen, timeout)
		return nil
	})
	b.onHealth("redis", func(context.Context, time.Duration) error { return errors.New("connection refused") })
	b.onHealth("mongo", func(context.Context, time.Duration) error {
		t.Fatal("checks after a failure must not run")
		return nil
	})

	err := b.Health(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health")
	assert.Equal(t, []time.Duration{time.Second}, seen)
}

func TestHealthMemoryStoreHasNothingToPing(t *testing.T) {
	b, err := Open(context.Background(), memoryConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, b.Health(context.Background(), time.Second))
}

func TestPingAppliesTimeout(t *testing.T) {
	check := ping(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return ctx.Err()
	})
	err := check(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMonitorHealthLogsFailureAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var calls atomic.Int32
	b := &Backends{}
	b.onHealth("postgres", func(context.Context, time.Duration) error {
		if calls.Add(1) == 1 {
			return errors.New("down")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.MonitorHealth(ctx, 5*time.Millisecond, time.Second, zap.New(core)) }()

	deadline := time.After(2 * time.Second)
	for logs.FilterMessage("backends healthy again").Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("recovery was not logged")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	cancel()
	require.NoError(t, <-done)

	failures := logs.FilterMessage("backend health check failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zap.WarnLevel, failures[0].Level)
}
