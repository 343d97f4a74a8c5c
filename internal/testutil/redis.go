package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/storage/redisstore"
)

// RedisContainer wraps a testcontainers Redis instance.
type RedisContainer struct {
	Client *redis.Client
	Config config.RedisConfig
}

// NewRedisContainer starts a Redis container and returns a connected client.
// The test is skipped under -short.
//
// Precondition: Docker must be available.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()
	start := time.Now()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v [%s]", err, time.Since(start))
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	cfg := config.RedisConfig{
		Addr:         fmt.Sprintf("%s:%d", host, port.Int()),
		KeyPrefix:    "test",
		EventChannel: "test:events",
	}
	client, err := redisstore.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting to test redis: %v [%s]", err, time.Since(start))
	}
	t.Cleanup(func() { _ = client.Close() })

	t.Logf("redis container started [%s]", time.Since(start))
	return &RedisContainer{Client: client, Config: cfg}
}
