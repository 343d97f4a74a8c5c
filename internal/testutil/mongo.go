package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/storage/mongostore"
)

// MongoContainer wraps a testcontainers MongoDB instance.
type MongoContainer struct {
	Client *mongo.Client
	Config config.MongoConfig
}

// NewMongoContainer starts a MongoDB container and returns a connected client.
// The test is skipped under -short.
//
// Precondition: Docker must be available.
func NewMongoContainer(t *testing.T) *MongoContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo container test in short mode")
	}
	ctx := context.Background()
	start := time.Now()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting mongo container: %v [%s]", err, time.Since(start))
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	cfg := config.MongoConfig{
		URI:            fmt.Sprintf("mongodb://%s:%d", host, port.Int()),
		Database:       "test",
		Collection:     "encounters",
		ConnectTimeout: 10 * time.Second,
	}
	client, err := mongostore.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting to test mongo: %v [%s]", err, time.Since(start))
	}
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	t.Logf("mongo container started [%s]", time.Since(start))
	return &MongoContainer{Client: client, Config: cfg}
}

// Collection returns the configured encounter collection.
func (mc *MongoContainer) Collection() *mongo.Collection {
	return mc.Client.Database(mc.Config.Database).Collection(mc.Config.Collection)
}
