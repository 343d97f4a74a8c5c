// Package mongostore persists encounter records as MongoDB documents keyed by
// session id, using the version field for compare-and-swap.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// Connect dials MongoDB and verifies the connection with a ping.
//
// Precondition: cfg must have passed config validation.
// Postcondition: Returns a connected client or a non-nil error.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	return client, nil
}

// EncounterStore implements encounter.Store over a single collection.
type EncounterStore struct {
	coll *mongo.Collection
}

// NewEncounterStore returns a store over coll.
func NewEncounterStore(coll *mongo.Collection) *EncounterStore {
	return &EncounterStore{coll: coll}
}

// EnsureIndexes creates the index used by the active and expired scans.
func (s *EncounterStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
		Options: options.Index().SetName("status_expires_at"),
	})
	if err != nil {
		return fmt.Errorf("creating encounter index: %w", err)
	}
	return nil
}

// Create inserts rec at version 1.
func (s *EncounterStore) Create(ctx context.Context, rec *encounter.Record) error {
	rec.Version = 1
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		rec.Version = 0
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterExists)
		}
		return fmt.Errorf("inserting encounter: %w", err)
	}
	return nil
}

// Get loads the record for sessionID.
func (s *EncounterStore) Get(ctx context.Context, sessionID string) (*encounter.Record, error) {
	var rec encounter.Record
	err := s.coll.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("session %s: %w", sessionID, encounter.ErrEncounterNotFound)
		}
		return nil, fmt.Errorf("finding encounter: %w", err)
	}
	return &rec, nil
}

// Save replaces the document only while it is still at expectedVersion.
func (s *EncounterStore) Save(ctx context.Context, rec *encounter.Record, expectedVersion int64) error {
	rec.Version = expectedVersion + 1
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.SessionID, "version": expectedVersion}, rec)
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("replacing encounter: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	rec.Version = expectedVersion

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": rec.SessionID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("checking encounter existence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterNotFound)
	}
	return fmt.Errorf("session %s expected version %d: %w", rec.SessionID, expectedVersion, encounter.ErrVersionConflict)
}

// FindActive returns active encounters expiring after now, soonest first.
func (s *EncounterStore) FindActive(ctx context.Context, now time.Time) ([]*encounter.Record, error) {
	return s.find(ctx, bson.M{"status": encounter.StatusActive, "expires_at": bson.M{"$gt": now}})
}

// FindExpired returns active encounters expiring at or before now, soonest first.
func (s *EncounterStore) FindExpired(ctx context.Context, now time.Time) ([]*encounter.Record, error) {
	return s.find(ctx, bson.M{"status": encounter.StatusActive, "expires_at": bson.M{"$lte": now}})
}

func (s *EncounterStore) find(ctx context.Context, filter bson.M) ([]*encounter.Record, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing encounters: %w", err)
	}
	recs := make([]*encounter.Record, 0)
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding encounters: %w", err)
	}
	return recs, nil
}
