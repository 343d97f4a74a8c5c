// Package memory provides an in-process encounter store with the same
// optimistic concurrency contract as the database-backed stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// EncounterStore keeps records in a map guarded by a mutex. Records are copied
// on the way in and out so callers never share state with the store.
type EncounterStore struct {
	mu      sync.RWMutex
	records map[string]*encounter.Record
}

// NewEncounterStore returns an empty store.
func NewEncounterStore() *EncounterStore {
	return &EncounterStore{records: make(map[string]*encounter.Record)}
}

// Create inserts rec at version 1.
//
// Postcondition: Returns encounter.ErrEncounterExists for a duplicate session id.
func (s *EncounterStore) Create(_ context.Context, rec *encounter.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.SessionID]; ok {
		return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterExists)
	}
	rec.Version = 1
	s.records[rec.SessionID] = rec.Clone()
	return nil
}

// Get returns a copy of the stored record.
func (s *EncounterStore) Get(_ context.Context, sessionID string) (*encounter.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, encounter.ErrEncounterNotFound)
	}
	return rec.Clone(), nil
}

// Save replaces the record when the stored version equals expectedVersion.
//
// Postcondition: rec.Version == expectedVersion+1 on success;
// encounter.ErrVersionConflict if another writer saved first.
func (s *EncounterStore) Save(_ context.Context, rec *encounter.Record, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[rec.SessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterNotFound)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("session %s at version %d, expected %d: %w",
			rec.SessionID, cur.Version, expectedVersion, encounter.ErrVersionConflict)
	}
	rec.Version = expectedVersion + 1
	s.records[rec.SessionID] = rec.Clone()
	return nil
}

// FindActive returns active records expiring after now, oldest first.
func (s *EncounterStore) FindActive(_ context.Context, now time.Time) ([]*encounter.Record, error) {
	return s.find(func(r *encounter.Record) bool {
		return r.Status == encounter.StatusActive && r.ExpiresAt.After(now)
	}), nil
}

// FindExpired returns active records expiring at or before now, oldest first.
func (s *EncounterStore) FindExpired(_ context.Context, now time.Time) ([]*encounter.Record, error) {
	return s.find(func(r *encounter.Record) bool {
		return r.Status == encounter.StatusActive && !r.ExpiresAt.After(now)
	}), nil
}

func (s *EncounterStore) find(match func(*encounter.Record) bool) []*encounter.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*encounter.Record, 0)
	for _, r := range s.records {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}
