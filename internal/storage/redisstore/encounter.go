// Package redisstore persists encounter records in Redis. Each record is a JSON
// string; active records are also indexed in a sorted set scored by expiry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// NewClient builds a client from cfg and verifies it with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// EncounterStore implements encounter.Store. Save uses WATCH/MULTI so a write
// commits only if the key is untouched since it was read.
type EncounterStore struct {
	client *redis.Client
	prefix string
}

// NewEncounterStore returns a store writing keys under prefix.
func NewEncounterStore(client *redis.Client, prefix string) *EncounterStore {
	return &EncounterStore{client: client, prefix: prefix}
}

func (s *EncounterStore) key(sessionID string) string {
	return s.prefix + ":encounter:" + sessionID
}

func (s *EncounterStore) activeKey() string {
	return s.prefix + ":encounters:active"
}

// Create stores rec at version 1 unless the session id is taken.
func (s *EncounterStore) Create(ctx context.Context, rec *encounter.Record) error {
	rec.Version = 1
	data, err := json.Marshal(rec)
	if err != nil {
		rec.Version = 0
		return fmt.Errorf("encoding encounter: %w", err)
	}
	key := s.key(rec.SessionID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("checking encounter existence: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterExists)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, rec, data)
			return nil
		})
		return err
	}, key)
	if err != nil {
		rec.Version = 0
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterExists)
		}
		return err
	}
	return nil
}

// Get loads the record for sessionID.
func (s *EncounterStore) Get(ctx context.Context, sessionID string) (*encounter.Record, error) {
	return s.get(ctx, s.client, sessionID)
}

// Save writes rec only if the stored version equals expectedVersion and no
// other client modifies the key between the read and the write.
func (s *EncounterStore) Save(ctx context.Context, rec *encounter.Record, expectedVersion int64) error {
	key := s.key(rec.SessionID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, rec.SessionID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("session %s expected version %d: %w", rec.SessionID, expectedVersion, encounter.ErrVersionConflict)
		}
		rec.Version = expectedVersion + 1
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding encounter: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, rec, data)
			return nil
		})
		return err
	}, key)
	if err != nil {
		rec.Version = expectedVersion
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("session %s expected version %d: %w", rec.SessionID, expectedVersion, encounter.ErrVersionConflict)
		}
		return err
	}
	return nil
}

// write queues the document and keeps the active index in step with status.
func (s *EncounterStore) write(ctx context.Context, pipe redis.Pipeliner, rec *encounter.Record, data []byte) {
	pipe.Set(ctx, s.key(rec.SessionID), data, 0)
	if rec.Status == encounter.StatusActive {
		pipe.ZAdd(ctx, s.activeKey(), redis.Z{
			Score:  float64(rec.ExpiresAt.UnixMilli()),
			Member: rec.SessionID,
		})
		return
	}
	pipe.ZRem(ctx, s.activeKey(), rec.SessionID)
}

func (s *EncounterStore) get(ctx context.Context, c redis.Cmdable, sessionID string) (*encounter.Record, error) {
	data, err := c.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %s: %w", sessionID, encounter.ErrEncounterNotFound)
		}
		return nil, fmt.Errorf("reading encounter: %w", err)
	}
	var rec encounter.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding encounter: %w", err)
	}
	return &rec, nil
}

// FindActive returns active encounters expiring after now, soonest first.
func (s *EncounterStore) FindActive(ctx context.Context, now time.Time) ([]*encounter.Record, error) {
	// Scores have millisecond resolution; widen by one and filter exactly below.
	minScore := strconv.FormatInt(now.UnixMilli()-1, 10)
	return s.scan(ctx, minScore, "+inf", func(rec *encounter.Record) bool {
		return rec.ExpiresAt.After(now)
	})
}

// FindExpired returns active encounters expiring at or before now, soonest first.
func (s *EncounterStore) FindExpired(ctx context.Context, now time.Time) ([]*encounter.Record, error) {
	maxScore := strconv.FormatInt(now.UnixMilli()+1, 10)
	return s.scan(ctx, "-inf", maxScore, func(rec *encounter.Record) bool {
		return !rec.ExpiresAt.After(now)
	})
}

func (s *EncounterStore) scan(ctx context.Context, minScore, maxScore string, keep func(*encounter.Record) bool) ([]*encounter.Record, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.activeKey(), &redis.ZRangeBy{Min: minScore, Max: maxScore}).Result()
	if err != nil {
		return nil, fmt.Errorf("scanning active index: %w", err)
	}
	recs := make([]*encounter.Record, 0, len(ids))
	if len(ids) == 0 {
		return recs, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading encounters: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document; skip it.
			continue
		}
		var rec encounter.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decoding encounter %s: %w", ids[i], err)
		}
		if rec.Status != encounter.StatusActive || !keep(&rec) {
			continue
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}
