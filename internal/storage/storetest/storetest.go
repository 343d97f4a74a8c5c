// Package storetest holds the behavioural checks every encounter.Store
// implementation must pass. Backend test files call Run with a constructor.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// Run exercises store against the encounter.Store contract. Backends sharing
// state between subtests are fine: every check uses fresh session ids.
func Run(t *testing.T, store encounter.Store) {
	t.Helper()

	t.Run("CreateThenGet", func(t *testing.T) { testCreateThenGet(t, store) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, store) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, store) })
	t.Run("SaveAdvancesVersion", func(t *testing.T) { testSaveAdvancesVersion(t, store) })
	t.Run("SaveStaleVersion", func(t *testing.T) { testSaveStaleVersion(t, store) })
	t.Run("SaveMissing", func(t *testing.T) { testSaveMissing(t, store) })
	t.Run("FindActiveAndExpired", func(t *testing.T) { testFindActiveAndExpired(t, store) })
	t.Run("ConcurrentSavesOneWinner", func(t *testing.T) { testConcurrentSaves(t, store) })
}

// base is truncated to milliseconds so backends storing BSON dates round-trip exactly.
var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRaid(t *testing.T, now time.Time, ttl time.Duration) *encounter.Record {
	t.Helper()
	rec, err := encounter.NewRaid(encounter.NewSessionID(), "loc-1", "chan-1",
		encounter.MonsterState{Name: "Gorgon", Tier: 3, MaxHearts: 20}, now, ttl)
	require.NoError(t, err)
	return rec
}

func testCreateThenGet(t *testing.T, store encounter.Store) {
	ctx := context.Background()
	rec := newRaid(t, base, time.Hour)
	require.NoError(t, rec.AddParticipant(encounter.Participant{
		UserID: "u-1", CharacterID: "c-1", Name: "Ash", JoinedAt: base,
	}))

	require.NoError(t, store.Create(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	got, err := store.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.Equal(t, encounter.KindRaid, got.Kind)
	assert.Equal(t, encounter.StatusActive, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "Gorgon", got.Monster.Name)
	assert.Equal(t, 20, got.Monster.CurrentHearts)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "c-1", got.Participants[0].CharacterID)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt), "expires_at %v != %v", rec.ExpiresAt, got.ExpiresAt)
}

func testCreateDuplicate(t *testing.T, store encounter.Store) {
	ctx := context.Background()
	rec := newRaid(t, base, time.Hour)
	require.NoError(t, store.Create(ctx, rec))

	dup := newRaid(t, base, time.Hour)
	dup.SessionID = rec.SessionID
	err := store.Create(ctx, dup)
	assert.ErrorIs(t, err, encounter.ErrEncounterExists)
}

func testGetMissing(t *testing.T, store encounter.Store) {
	_, err := store.Get(context.Background(), encounter.NewSessionID())
	assert.ErrorIs(t, err, encounter.ErrEncounterNotFound)
}

func testSaveAdvancesVersion(t *testing.T, store encounter.Store) {
	ctx := context.Background()
	rec := newRaid(t, base, time.Hour)
	require.NoError(t, store.Create(ctx, rec))

	next := rec.Clone()
	require.NoError(t, next.AddParticipant(encounter.Participant{UserID: "u-1", CharacterID: "c-1", Name: "Ash"}))
	require.NoError(t, store.Save(ctx, next, 1))
	assert.Equal(t, int64(2), next.Version)

	got, err := store.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, got.Participants, 1)
}

func testSaveStaleVersion(t *testing.T, store encounter.Store) {
	ctx := context.Background()
	rec := newRaid(t, base, time.Hour)
	require.NoError(t, store.Create(ctx, rec))

	first := rec.Clone()
	require.NoError(t, store.Save(ctx, first, 1))

	stale := rec.Clone()
	stale.Monster.CurrentHearts = 1
	err := store.Save(ctx, stale, 1)
	require.ErrorIs(t, err, encounter.ErrVersionConflict)
	assert.Equal(t, int64(1), stale.Version)

	got, err := store.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 20, got.Monster.CurrentHearts)
}

func testSaveMissing(t *testing.T, store encounter.Store) {
	rec := newRaid(t, base, time.Hour)
	err := store.Save(context.Background(), rec, 1)
	assert.ErrorIs(t, err, encounter.ErrEncounterNotFound)
}

func testFindActiveAndExpired(t *testing.T, store encounter.Store) {
	ctx := context.Background()
	// Far from base so records from other subtests do not interleave.
	now := base.Add(24 * time.Hour)

	expiredEarly := newRaid(t, now.Add(-3*time.Hour), time.Hour)
	expiredLate := newRaid(t, now.Add(-2*time.Hour), time.Hour)
	expiringNow := newRaid(t, now.Add(-time.Hour), time.Hour)
	live := newRaid(t, now, time.Hour)
	closed := newRaid(t, now.Add(-3*time.Hour), time.Hour)
	for _, rec := range []*encounter.Record{expiredLate, live, expiringNow, expiredEarly, closed} {
		require.NoError(t, store.Create(ctx, rec))
	}
	done := closed.Clone()
	require.True(t, done.ExpireEncounter(now))
	require.NoError(t, store.Save(ctx, done, closed.Version))

	ours := map[string]bool{
		expiredEarly.SessionID: true, expiredLate.SessionID: true,
		expiringNow.SessionID: true, live.SessionID: true, closed.SessionID: true,
	}
	filter := func(recs []*encounter.Record) []string {
		var ids []string
		for _, r := range recs {
			if ours[r.SessionID] {
				ids = append(ids, r.SessionID)
			}
		}
		return ids
	}

	expired, err := store.FindExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{expiredEarly.SessionID, expiredLate.SessionID, expiringNow.SessionID}, filter(expired))

	active, err := store.FindActive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{live.SessionID}, filter(active))
}

func testConcurrentSaves(t *testing.T, store encounter.Store) {
	ctx := context.Background()
	rec := newRaid(t, base, time.Hour)
	require.NoError(t, store.Create(ctx, rec))

	const writers = 8
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := rec.Clone()
			next.Monster.CurrentHearts = i
			err := store.Save(ctx, next, 1)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, encounter.ErrVersionConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())

	got, err := store.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}
