package encounter_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/encounter/internal/game/encounter"
	"github.com/cory-johannsen/encounter/internal/game/encounter/mocks"
	"github.com/cory-johannsen/encounter/internal/storage/memory"
)

var now = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// conflictStore fails the next `conflicts` saves with a version conflict.
type conflictStore struct {
	encounter.Store
	conflicts atomic.Int32
	saves     atomic.Int32
}

func (s *conflictStore) Save(ctx context.Context, rec *encounter.Record, expected int64) error {
	s.saves.Add(1)
	if s.conflicts.Add(-1) >= 0 {
		return fmt.Errorf("injected: %w", encounter.ErrVersionConflict)
	}
	return s.Store.Save(ctx, rec, expected)
}

// hookStore runs beforeSave ahead of the first Save. Saves issued from inside
// the hook go straight through.
type hookStore struct {
	encounter.Store
	fired      atomic.Bool
	beforeSave func()
}

func (s *hookStore) Save(ctx context.Context, rec *encounter.Record, expected int64) error {
	if s.fired.CompareAndSwap(false, true) {
		s.beforeSave()
	}
	return s.Store.Save(ctx, rec, expected)
}

func seedRaid(t *testing.T, store encounter.Store, tier int) *encounter.Record {
	t.Helper()
	rec, err := encounter.NewRaid("", "loc-1", "chan-1", encounter.MonsterState{Name: "Hydra", Tier: tier, MaxHearts: 10}, now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), rec))
	return rec
}

func seedWave(t *testing.T, store encounter.Store, queue ...encounter.MonsterState) *encounter.Record {
	t.Helper()
	rec, err := encounter.NewWave("", "loc-1", "", queue, now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), rec))
	return rec
}

func participant(user, char string) encounter.Participant {
	return encounter.Participant{UserID: user, CharacterID: char, Name: user}
}

func newCoordinator(t *testing.T, store encounter.Store, opts encounter.Options) *encounter.Coordinator {
	t.Helper()
	if opts.Now == nil {
		opts.Now = clock
	}
	return encounter.NewCoordinator(store, nil, nil, nil, zaptest.NewLogger(t), opts)
}

func join(t *testing.T, c *encounter.Coordinator, sessionID string, chars ...string) {
	t.Helper()
	for _, ch := range chars {
		_, err := c.AddParticipant(context.Background(), sessionID, participant("u-"+ch, ch))
		require.NoError(t, err)
	}
}

func TestCoordinator_AddParticipant(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()

	got, err := c.AddParticipant(ctx, rec.SessionID, participant("u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, now, got.Participants[0].JoinedAt)

	_, err = c.AddParticipant(ctx, rec.SessionID, participant("u1", "c1"))
	assert.ErrorIs(t, err, encounter.ErrDuplicateParticipant)

	stored, err := c.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version, "failed mutation is not persisted")
}

func TestCoordinator_UnknownSession(t *testing.T) {
	c := newCoordinator(t, memory.NewEncounterStore(), encounter.Options{})
	_, err := c.AddParticipant(context.Background(), "missing", participant("u1", "c1"))
	assert.ErrorIs(t, err, encounter.ErrEncounterNotFound)
}

func TestCoordinator_RetriesOnConflict(t *testing.T) {
	store := &conflictStore{Store: memory.NewEncounterStore()}
	rec := seedRaid(t, store, 1)
	store.conflicts.Store(2)
	c := newCoordinator(t, store, encounter.Options{})

	got, err := c.AddParticipant(context.Background(), rec.SessionID, participant("u1", "c1"))
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
	assert.Equal(t, int32(3), store.saves.Load())
}

func TestCoordinator_ConcurrencyExhausted(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := &conflictStore{Store: memory.NewEncounterStore()}
	rec := seedRaid(t, store, 1)
	store.conflicts.Store(100)
	c := encounter.NewCoordinator(store, nil, nil, nil, zap.New(core), encounter.Options{Now: clock})

	_, err := c.AddParticipant(context.Background(), rec.SessionID, participant("u1", "c1"))
	require.ErrorIs(t, err, encounter.ErrConcurrencyExhausted)
	assert.Equal(t, int32(encounter.DefaultMaxAttempts), store.saves.Load())
	assert.Equal(t, 1, logs.FilterMessage("encounter mutation gave up after concurrent writes").Len())
}

func TestCoordinator_MaxAttemptsConfigurable(t *testing.T) {
	store := &conflictStore{Store: memory.NewEncounterStore()}
	rec := seedRaid(t, store, 1)
	store.conflicts.Store(4)
	c := newCoordinator(t, store, encounter.Options{MaxAttempts: 5})

	_, err := c.AddParticipant(context.Background(), rec.SessionID, participant("u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, int32(5), store.saves.Load())
}

func TestCoordinator_InterleavedJoinsBothLand(t *testing.T) {
	mem := memory.NewEncounterStore()
	store := &hookStore{Store: mem}
	rec := seedRaid(t, mem, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()

	// B joins between A's read and A's write, forcing A to retry.
	store.beforeSave = func() {
		_, err := c.AddParticipant(ctx, rec.SessionID, participant("uB", "B"))
		require.NoError(t, err)
	}

	got, err := c.AddParticipant(ctx, rec.SessionID, participant("uA", "A"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "B", got.Participants[0].CharacterID)
	assert.Equal(t, "A", got.Participants[1].CharacterID)
}

func TestCoordinator_InterleavedSameUserRejected(t *testing.T) {
	mem := memory.NewEncounterStore()
	store := &hookStore{Store: mem}
	rec := seedRaid(t, mem, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()

	store.beforeSave = func() {
		_, err := c.AddParticipant(ctx, rec.SessionID, participant("u1", "c1"))
		require.NoError(t, err)
	}

	_, err := c.AddParticipant(ctx, rec.SessionID, participant("u1", "c1"))
	assert.ErrorIs(t, err, encounter.ErrDuplicateParticipant)
}

func TestCoordinator_ConcurrentJoins(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"u1", "u2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.AddParticipant(ctx, rec.SessionID, participant(user, "c-"+user))
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	got, err := c.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)

	var dupes atomic.Int32
	var wins atomic.Int32
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AddParticipant(ctx, rec.SessionID, participant("u3", "c-u3"))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, encounter.ErrDuplicateParticipant):
				dupes.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), dupes.Load())
}

func TestCoordinator_AdvanceTurnEmptyIsNoOp(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})

	got, err := c.AdvanceTurn(context.Background(), rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestCoordinator_KindSpecificAdvance(t *testing.T) {
	ctrl := gomock.NewController(t)
	chars := mocks.NewMockCharacterService(ctrl)
	chars.EXPECT().LiveKOStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id string) (bool, error) { return id == "b", nil },
	).AnyTimes()

	store := memory.NewEncounterStore()
	c := encounter.NewCoordinator(store, chars, nil, nil, zaptest.NewLogger(t), encounter.Options{Now: clock})
	ctx := context.Background()

	raid := seedRaid(t, store, 1)
	wave := seedWave(t, store, encounter.MonsterState{Name: "Imp", Tier: 1, MaxHearts: 3})
	for _, id := range []string{raid.SessionID, wave.SessionID} {
		join(t, c, id, "a", "b", "c")
	}

	got, err := c.AdvanceTurn(ctx, raid.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Participants[got.CurrentTurnIndex].CharacterID)

	got, err = c.AdvanceTurn(ctx, wave.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "c", got.Participants[got.CurrentTurnIndex].CharacterID)

	eff, err := c.EffectiveCurrentTurnParticipant(ctx, raid.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "c", eff.CharacterID)

	raw, err := c.CurrentTurnParticipant(ctx, raid.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "b", raw.CharacterID)
}

func TestCoordinator_RecordAttackAndResolveRaid(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()
	join(t, c, rec.SessionID, "a")

	got, depleted, err := c.RecordAttack(ctx, rec.SessionID, "a", 4)
	require.NoError(t, err)
	assert.False(t, depleted)
	assert.Equal(t, 6, got.Monster.CurrentHearts)
	assert.Equal(t, 4, got.Participants[0].Damage)

	_, depleted, err = c.RecordAttack(ctx, rec.SessionID, "a", 10)
	require.NoError(t, err)
	assert.True(t, depleted)

	got, completed, err := c.ResolveMonsterDefeat(ctx, rec.SessionID, "a")
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, encounter.StatusCompleted, got.Status)
	assert.Equal(t, encounter.ResultVictory, got.Result)
	assert.True(t, got.Analytics.Success)

	_, _, err = c.RecordAttack(ctx, rec.SessionID, "a", 1)
	assert.ErrorIs(t, err, encounter.ErrEncounterClosed)

	_, _, err = c.ResolveMonsterDefeat(ctx, rec.SessionID, "a")
	assert.ErrorIs(t, err, encounter.ErrEncounterClosed)
}

func TestCoordinator_RecordAttackOnDepletedMonsterCreditsNothing(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()
	join(t, c, rec.SessionID, "a", "b")

	_, depleted, err := c.RecordAttack(ctx, rec.SessionID, "a", 10)
	require.NoError(t, err)
	require.True(t, depleted)

	_, depleted, err = c.RecordAttack(ctx, rec.SessionID, "b", 5)
	require.ErrorIs(t, err, encounter.ErrMonsterDefeated)
	assert.False(t, depleted)

	got, err := c.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Participants[1].Damage)
	assert.Equal(t, 10, got.Analytics.TotalDamage)
}

func TestCoordinator_ResolveMonsterDefeatRequiresDepletedMonster(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedWave(t, store,
		encounter.MonsterState{Name: "Imp", Tier: 1, MaxHearts: 3},
		encounter.MonsterState{Name: "Ogre", Tier: 2, MaxHearts: 8},
	)
	c := newCoordinator(t, store, encounter.Options{})
	join(t, c, rec.SessionID, "a")

	_, completed, err := c.ResolveMonsterDefeat(context.Background(), rec.SessionID, "a")
	require.ErrorIs(t, err, encounter.ErrMonsterAlive)
	assert.False(t, completed)

	got, err := c.Get(context.Background(), rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentMonsterIndex)
	assert.Empty(t, got.DefeatedLog)
}

func TestCoordinator_DoubleKillingBlowAdvancesWaveOnce(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedWave(t, store,
		encounter.MonsterState{Name: "A", Tier: 1, MaxHearts: 3},
		encounter.MonsterState{Name: "B", Tier: 1, MaxHearts: 3},
		encounter.MonsterState{Name: "C", Tier: 1, MaxHearts: 3},
	)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()
	join(t, c, rec.SessionID, "x", "y")

	_, xDepleted, err := c.RecordAttack(ctx, rec.SessionID, "x", 3)
	require.NoError(t, err)
	_, yDepleted, err := c.RecordAttack(ctx, rec.SessionID, "y", 3)
	require.ErrorIs(t, err, encounter.ErrMonsterDefeated)
	assert.True(t, xDepleted)
	assert.False(t, yDepleted)

	// Both attackers saw the kill land and race to resolve it.
	_, _, err = c.ResolveMonsterDefeat(ctx, rec.SessionID, "x")
	require.NoError(t, err)
	_, completed, err := c.ResolveMonsterDefeat(ctx, rec.SessionID, "y")
	require.ErrorIs(t, err, encounter.ErrMonsterAlive)
	assert.False(t, completed)

	got, err := c.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentMonsterIndex)
	assert.Equal(t, "B", got.Monster.Name)
	assert.Equal(t, 3, got.Monster.CurrentHearts)
	assert.Equal(t, []encounter.DefeatedMonster{{MonsterIndex: 0, DefeatedBy: "x"}}, got.DefeatedLog)
}

func TestCoordinator_ConcurrentResolvesAdvanceOnce(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedWave(t, store,
		encounter.MonsterState{Name: "A", Tier: 1, MaxHearts: 3},
		encounter.MonsterState{Name: "B", Tier: 1, MaxHearts: 3},
		encounter.MonsterState{Name: "C", Tier: 1, MaxHearts: 3},
	)
	c := newCoordinator(t, store, encounter.Options{MaxAttempts: 10})
	ctx := context.Background()
	join(t, c, rec.SessionID, "x")
	_, _, err := c.RecordAttack(ctx, rec.SessionID, "x", 3)
	require.NoError(t, err)

	const racers = 4
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.ResolveMonsterDefeat(ctx, rec.SessionID, "x")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, encounter.ErrMonsterAlive)
	}
	assert.Equal(t, 1, succeeded)

	got, err := c.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentMonsterIndex)
	assert.Len(t, got.DefeatedLog, 1)
}

func TestCoordinator_RecordAttackUnknownParticipantLeavesMonster(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})

	_, _, err := c.RecordAttack(context.Background(), rec.SessionID, "ghost", 4)
	require.ErrorIs(t, err, encounter.ErrParticipantNotFound)

	got, err := c.Get(context.Background(), rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Monster.CurrentHearts)
}

func TestCoordinator_WaveProgression(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedWave(t, store,
		encounter.MonsterState{Name: "Imp", Tier: 1, MaxHearts: 3},
		encounter.MonsterState{Name: "Ogre", Tier: 2, MaxHearts: 8},
	)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()
	join(t, c, rec.SessionID, "a", "b")
	_, err := c.AdvanceTurn(ctx, rec.SessionID)
	require.NoError(t, err)

	_, depleted, err := c.RecordAttack(ctx, rec.SessionID, "b", 3)
	require.NoError(t, err)
	require.True(t, depleted)

	got, completed, err := c.ResolveMonsterDefeat(ctx, rec.SessionID, "b")
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 1, got.CurrentMonsterIndex)
	assert.Equal(t, 0, got.CurrentTurnIndex)
	assert.Equal(t, "Ogre", got.Monster.Name)

	got, hasNext, err := c.AdvanceToNextMonster(ctx, rec.SessionID, "a")
	require.NoError(t, err)
	assert.False(t, hasNext)
	assert.Equal(t, encounter.StatusActive, got.Status)

	got, err = c.CompleteEncounter(ctx, rec.SessionID, encounter.ResultVictory)
	require.NoError(t, err)
	assert.Equal(t, encounter.StatusCompleted, got.Status)
	assert.Len(t, got.DefeatedLog, 2)
}

func TestCoordinator_SkipTurn(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()
	join(t, c, rec.SessionID, "a", "b", "c")

	got, removed, err := c.SkipTurn(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, got.CurrentTurnIndex)
	assert.Equal(t, 1, got.Participants[0].SkipCount)

	// Rotate back to a; the second skip evicts a without a loot stub.
	_, err = c.AdvanceTurn(ctx, rec.SessionID)
	require.NoError(t, err)
	_, err = c.AdvanceTurn(ctx, rec.SessionID)
	require.NoError(t, err)
	_, err = c.UpdateParticipantDamage(ctx, rec.SessionID, "a", 5)
	require.NoError(t, err)

	got, removed, err = c.SkipTurn(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.True(t, removed)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "b", got.Participants[got.CurrentTurnIndex].CharacterID)
	assert.Empty(t, got.LootEligibleRemoved)
}

func TestCoordinator_SkipTurnEmpty(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})

	got, removed, err := c.SkipTurn(context.Background(), rec.SessionID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, int64(1), got.Version)
}

func TestCoordinator_IncrementSkipEvictionPublishes(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := encounter.NewCoordinator(store, nil, nil, notifier, zaptest.NewLogger(t), encounter.Options{Now: clock})
	ctx := context.Background()

	notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	join(t, c, rec.SessionID, "a")

	_, removed, err := c.IncrementSkipCountAndMaybeRemove(ctx, rec.SessionID, 0)
	require.NoError(t, err)
	require.False(t, removed)

	notifier.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(encounter.Event{})).DoAndReturn(
		func(_ context.Context, ev encounter.Event) error {
			assert.Equal(t, encounter.EventParticipantEvicted, ev.Type)
			assert.Equal(t, "a", ev.CharacterID)
			assert.Equal(t, now, ev.At)
			return nil
		},
	)
	_, removed, err = c.IncrementSkipCountAndMaybeRemove(ctx, rec.SessionID, 0)
	require.NoError(t, err)
	assert.True(t, removed)

	_, _, err = c.IncrementSkipCountAndMaybeRemove(ctx, rec.SessionID, 0)
	assert.ErrorIs(t, err, encounter.ErrInvalidIndex)
}

func TestCoordinator_RemoveParticipantCarriesLoot(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx := context.Background()
	join(t, c, rec.SessionID, "a", "b")
	_, err := c.UpdateParticipantDamage(ctx, rec.SessionID, "a", 5)
	require.NoError(t, err)

	got, err := c.RemoveParticipant(ctx, rec.SessionID, "a", true)
	require.NoError(t, err)
	require.Len(t, got.LootEligibleRemoved, 1)
	assert.Equal(t, "a", got.LootEligibleRemoved[0].CharacterID)
	assert.Equal(t, 5, got.Analytics.TotalDamage)
}

func TestCoordinator_NotifierErrorsAreSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).AnyTimes()

	core, logs := observer.New(zap.WarnLevel)
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := encounter.NewCoordinator(store, nil, nil, notifier, zap.New(core), encounter.Options{Now: clock})

	_, err := c.AddParticipant(context.Background(), rec.SessionID, participant("u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("publishing encounter event").Len())
}

func TestCoordinator_CreateValidates(t *testing.T) {
	c := newCoordinator(t, memory.NewEncounterStore(), encounter.Options{})
	ctx := context.Background()

	rec, err := encounter.NewRaid("s-1", "loc", "", encounter.MonsterState{Name: "Imp", Tier: 1, MaxHearts: 3}, now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, rec))
	assert.ErrorIs(t, c.Create(ctx, rec.Clone()), encounter.ErrEncounterExists)

	bad := rec.Clone()
	bad.SessionID = "s-2"
	bad.Kind = "duel"
	assert.ErrorIs(t, c.Create(ctx, bad), encounter.ErrWrongKind)

	bad = rec.Clone()
	bad.SessionID = "s-3"
	bad.Monster.Name = ""
	assert.ErrorIs(t, c.Create(ctx, bad), encounter.ErrInvalidMonsterData)
}

func TestCoordinator_CancelledContext(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	c := newCoordinator(t, store, encounter.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AddParticipant(ctx, rec.SessionID, participant("u1", "c1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_ExpiryQueries(t *testing.T) {
	store := memory.NewEncounterStore()
	rec := seedRaid(t, store, 1)
	current := now
	c := newCoordinator(t, store, encounter.Options{Now: func() time.Time { return current }})
	ctx := context.Background()

	expired, err := c.IsExpired(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.False(t, expired)
	active, err := c.FindActiveRaids(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	current = now.Add(2 * time.Hour)
	expired, err = c.IsExpired(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.True(t, expired)
	stale, err := c.FindExpiredRaids(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, rec.SessionID, stale[0].SessionID)
}
