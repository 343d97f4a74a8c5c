package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/encounter/internal/storage/postgres"
	"github.com/cory-johannsen/encounter/internal/testutil"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestCharacterRepository_UpsertAndGet(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	id := uniqueID("char")
	require.NoError(t, repo.Upsert(ctx, postgres.CharacterVitals{ID: id, Name: "Zara", CurrentHearts: 4, MaxHearts: 5}))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Zara", got.Name)
	assert.Equal(t, 4, got.CurrentHearts)
	assert.False(t, got.KO)

	require.NoError(t, repo.Upsert(ctx, postgres.CharacterVitals{ID: id, Name: "Zara", CurrentHearts: 5, MaxHearts: 5}))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentHearts)
}

func TestCharacterRepository_KnockOut(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	id := uniqueID("char")
	require.NoError(t, repo.Upsert(ctx, postgres.CharacterVitals{ID: id, Name: "Bram", CurrentHearts: 3, MaxHearts: 5}))

	ko, err := repo.LiveKOStatus(ctx, id)
	require.NoError(t, err)
	assert.False(t, ko)

	require.NoError(t, repo.SetKOAndZeroHearts(ctx, id))

	ko, err = repo.LiveKOStatus(ctx, id)
	require.NoError(t, err)
	assert.True(t, ko)
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentHearts)
}

func TestCharacterRepository_NotFound(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
	_, err = repo.LiveKOStatus(ctx, "missing")
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
	assert.ErrorIs(t, repo.SetKOAndZeroHearts(ctx, "missing"), postgres.ErrCharacterNotFound)
}

// TestCharacterRepository_Property_KOAlwaysZeroesHearts verifies that for any
// starting vitals, SetKOAndZeroHearts leaves the character KO with no hearts.
func TestCharacterRepository_Property_KOAlwaysZeroesHearts(t *testing.T) {
	repo := postgres.NewCharacterRepository(testutil.NewPool(t))
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		maxHearts := rapid.IntRange(1, 50).Draw(rt, "max")
		cur := rapid.IntRange(0, maxHearts).Draw(rt, "current")
		id := uniqueID("prop")
		require.NoError(rt, repo.Upsert(ctx, postgres.CharacterVitals{ID: id, Name: "P", CurrentHearts: cur, MaxHearts: maxHearts}))
		require.NoError(rt, repo.SetKOAndZeroHearts(ctx, id))

		got, err := repo.GetByID(ctx, id)
		require.NoError(rt, err)
		assert.True(rt, got.KO)
		assert.Equal(rt, 0, got.CurrentHearts)
		assert.Equal(rt, maxHearts, got.MaxHearts)
	})
}
