package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// CharacterRepository exposes the live character state the encounter engine
// reads and writes: the KO flag and current hearts.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// CharacterVitals is the live combat state of one character.
type CharacterVitals struct {
	ID            string
	Name          string
	CurrentHearts int
	MaxHearts     int
	KO            bool
}

// Upsert creates or replaces the vitals for a character.
//
// Precondition: v.ID must be non-empty; 0 <= v.CurrentHearts <= v.MaxHearts.
func (r *CharacterRepository) Upsert(ctx context.Context, v CharacterVitals) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO characters (id, name, current_hearts, max_hearts, ko)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, current_hearts = EXCLUDED.current_hearts,
		    max_hearts = EXCLUDED.max_hearts, ko = EXCLUDED.ko, updated_at = NOW()`,
		v.ID, v.Name, v.CurrentHearts, v.MaxHearts, v.KO,
	)
	if err != nil {
		return fmt.Errorf("upserting character: %w", err)
	}
	return nil
}

// GetByID retrieves a character's vitals.
//
// Postcondition: Returns the vitals or ErrCharacterNotFound.
func (r *CharacterRepository) GetByID(ctx context.Context, id string) (CharacterVitals, error) {
	var v CharacterVitals
	err := r.db.QueryRow(ctx, `
		SELECT id, name, current_hearts, max_hearts, ko
		FROM characters WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.Name, &v.CurrentHearts, &v.MaxHearts, &v.KO)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CharacterVitals{}, ErrCharacterNotFound
		}
		return CharacterVitals{}, fmt.Errorf("querying character: %w", err)
	}
	return v, nil
}

// LiveKOStatus reports whether the character is currently knocked out.
//
// Postcondition: Returns ErrCharacterNotFound for an unknown id.
func (r *CharacterRepository) LiveKOStatus(ctx context.Context, characterID string) (bool, error) {
	var ko bool
	err := r.db.QueryRow(ctx,
		`SELECT ko FROM characters WHERE id = $1`,
		characterID,
	).Scan(&ko)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrCharacterNotFound
		}
		return false, fmt.Errorf("querying character ko: %w", err)
	}
	return ko, nil
}

// SetKOAndZeroHearts knocks the character out and drops current hearts to zero.
//
// Postcondition: Returns nil on success, ErrCharacterNotFound if no row updated.
func (r *CharacterRepository) SetKOAndZeroHearts(ctx context.Context, characterID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE characters SET ko = TRUE, current_hearts = 0, updated_at = NOW()
		WHERE id = $1`,
		characterID,
	)
	if err != nil {
		return fmt.Errorf("knocking out character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}
