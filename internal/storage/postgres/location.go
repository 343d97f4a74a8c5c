package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// ErrLocationNotFound is returned when a location lookup yields no results.
var ErrLocationNotFound = errors.New("location not found")

// LocationRepository tracks damage dealt to home locations by failed encounters.
type LocationRepository struct {
	db *pgxpool.Pool
}

// NewLocationRepository creates a LocationRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewLocationRepository(db *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{db: db}
}

// Location is a home location and the damage it has accumulated.
type Location struct {
	ID     string
	Name   string
	Damage int
}

// Create inserts a location with no damage.
//
// Precondition: id must be non-empty.
func (r *LocationRepository) Create(ctx context.Context, id, name string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO locations (id, name) VALUES ($1, $2)`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("inserting location: %w", err)
	}
	return nil
}

// GetByID retrieves a location.
//
// Postcondition: Returns the Location or ErrLocationNotFound.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (Location, error) {
	var loc Location
	err := r.db.QueryRow(ctx,
		`SELECT id, name, damage FROM locations WHERE id = $1`,
		id,
	).Scan(&loc.ID, &loc.Name, &loc.Damage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrLocationNotFound
		}
		return Location{}, fmt.Errorf("querying location: %w", err)
	}
	return loc, nil
}

// ApplyDamage adds damage for monster to the location and records the event.
// A monster deals one point of damage per tier.
//
// Postcondition: Returns ErrLocationNotFound if locationID is unknown; nothing
// is written in that case.
func (r *LocationRepository) ApplyDamage(ctx context.Context, locationID string, monster encounter.MonsterState, channelID string) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE locations SET damage = damage + $2, updated_at = NOW() WHERE id = $1`,
			locationID, monster.Tier,
		)
		if err != nil {
			return fmt.Errorf("damaging location: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLocationNotFound
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO location_damage_events (location_id, monster_name, monster_tier, damage, channel_id)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
			locationID, monster.Name, monster.Tier, monster.Tier, channelID,
		)
		if err != nil {
			return fmt.Errorf("recording location damage: %w", err)
		}
		return nil
	})
}
