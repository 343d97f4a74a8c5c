package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// EncounterRepository stores each encounter as a JSONB document next to the
// columns needed for lookups and the version used for compare-and-swap.
type EncounterRepository struct {
	db *pgxpool.Pool
}

// NewEncounterRepository creates an EncounterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEncounterRepository(db *pgxpool.Pool) *EncounterRepository {
	return &EncounterRepository{db: db}
}

// Create inserts rec at version 1.
//
// Postcondition: rec.Version == 1, or encounter.ErrEncounterExists on a duplicate session id.
func (r *EncounterRepository) Create(ctx context.Context, rec *encounter.Record) error {
	rec.Version = 1
	doc, err := json.Marshal(rec)
	if err != nil {
		rec.Version = 0
		return fmt.Errorf("encoding encounter: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO encounters (session_id, kind, status, expires_at, version, document)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.SessionID, string(rec.Kind), string(rec.Status), rec.ExpiresAt, rec.Version, doc,
	)
	if err != nil {
		rec.Version = 0
		if isDuplicateKeyError(err) {
			return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterExists)
		}
		return fmt.Errorf("inserting encounter: %w", err)
	}
	return nil
}

// Get loads the record for sessionID.
//
// Postcondition: Returns the record or encounter.ErrEncounterNotFound.
func (r *EncounterRepository) Get(ctx context.Context, sessionID string) (*encounter.Record, error) {
	rec, err := scanEncounter(r.db.QueryRow(ctx, `
		SELECT version, document FROM encounters WHERE session_id = $1`,
		sessionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, encounter.ErrEncounterNotFound)
		}
		return nil, fmt.Errorf("querying encounter: %w", err)
	}
	return rec, nil
}

// Save replaces the document only if the row is still at expectedVersion.
//
// Postcondition: rec.Version == expectedVersion+1 on success;
// encounter.ErrVersionConflict if the row moved on; encounter.ErrEncounterNotFound
// if it does not exist.
func (r *EncounterRepository) Save(ctx context.Context, rec *encounter.Record, expectedVersion int64) error {
	rec.Version = expectedVersion + 1
	doc, err := json.Marshal(rec)
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("encoding encounter: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE encounters
		SET status = $3, expires_at = $4, version = $5, document = $6, updated_at = NOW()
		WHERE session_id = $1 AND version = $2`,
		rec.SessionID, expectedVersion, string(rec.Status), rec.ExpiresAt, rec.Version, doc,
	)
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("updating encounter: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	rec.Version = expectedVersion

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM encounters WHERE session_id = $1)`,
		rec.SessionID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking encounter existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("session %s: %w", rec.SessionID, encounter.ErrEncounterNotFound)
	}
	return fmt.Errorf("session %s expected version %d: %w", rec.SessionID, expectedVersion, encounter.ErrVersionConflict)
}

// FindActive returns active encounters expiring after now, soonest first.
func (r *EncounterRepository) FindActive(ctx context.Context, now time.Time) ([]*encounter.Record, error) {
	return r.list(ctx, `
		SELECT version, document FROM encounters
		WHERE status = 'active' AND expires_at > $1
		ORDER BY expires_at ASC`, now)
}

// FindExpired returns active encounters expiring at or before now, soonest first.
func (r *EncounterRepository) FindExpired(ctx context.Context, now time.Time) ([]*encounter.Record, error) {
	return r.list(ctx, `
		SELECT version, document FROM encounters
		WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at ASC`, now)
}

func (r *EncounterRepository) list(ctx context.Context, query string, now time.Time) ([]*encounter.Record, error) {
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("listing encounters: %w", err)
	}
	defer rows.Close()

	recs := make([]*encounter.Record, 0)
	for rows.Next() {
		rec, err := scanEncounter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning encounter row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// scanEncounter decodes a (version, document) row. The version column is
// authoritative over the copy embedded in the document.
func scanEncounter(row pgx.Row) (*encounter.Record, error) {
	var (
		version int64
		doc     []byte
	)
	if err := row.Scan(&version, &doc); err != nil {
		return nil, err
	}
	var rec encounter.Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decoding encounter document: %w", err)
	}
	rec.Version = version
	return &rec, nil
}
