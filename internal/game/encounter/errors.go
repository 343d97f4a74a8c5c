package encounter

import "errors"

var (
	// ErrDuplicateParticipant is returned when a user joins an encounter they are already in.
	ErrDuplicateParticipant = errors.New("participant already in encounter")
	// ErrParticipantNotFound is returned when no participant matches the given character.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrInvalidMonsterData is returned when a monster entry lacks a name, tier, or hearts.
	ErrInvalidMonsterData = errors.New("invalid monster data")
	// ErrConcurrencyExhausted is returned when every optimistic retry lost to a concurrent writer.
	ErrConcurrencyExhausted = errors.New("concurrent modification retries exhausted")
	// ErrInvalidIndex is returned for a participant slot outside the turn order.
	ErrInvalidIndex = errors.New("participant index out of range")

	// ErrEncounterNotFound is returned by stores when no record exists for a session.
	ErrEncounterNotFound = errors.New("encounter not found")
	// ErrEncounterExists is returned by stores when creating a session id twice.
	ErrEncounterExists = errors.New("encounter already exists")
	// ErrEncounterClosed is returned when mutating an encounter in a terminal state.
	ErrEncounterClosed = errors.New("encounter is no longer active")
	// ErrVersionConflict is returned by stores when the persisted version moved on.
	ErrVersionConflict = errors.New("encounter version conflict")
	// ErrWrongKind is returned for operations that only apply to the other encounter kind.
	ErrWrongKind = errors.New("operation not supported for encounter kind")
	// ErrInvalidDamage is returned for a negative damage delta.
	ErrInvalidDamage = errors.New("damage must not be negative")
	// ErrMonsterDefeated is returned when attacking a target that has no hearts left.
	ErrMonsterDefeated = errors.New("monster already defeated")
	// ErrMonsterAlive is returned when resolving a defeat while the target still has hearts.
	ErrMonsterAlive = errors.New("monster still has hearts")
	// ErrWaveExhausted is returned when advancing a wave past its last queued monster.
	ErrWaveExhausted = errors.New("wave has no monsters left")
	// ErrInvalidOutcome is returned when completing with something other than victory or defeat.
	ErrInvalidOutcome = errors.New("invalid completion outcome")
)

// errNoChange aborts a transaction without persisting. The coordinator treats it as success.
var errNoChange = errors.New("no change")
