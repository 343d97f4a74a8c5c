package encounter

//go:generate go tool mockgen -destination=./mocks/collaborators_mock.go -package=mocks . CharacterService,LocationDamager,Notifier

import (
	"context"
	"time"
)

// Store persists one versioned Record per session.
type Store interface {
	// Create inserts rec. Returns ErrEncounterExists on a duplicate SessionID.
	// Postcondition: rec.Version is set to the stored version.
	Create(ctx context.Context, rec *Record) error
	// Get loads the record for sessionID or returns ErrEncounterNotFound.
	Get(ctx context.Context, sessionID string) (*Record, error)
	// Save replaces the stored record only if its version still equals
	// expectedVersion, returning ErrVersionConflict otherwise.
	// Postcondition: on success rec.Version is the new stored version.
	Save(ctx context.Context, rec *Record, expectedVersion int64) error
	// FindActive returns active records with ExpiresAt after now.
	FindActive(ctx context.Context, now time.Time) ([]*Record, error)
	// FindExpired returns active records with ExpiresAt at or before now.
	FindExpired(ctx context.Context, now time.Time) ([]*Record, error)
}

// CharacterService is the external owner of live character state.
type CharacterService interface {
	// LiveKOStatus reports whether the character is knocked out right now.
	LiveKOStatus(ctx context.Context, characterID string) (bool, error)
	// SetKOAndZeroHearts knocks the character out and drops their hearts to zero.
	SetKOAndZeroHearts(ctx context.Context, characterID string) error
}

// LocationDamager applies monster damage to an encounter's home location.
type LocationDamager interface {
	ApplyDamage(ctx context.Context, locationID string, monster MonsterState, channelID string) error
}

// Notifier delivers encounter events. Delivery is best effort; errors are logged
// by the caller and never fail an engine operation.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// EventType names an engine event.
type EventType string

const (
	EventParticipantJoined  EventType = "participant_joined"
	EventParticipantLeft    EventType = "participant_left"
	EventParticipantEvicted EventType = "participant_evicted"
	EventDamageRecorded     EventType = "damage_recorded"
	EventTurnAdvanced       EventType = "turn_advanced"
	EventMonsterDefeated    EventType = "monster_defeated"
	EventEncounterCompleted EventType = "encounter_completed"
	EventEncounterFailed    EventType = "encounter_failed"
	EventEncounterExpired   EventType = "encounter_expired"
)

// Event is the payload handed to a Notifier.
type Event struct {
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id"`
	Kind        Kind      `json:"kind"`
	ChannelID   string    `json:"channel_id,omitempty"`
	CharacterID string    `json:"character_id,omitempty"`
	Status      Status    `json:"status"`
	Version     int64     `json:"version"`
	At          time.Time `json:"at"`
}
