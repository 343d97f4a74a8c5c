// Package encounter implements the persistent turn-based group encounter engine:
// raids against a single boss and waves against a queue of monsters.
package encounter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes single-boss raids from multi-monster waves.
type Kind string

const (
	KindRaid Kind = "raid"
	KindWave Kind = "wave"
)

// Valid reports whether k is a recognised encounter kind.
func (k Kind) Valid() bool {
	return k == KindRaid || k == KindWave
}

// Status is the lifecycle state of an encounter.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusTimedOut  Status = "timed_out"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is one of the one-way end states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTimedOut || s == StatusFailed
}

// Result records how a terminal encounter ended. Empty while active.
type Result string

const (
	ResultNone     Result = ""
	ResultVictory  Result = "victory"
	ResultDefeated Result = "defeated"
	ResultTimeout  Result = "timeout"
)

// MonsterState is the live state of one monster target.
type MonsterState struct {
	Name          string `json:"name" bson:"name" yaml:"name"`
	Tier          int    `json:"tier" bson:"tier" yaml:"tier"`
	CurrentHearts int    `json:"current_hearts" bson:"current_hearts" yaml:"current_hearts"`
	MaxHearts     int    `json:"max_hearts" bson:"max_hearts" yaml:"max_hearts"`
}

// Depleted reports whether the monster has no hearts left.
func (m MonsterState) Depleted() bool { return m.CurrentHearts <= 0 }

// DefeatedMonster records which queue entry was cleared and by whom.
type DefeatedMonster struct {
	MonsterIndex int    `json:"monster_index" bson:"monster_index"`
	DefeatedBy   string `json:"defeated_by" bson:"defeated_by"`
}

// GearSnapshot names the equipment a character carried when joining.
type GearSnapshot struct {
	Weapon string `json:"weapon,omitempty" bson:"weapon,omitempty"`
	Armor  string `json:"armor,omitempty" bson:"armor,omitempty"`
	Shield string `json:"shield,omitempty" bson:"shield,omitempty"`
}

// CharacterSnapshot is the immutable combat stat snapshot taken at join time.
// It is a historical record; live KO state comes from the CharacterService.
type CharacterSnapshot struct {
	CurrentHearts  int          `json:"current_hearts" bson:"current_hearts"`
	MaxHearts      int          `json:"max_hearts" bson:"max_hearts"`
	CurrentStamina int          `json:"current_stamina" bson:"current_stamina"`
	MaxStamina     int          `json:"max_stamina" bson:"max_stamina"`
	Attack         int          `json:"attack" bson:"attack"`
	Defense        int          `json:"defense" bson:"defense"`
	Gear           GearSnapshot `json:"gear" bson:"gear"`
	KO             bool         `json:"ko" bson:"ko"`
}

// Participant is one occupant of the turn order.
type Participant struct {
	UserID             string            `json:"user_id" bson:"user_id"`
	CharacterID        string            `json:"character_id" bson:"character_id"`
	Name               string            `json:"name" bson:"name"`
	IsModCharacter     bool              `json:"is_mod_character" bson:"is_mod_character"`
	Damage             int               `json:"damage" bson:"damage"`
	RoundsParticipated int               `json:"rounds_participated" bson:"rounds_participated"`
	SkipCount          int               `json:"skip_count" bson:"skip_count"`
	JoinedAt           time.Time         `json:"joined_at" bson:"joined_at"`
	CharacterState     CharacterSnapshot `json:"character_state" bson:"character_state"`
}

// LootEligible reports whether the participant has contributed enough to keep
// reward eligibility after leaving.
func (p Participant) LootEligible() bool {
	return p.Damage >= 1 || p.RoundsParticipated >= 3
}

// LootStub is the minimal eligibility record kept for participants who left.
type LootStub struct {
	CharacterID string `json:"character_id" bson:"character_id"`
	UserID      string `json:"user_id" bson:"user_id"`
	Name        string `json:"name" bson:"name"`
	Damage      int    `json:"damage" bson:"damage"`
}

// Analytics is maintained incrementally by every mutation.
type Analytics struct {
	TotalDamage                 int           `json:"total_damage" bson:"total_damage"`
	ParticipantCount            int           `json:"participant_count" bson:"participant_count"`
	AverageDamagePerParticipant float64       `json:"average_damage_per_participant" bson:"average_damage_per_participant"`
	Success                     bool          `json:"success" bson:"success"`
	Duration                    time.Duration `json:"duration,omitempty" bson:"duration,omitempty"`
}

// Record is the single versioned aggregate for one encounter session.
//
// Invariant: CurrentTurnIndex == 0 when Participants is empty, otherwise
// 0 <= CurrentTurnIndex < len(Participants).
// Invariant: Analytics.ParticipantCount == len(Participants).
type Record struct {
	SessionID  string `json:"session_id" bson:"_id"`
	Kind       Kind   `json:"kind" bson:"kind"`
	LocationID string `json:"location_id" bson:"location_id"`
	ChannelID  string `json:"channel_id,omitempty" bson:"channel_id,omitempty"`

	// Monster is the active target for both kinds.
	Monster             MonsterState      `json:"monster" bson:"monster"`
	MonsterQueue        []MonsterState    `json:"monster_queue,omitempty" bson:"monster_queue,omitempty"`
	CurrentMonsterIndex int               `json:"current_monster_index" bson:"current_monster_index"`
	DefeatedLog         []DefeatedMonster `json:"defeated_log,omitempty" bson:"defeated_log,omitempty"`

	Participants        []Participant `json:"participants" bson:"participants"`
	CurrentTurnIndex    int           `json:"current_turn_index" bson:"current_turn_index"`
	LootEligibleRemoved []LootStub    `json:"loot_eligible_removed" bson:"loot_eligible_removed"`

	Status Status `json:"status" bson:"status"`
	Result Result `json:"result" bson:"result"`

	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" bson:"expires_at"`
	StartTime time.Time  `json:"start_time" bson:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" bson:"end_time,omitempty"`

	Analytics Analytics `json:"analytics" bson:"analytics"`

	// Version is the optimistic concurrency token. Stores advance it on every
	// successful Save and reject writes that carry a stale value.
	Version int64 `json:"version" bson:"version"`
}

// NewSessionID returns a fresh unique session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewRaid constructs an active single-boss encounter.
//
// Precondition: ttl > 0; boss must pass ValidateMonster.
// Postcondition: Returns an active Record with no participants and Version 0.
func NewRaid(sessionID, locationID, channelID string, boss MonsterState, now time.Time, ttl time.Duration) (*Record, error) {
	if err := ValidateMonster(boss); err != nil {
		return nil, err
	}
	if boss.CurrentHearts == 0 {
		boss.CurrentHearts = boss.MaxHearts
	}
	return newRecord(sessionID, KindRaid, locationID, channelID, boss, nil, now, ttl), nil
}

// NewWave constructs an active multi-monster encounter targeting queue[0].
//
// Precondition: queue is non-empty and every entry passes ValidateMonster; ttl > 0.
// Postcondition: Returns an active Record with CurrentMonsterIndex 0.
func NewWave(sessionID, locationID, channelID string, queue []MonsterState, now time.Time, ttl time.Duration) (*Record, error) {
	if len(queue) == 0 {
		return nil, ErrInvalidMonsterData
	}
	for i, m := range queue {
		if err := ValidateMonster(m); err != nil {
			return nil, fmt.Errorf("queue entry %d: %w", i, err)
		}
	}
	first := queue[0]
	if first.CurrentHearts == 0 {
		first.CurrentHearts = first.MaxHearts
	}
	q := make([]MonsterState, len(queue))
	copy(q, queue)
	return newRecord(sessionID, KindWave, locationID, channelID, first, q, now, ttl), nil
}

func newRecord(sessionID string, kind Kind, locationID, channelID string, target MonsterState, queue []MonsterState, now time.Time, ttl time.Duration) *Record {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	now = now.UTC()
	return &Record{
		SessionID:           sessionID,
		Kind:                kind,
		LocationID:          locationID,
		ChannelID:           channelID,
		Monster:             target,
		MonsterQueue:        queue,
		Participants:        []Participant{},
		LootEligibleRemoved: []LootStub{},
		Status:              StatusActive,
		Result:              ResultNone,
		CreatedAt:           now,
		StartTime:           now,
		ExpiresAt:           now.Add(ttl),
	}
}

// Clone returns a deep copy of r so a mutation can run without touching the
// loaded snapshot.
func (r *Record) Clone() *Record {
	out := *r
	out.MonsterQueue = cloneSlice(r.MonsterQueue)
	out.DefeatedLog = cloneSlice(r.DefeatedLog)
	out.Participants = cloneSlice(r.Participants)
	out.LootEligibleRemoved = cloneSlice(r.LootEligibleRemoved)
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	if out.LootEligibleRemoved == nil {
		out.LootEligibleRemoved = []LootStub{}
	}
	if r.EndTime != nil {
		end := *r.EndTime
		out.EndTime = &end
	}
	return &out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// IndexOfUser returns the participant slot holding userID, or -1.
func (r *Record) IndexOfUser(userID string) int {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// IndexOfCharacter returns the participant slot holding characterID, or -1.
func (r *Record) IndexOfCharacter(characterID string) int {
	for i := range r.Participants {
		if r.Participants[i].CharacterID == characterID {
			return i
		}
	}
	return -1
}

// IsExpired reports whether now is past the encounter's expiry.
func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

func (r *Record) ensureActive() error {
	if r.Status.Terminal() {
		return fmt.Errorf("encounter %s is %s: %w", r.SessionID, r.Status, ErrEncounterClosed)
	}
	return nil
}
