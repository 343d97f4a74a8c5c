package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/encounter/internal/game/encounter"
)

// seedFile is the YAML layout accepted by spawn.
type seedFile struct {
	Encounters []seedEncounter `yaml:"encounters"`
}

type seedEncounter struct {
	Kind         encounter.Kind           `yaml:"kind"`
	SessionID    string                   `yaml:"session_id"`
	LocationID   string                   `yaml:"location_id"`
	ChannelID    string                   `yaml:"channel_id"`
	TTL          time.Duration            `yaml:"ttl"`
	Monsters     []encounter.MonsterState `yaml:"monsters"`
	Participants []seedParticipant        `yaml:"participants"`
}

type seedParticipant struct {
	UserID      string `yaml:"user_id"`
	CharacterID string `yaml:"character_id"`
	Name        string `yaml:"name"`
	Mod         bool   `yaml:"mod"`
	Hearts      int    `yaml:"hearts"`
	Attack      int    `yaml:"attack"`
	Defense     int    `yaml:"defense"`
}

func loadSeedFile(path string) (seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, fmt.Errorf("reading seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return seedFile{}, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	if len(sf.Encounters) == 0 {
		return seedFile{}, fmt.Errorf("seed file %s defines no encounters", path)
	}
	return sf, nil
}

// build turns a seed entry into a fresh record. A raid takes the first monster
// as its boss; a wave queues every monster in file order.
func (s seedEncounter) build(now time.Time) (*encounter.Record, error) {
	if s.TTL <= 0 {
		return nil, fmt.Errorf("encounter at %s: ttl must be positive", s.LocationID)
	}
	if len(s.Monsters) == 0 {
		return nil, fmt.Errorf("encounter at %s: %w", s.LocationID, encounter.ErrInvalidMonsterData)
	}
	id := s.SessionID
	if id == "" {
		id = encounter.NewSessionID()
	}
	switch s.Kind {
	case encounter.KindRaid:
		if len(s.Monsters) > 1 {
			return nil, fmt.Errorf("raid %s: exactly one boss expected, got %d monsters", id, len(s.Monsters))
		}
		return encounter.NewRaid(id, s.LocationID, s.ChannelID, s.Monsters[0], now, s.TTL)
	case encounter.KindWave:
		return encounter.NewWave(id, s.LocationID, s.ChannelID, s.Monsters, now, s.TTL)
	default:
		return nil, fmt.Errorf("encounter %s with kind %q: %w", id, s.Kind, encounter.ErrWrongKind)
	}
}

func (p seedParticipant) participant() encounter.Participant {
	return encounter.Participant{
		UserID:         p.UserID,
		CharacterID:    p.CharacterID,
		Name:           p.Name,
		IsModCharacter: p.Mod,
		CharacterState: encounter.CharacterSnapshot{
			CurrentHearts: p.Hearts,
			MaxHearts:     p.Hearts,
			Attack:        p.Attack,
			Defense:       p.Defense,
		},
	}
}
