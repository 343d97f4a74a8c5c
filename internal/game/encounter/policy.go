package encounter

import (
	"context"

	"go.uber.org/zap"
)

// Policy carries the rules that differ between encounter kinds.
type Policy interface {
	// Kind is the encounter kind this policy governs.
	Kind() Kind
	// SkipOnAdvance reports whether p is passed over when advancing the turn.
	SkipOnAdvance(ctx context.Context, p Participant) bool
}

// koReader performs best-effort live KO lookups. A failed lookup counts as
// not knocked out so a flaky character service cannot freeze the rotation.
type koReader struct {
	chars  CharacterService
	logger *zap.Logger
}

func (k koReader) isKO(ctx context.Context, characterID string) bool {
	if k.chars == nil {
		return false
	}
	ko, err := k.chars.LiveKOStatus(ctx, characterID)
	if err != nil {
		k.logger.Warn("live KO lookup failed, treating as conscious",
			zap.String("character_id", characterID),
			zap.Error(err),
		)
		return false
	}
	return ko
}

// raidPolicy only passes over mod characters. Knocked-out raiders keep their
// slot so they can revive or leave on their own turn.
type raidPolicy struct{}

func (raidPolicy) Kind() Kind { return KindRaid }

func (raidPolicy) SkipOnAdvance(_ context.Context, p Participant) bool {
	return p.IsModCharacter
}

// wavePolicy passes over mod characters and anyone currently knocked out.
type wavePolicy struct {
	ko koReader
}

func (wavePolicy) Kind() Kind { return KindWave }

func (w wavePolicy) SkipOnAdvance(ctx context.Context, p Participant) bool {
	if p.IsModCharacter {
		return true
	}
	return w.ko.isKO(ctx, p.CharacterID)
}

// NewPolicy returns the policy for kind.
//
// Precondition: kind.Valid(); logger must be non-nil. chars may be nil, in which
// case nobody is ever considered knocked out.
func NewPolicy(kind Kind, chars CharacterService, logger *zap.Logger) Policy {
	if kind == KindWave {
		return wavePolicy{ko: koReader{chars: chars, logger: logger}}
	}
	return raidPolicy{}
}

// effectiveSkip excludes mod characters and live-KO participants for both kinds.
func effectiveSkip(ctx context.Context, ko koReader) SkipFunc {
	return func(p Participant) bool {
		return p.IsModCharacter || ko.isKO(ctx, p.CharacterID)
	}
}

func advanceSkip(ctx context.Context, pol Policy) SkipFunc {
	return func(p Participant) bool {
		return pol.SkipOnAdvance(ctx, p)
	}
}
