package encounter

import (
	"fmt"
)

// AddParticipant appends p to the turn order.
//
// Precondition: r is active.
// Postcondition: Returns ErrDuplicateParticipant if p.UserID is already present;
// otherwise p is the last slot and Analytics.ParticipantCount == len(Participants).
func (r *Record) AddParticipant(p Participant) error {
	if err := r.ensureActive(); err != nil {
		return err
	}
	if r.IndexOfUser(p.UserID) >= 0 {
		return fmt.Errorf("user %q: %w", p.UserID, ErrDuplicateParticipant)
	}
	if p.Damage < 0 || p.RoundsParticipated < 0 || p.SkipCount < 0 {
		return fmt.Errorf("participant %q has negative counters: %w", p.CharacterID, ErrInvalidDamage)
	}
	r.Participants = append(r.Participants, p)
	r.Analytics.ParticipantCount = len(r.Participants)
	return nil
}

// UpdateParticipantDamage credits delta damage and one round to characterID.
//
// Precondition: r is active; delta >= 0.
// Postcondition: Participant.Damage and Analytics.TotalDamage grow by delta,
// RoundsParticipated grows by one, and the average is recomputed.
func (r *Record) UpdateParticipantDamage(characterID string, delta int) error {
	if err := r.ensureActive(); err != nil {
		return err
	}
	if delta < 0 {
		return fmt.Errorf("delta %d: %w", delta, ErrInvalidDamage)
	}
	idx := r.IndexOfCharacter(characterID)
	if idx < 0 {
		return fmt.Errorf("character %q: %w", characterID, ErrParticipantNotFound)
	}
	p := &r.Participants[idx]
	p.Damage += delta
	p.RoundsParticipated++
	r.Analytics.TotalDamage += delta
	r.refreshAverage()
	return nil
}

// RemoveParticipant deletes the slot for characterID. When carryLoot is set and
// the participant is loot eligible, a LootStub is kept.
//
// Precondition: r is active.
// Postcondition: The slot is gone and CurrentTurnIndex is recomputed.
func (r *Record) RemoveParticipant(characterID string, carryLoot bool) error {
	if err := r.ensureActive(); err != nil {
		return err
	}
	idx := r.IndexOfCharacter(characterID)
	if idx < 0 {
		return fmt.Errorf("character %q: %w", characterID, ErrParticipantNotFound)
	}
	p := r.Participants[idx]
	if carryLoot && p.LootEligible() {
		r.LootEligibleRemoved = append(r.LootEligibleRemoved, LootStub{
			CharacterID: p.CharacterID,
			UserID:      p.UserID,
			Name:        p.Name,
			Damage:      p.Damage,
		})
	}
	r.removeAt(idx)
	return nil
}

// IncrementSkipCountAndMaybeRemove records a missed turn for the slot at index.
// A participant reaching two skips is evicted and forfeits loot.
//
// Precondition: r is active.
// Postcondition: Returns (true, nil) when the participant was removed.
func (r *Record) IncrementSkipCountAndMaybeRemove(index int) (bool, error) {
	if err := r.ensureActive(); err != nil {
		return false, err
	}
	if index < 0 || index >= len(r.Participants) {
		return false, fmt.Errorf("index %d of %d: %w", index, len(r.Participants), ErrInvalidIndex)
	}
	r.Participants[index].SkipCount++
	if r.Participants[index].SkipCount < maxSkips {
		return false, nil
	}
	r.removeAt(index)
	return true, nil
}

// maxSkips is the skip count at which a participant is evicted.
const maxSkips = 2

// removeAt deletes slot idx preserving order and keeps CurrentTurnIndex valid.
func (r *Record) removeAt(idx int) {
	r.Participants = append(r.Participants[:idx], r.Participants[idx+1:]...)
	n := len(r.Participants)
	switch {
	case n == 0:
		r.CurrentTurnIndex = 0
	case idx < r.CurrentTurnIndex:
		r.CurrentTurnIndex--
	case idx == r.CurrentTurnIndex:
		r.CurrentTurnIndex %= n
	}
	r.Analytics.ParticipantCount = n
}

func (r *Record) refreshAverage() {
	if r.Analytics.ParticipantCount == 0 {
		r.Analytics.AverageDamagePerParticipant = 0
		return
	}
	r.Analytics.AverageDamagePerParticipant = float64(r.Analytics.TotalDamage) / float64(r.Analytics.ParticipantCount)
}
