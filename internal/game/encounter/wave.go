package encounter

import (
	"fmt"
)

// ValidateMonster checks that m can serve as an encounter target.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidMonsterData.
func ValidateMonster(m MonsterState) error {
	switch {
	case m.Name == "":
		return fmt.Errorf("monster has no name: %w", ErrInvalidMonsterData)
	case m.Tier < 1:
		return fmt.Errorf("monster %q tier %d: %w", m.Name, m.Tier, ErrInvalidMonsterData)
	case m.MaxHearts < 1:
		return fmt.Errorf("monster %q max hearts %d: %w", m.Name, m.MaxHearts, ErrInvalidMonsterData)
	case m.CurrentHearts < 0 || m.CurrentHearts > m.MaxHearts:
		return fmt.Errorf("monster %q hearts %d/%d: %w", m.Name, m.CurrentHearts, m.MaxHearts, ErrInvalidMonsterData)
	}
	return nil
}

// AdvanceToNextMonster logs the active wave monster as defeated by defeatedBy
// and moves to the next queue entry. It never ends the encounter; when the
// queue is exhausted it returns hasNext=false and the caller completes it.
//
// Precondition: r is an active wave whose queue is not yet exhausted.
// Postcondition: On hasNext, Monster is the new queue entry and CurrentTurnIndex is 0.
// Returns ErrWaveExhausted once every queued monster is in DefeatedLog.
func (r *Record) AdvanceToNextMonster(defeatedBy string) (hasNext bool, err error) {
	if err := r.ensureActive(); err != nil {
		return false, err
	}
	if r.Kind != KindWave {
		return false, fmt.Errorf("advancing monster on %s: %w", r.Kind, ErrWrongKind)
	}
	if r.CurrentMonsterIndex >= len(r.MonsterQueue) {
		return false, fmt.Errorf("advancing past monster %d of %d: %w", r.CurrentMonsterIndex, len(r.MonsterQueue), ErrWaveExhausted)
	}
	next := r.CurrentMonsterIndex + 1
	if next < len(r.MonsterQueue) {
		m := r.MonsterQueue[next]
		if err := ValidateMonster(m); err != nil {
			return false, fmt.Errorf("queue entry %d: %w", next, err)
		}
		if m.CurrentHearts == 0 {
			m.CurrentHearts = m.MaxHearts
		}
		r.Monster = m
		r.CurrentTurnIndex = 0
	}
	r.DefeatedLog = append(r.DefeatedLog, DefeatedMonster{
		MonsterIndex: r.CurrentMonsterIndex,
		DefeatedBy:   defeatedBy,
	})
	r.CurrentMonsterIndex = next
	return next < len(r.MonsterQueue), nil
}

// ApplyMonsterDamage removes hearts from the active monster, flooring at zero.
//
// Precondition: r is active; amount >= 0; the monster is not yet depleted.
// Postcondition: Returns true when the monster is depleted. A monster already
// at zero hearts yields ErrMonsterDefeated.
func (r *Record) ApplyMonsterDamage(amount int) (bool, error) {
	if err := r.ensureActive(); err != nil {
		return false, err
	}
	if amount < 0 {
		return false, fmt.Errorf("monster damage %d: %w", amount, ErrInvalidDamage)
	}
	if r.Monster.Depleted() {
		return false, fmt.Errorf("attacking %q: %w", r.Monster.Name, ErrMonsterDefeated)
	}
	r.Monster.CurrentHearts -= amount
	if r.Monster.CurrentHearts < 0 {
		r.Monster.CurrentHearts = 0
	}
	return r.Monster.Depleted(), nil
}
