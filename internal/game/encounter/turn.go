package encounter

// SkipFunc reports whether a participant should be passed over by the turn scheduler.
type SkipFunc func(p Participant) bool

// AdvanceTurn moves CurrentTurnIndex to the next participant that skip does not
// exclude, probing each other slot once in turn order. When every participant is
// excluded it still moves one slot forward so the rotation never stalls.
//
// Precondition: r is active.
// Postcondition: Returns false without changes when Participants is empty;
// otherwise 0 <= CurrentTurnIndex < len(Participants).
func (r *Record) AdvanceTurn(skip SkipFunc) (bool, error) {
	if err := r.ensureActive(); err != nil {
		return false, err
	}
	n := len(r.Participants)
	if n == 0 {
		return false, nil
	}
	for i := 1; i <= n; i++ {
		idx := (r.CurrentTurnIndex + i) % n
		if skip == nil || !skip(r.Participants[idx]) {
			r.CurrentTurnIndex = idx
			return true, nil
		}
	}
	r.CurrentTurnIndex = (r.CurrentTurnIndex + 1) % n
	return true, nil
}

// EffectiveCurrentTurnParticipant returns the first participant, starting at
// CurrentTurnIndex, that skip does not exclude. It never mutates r.
//
// Postcondition: Returns nil when no participant is eligible.
func (r *Record) EffectiveCurrentTurnParticipant(skip SkipFunc) *Participant {
	n := len(r.Participants)
	for i := 0; i < n; i++ {
		idx := (r.CurrentTurnIndex + i) % n
		if skip == nil || !skip(r.Participants[idx]) {
			p := r.Participants[idx]
			return &p
		}
	}
	return nil
}

// CurrentTurnParticipant returns the raw occupant of CurrentTurnIndex.
//
// Postcondition: Returns nil when Participants is empty.
func (r *Record) CurrentTurnParticipant() *Participant {
	if len(r.Participants) == 0 {
		return nil
	}
	p := r.Participants[r.CurrentTurnIndex]
	return &p
}
