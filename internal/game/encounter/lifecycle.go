package encounter

import (
	"fmt"
	"time"
)

// CompleteEncounter ends an active encounter with outcome.
//
// Precondition: r is active; outcome is ResultVictory or ResultDefeated.
// Postcondition: Status is completed, EndTime is now, and Analytics.Success
// is true only for a victory.
func (r *Record) CompleteEncounter(outcome Result, now time.Time) error {
	if err := r.ensureActive(); err != nil {
		return err
	}
	if outcome != ResultVictory && outcome != ResultDefeated {
		return fmt.Errorf("outcome %q: %w", outcome, ErrInvalidOutcome)
	}
	r.finish(StatusCompleted, outcome, now)
	r.Analytics.Success = outcome == ResultVictory
	return nil
}

// FailEncounter marks an active encounter as failed. It is a no-op on any
// terminal record, including one that timed out.
//
// Postcondition: Returns true only when this call performed the transition.
func (r *Record) FailEncounter(now time.Time) bool {
	return r.endWithTimeout(StatusFailed, now)
}

// ExpireEncounter marks an active encounter as timed out. It is a no-op on any
// terminal record, including one that failed.
//
// Postcondition: Returns true only when this call performed the transition.
func (r *Record) ExpireEncounter(now time.Time) bool {
	return r.endWithTimeout(StatusTimedOut, now)
}

func (r *Record) endWithTimeout(status Status, now time.Time) bool {
	if r.Status.Terminal() {
		return false
	}
	r.finish(status, ResultTimeout, now)
	r.Analytics.Success = false
	return true
}

func (r *Record) finish(status Status, result Result, now time.Time) {
	end := now.UTC()
	r.Status = status
	r.Result = result
	r.EndTime = &end
	r.Analytics.Duration = end.Sub(r.StartTime)
}
