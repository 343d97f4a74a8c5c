package encounter

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FailEncounter ends an active encounter as failed and applies the failure
// consequences. Calling it on a terminal encounter returns the record unchanged.
//
// Postcondition: The status write is authoritative; KO and location damage
// errors are logged and never returned.
func (c *Coordinator) FailEncounter(ctx context.Context, sessionID string) (*Record, error) {
	rec, _, err := c.resolveFailure(ctx, "fail_encounter", sessionID, (*Record).FailEncounter, EventEncounterFailed)
	return rec, err
}

// ExpireEncounter is the expiry sweep's entry point. It behaves like
// FailEncounter but records the timed_out status.
func (c *Coordinator) ExpireEncounter(ctx context.Context, sessionID string) (*Record, error) {
	rec, _, err := c.expire(ctx, sessionID)
	return rec, err
}

func (c *Coordinator) expire(ctx context.Context, sessionID string) (*Record, bool, error) {
	return c.resolveFailure(ctx, "expire_encounter", sessionID, (*Record).ExpireEncounter, EventEncounterExpired)
}

func (c *Coordinator) resolveFailure(
	ctx context.Context,
	op, sessionID string,
	transition func(*Record, time.Time) bool,
	typ EventType,
) (*Record, bool, error) {
	transitioned := false
	rec, err := c.Transact(ctx, op, sessionID, func(_ context.Context, r *Record) error {
		transitioned = transition(r, c.opts.Now())
		if !transitioned {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !transitioned {
		c.logger.Debug("encounter already terminal",
			zap.String("op", op),
			zap.String("session_id", sessionID),
			zap.String("status", string(rec.Status)),
		)
		return rec, false, nil
	}
	c.logger.Info("encounter ended without victory",
		zap.String("session_id", sessionID),
		zap.String("status", string(rec.Status)),
		zap.Int("participants", len(rec.Participants)),
		zap.Duration("duration", rec.Analytics.Duration),
	)
	// The terminal state is committed; consequences must run to completion even
	// if the caller goes away.
	c.applyFailureEffects(context.WithoutCancel(ctx), rec)
	c.publish(ctx, rec, typ, "")
	return rec, true, nil
}

// applyFailureEffects knocks out every remaining participant and, for
// high-tier monsters, damages the home location.
func (c *Coordinator) applyFailureEffects(ctx context.Context, rec *Record) {
	if c.chars != nil {
		var g errgroup.Group
		g.SetLimit(c.opts.SideEffectConcurrency)
		for _, p := range rec.Participants {
			g.Go(func() error {
				if err := c.chars.SetKOAndZeroHearts(ctx, p.CharacterID); err != nil {
					c.logger.Error("knocking out participant after failed encounter",
						zap.String("session_id", rec.SessionID),
						zap.String("character_id", p.CharacterID),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if c.locations == nil || !c.highTier(rec.Monster.Tier) {
		return
	}
	if err := c.locations.ApplyDamage(ctx, rec.LocationID, rec.Monster, rec.ChannelID); err != nil {
		c.logger.Error("applying location damage after failed encounter",
			zap.String("session_id", rec.SessionID),
			zap.String("location_id", rec.LocationID),
			zap.Int("tier", rec.Monster.Tier),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) highTier(tier int) bool {
	if c.opts.HighTierMin <= 0 {
		return false
	}
	if tier < c.opts.HighTierMin {
		return false
	}
	return c.opts.HighTierMax <= 0 || tier <= c.opts.HighTierMax
}
