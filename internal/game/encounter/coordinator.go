package encounter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxAttempts is the optimistic retry budget used when Options leaves it unset.
const DefaultMaxAttempts = 3

const tracerName = "github.com/cory-johannsen/encounter/internal/game/encounter"

// Options tunes a Coordinator. Zero values select defaults.
type Options struct {
	// MaxAttempts bounds load/mutate/save attempts per operation.
	MaxAttempts int
	// HighTierMin and HighTierMax bound (inclusive) the monster tiers whose
	// failure damages the home location. HighTierMin == 0 disables location damage.
	HighTierMin int
	HighTierMax int
	// SideEffectConcurrency bounds parallel KO calls when an encounter fails.
	SideEffectConcurrency int
	// Now supplies the current time.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.SideEffectConcurrency <= 0 {
		o.SideEffectConcurrency = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Mutation changes a private copy of the loaded record. It must depend only on
// rec so it can be rerun against a fresher copy after a version conflict.
type Mutation func(ctx context.Context, rec *Record) error

// Coordinator runs every state change against a Store as an optimistic
// read-modify-write transaction and owns the lifecycle side effects.
// All methods are safe for concurrent use.
type Coordinator struct {
	store     Store
	chars     CharacterService
	locations LocationDamager
	notifier  Notifier
	logger    *zap.Logger
	tracer    trace.Tracer
	opts      Options
	ko        koReader
	policies  map[Kind]Policy
}

// NewCoordinator wires a Coordinator.
//
// Precondition: store and logger must be non-nil. chars, locations, and notifier
// may be nil; the corresponding lookups and side effects are skipped.
// Postcondition: Returns a non-nil Coordinator.
func NewCoordinator(
	store Store,
	chars CharacterService,
	locations LocationDamager,
	notifier Notifier,
	logger *zap.Logger,
	opts Options,
) *Coordinator {
	return &Coordinator{
		store:     store,
		chars:     chars,
		locations: locations,
		notifier:  notifier,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		opts:      opts.withDefaults(),
		ko:        koReader{chars: chars, logger: logger},
		policies: map[Kind]Policy{
			KindRaid: NewPolicy(KindRaid, chars, logger),
			KindWave: NewPolicy(KindWave, chars, logger),
		},
	}
}

// Transact loads the record for sessionID, applies mutate to a copy, and saves
// it conditioned on the version that was read. Version conflicts reload and
// rerun mutate, so its preconditions are always checked against fresh state.
//
// Postcondition: Returns the persisted record; the loaded record unchanged when
// mutate reports no change; mutate's own error without retrying; or
// ErrConcurrencyExhausted once every attempt lost to a concurrent writer.
func (c *Coordinator) Transact(ctx context.Context, op, sessionID string, mutate Mutation) (*Record, error) {
	ctx, span := c.tracer.Start(ctx, "encounter."+op, trace.WithAttributes(
		attribute.String("encounter.session_id", sessionID),
	))
	defer span.End()

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		current, err := c.store.Get(ctx, sessionID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("loading encounter %s: %w", sessionID, err)
		}
		next := current.Clone()
		if err := mutate(ctx, next); err != nil {
			if errors.Is(err, errNoChange) {
				span.SetAttributes(attribute.Bool("encounter.changed", false))
				return current, nil
			}
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		err = c.store.Save(ctx, next, current.Version)
		if err == nil {
			span.SetAttributes(
				attribute.Int("encounter.attempts", attempt),
				attribute.Int64("encounter.version", next.Version),
			)
			return next, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("saving encounter %s: %w", sessionID, err)
		}
		span.AddEvent("version_conflict", trace.WithAttributes(attribute.Int("encounter.attempt", attempt)))
		c.logger.Debug("encounter version conflict, retrying",
			zap.String("op", op),
			zap.String("session_id", sessionID),
			zap.Int("attempt", attempt),
			zap.Int64("read_version", current.Version),
		)
	}
	c.logger.Warn("encounter mutation gave up after concurrent writes",
		zap.String("op", op),
		zap.String("session_id", sessionID),
		zap.Int("attempts", c.opts.MaxAttempts),
	)
	span.SetStatus(codes.Error, ErrConcurrencyExhausted.Error())
	return nil, fmt.Errorf("%s on encounter %s after %d attempts: %w", op, sessionID, c.opts.MaxAttempts, ErrConcurrencyExhausted)
}

// Create persists a freshly spawned encounter.
//
// Precondition: rec.Kind is valid and rec is active.
// Postcondition: Returns ErrEncounterExists if rec.SessionID is taken.
func (c *Coordinator) Create(ctx context.Context, rec *Record) error {
	if !rec.Kind.Valid() {
		return fmt.Errorf("creating encounter with kind %q: %w", rec.Kind, ErrWrongKind)
	}
	if err := rec.ensureActive(); err != nil {
		return err
	}
	if err := ValidateMonster(rec.Monster); err != nil {
		return fmt.Errorf("creating encounter %s: %w", rec.SessionID, err)
	}
	if err := c.store.Create(ctx, rec); err != nil {
		return fmt.Errorf("creating encounter %s: %w", rec.SessionID, err)
	}
	c.logger.Info("encounter created",
		zap.String("session_id", rec.SessionID),
		zap.String("kind", string(rec.Kind)),
		zap.String("monster", rec.Monster.Name),
		zap.Time("expires_at", rec.ExpiresAt),
	)
	return nil
}

// Get loads the current record for sessionID.
func (c *Coordinator) Get(ctx context.Context, sessionID string) (*Record, error) {
	rec, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading encounter %s: %w", sessionID, err)
	}
	return rec, nil
}

// AddParticipant joins p to the encounter. JoinedAt defaults to now.
//
// Postcondition: Returns ErrDuplicateParticipant when p.UserID is already in the
// freshly loaded record, even if an earlier attempt saw it absent.
func (c *Coordinator) AddParticipant(ctx context.Context, sessionID string, p Participant) (*Record, error) {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = c.opts.Now().UTC()
	}
	rec, err := c.Transact(ctx, "add_participant", sessionID, func(_ context.Context, r *Record) error {
		return r.AddParticipant(p)
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, rec, EventParticipantJoined, p.CharacterID)
	return rec, nil
}

// UpdateParticipantDamage credits delta damage and one round to characterID.
func (c *Coordinator) UpdateParticipantDamage(ctx context.Context, sessionID, characterID string, delta int) (*Record, error) {
	rec, err := c.Transact(ctx, "update_participant_damage", sessionID, func(_ context.Context, r *Record) error {
		return r.UpdateParticipantDamage(characterID, delta)
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, rec, EventDamageRecorded, characterID)
	return rec, nil
}

// RecordAttack credits damage to characterID and removes the same number of
// hearts from the active monster in one transaction.
//
// Postcondition: depleted is true only for the attack that took the monster's
// last heart. Attacking a monster that is already depleted returns
// ErrMonsterDefeated and credits nothing.
func (c *Coordinator) RecordAttack(ctx context.Context, sessionID, characterID string, damage int) (rec *Record, depleted bool, err error) {
	rec, err = c.Transact(ctx, "record_attack", sessionID, func(_ context.Context, r *Record) error {
		var derr error
		depleted, derr = r.ApplyMonsterDamage(damage)
		if derr != nil {
			return derr
		}
		return r.UpdateParticipantDamage(characterID, damage)
	})
	if err != nil {
		return nil, false, err
	}
	c.publish(ctx, rec, EventDamageRecorded, characterID)
	return rec, depleted, nil
}

// RemoveParticipant takes characterID out of the turn order. With carryLoot a
// loot-eligible participant keeps a LootStub.
func (c *Coordinator) RemoveParticipant(ctx context.Context, sessionID, characterID string, carryLoot bool) (*Record, error) {
	rec, err := c.Transact(ctx, "remove_participant", sessionID, func(_ context.Context, r *Record) error {
		return r.RemoveParticipant(characterID, carryLoot)
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, rec, EventParticipantLeft, characterID)
	return rec, nil
}

// IncrementSkipCountAndMaybeRemove records a missed turn for the slot at index,
// evicting the participant without loot on their second skip.
func (c *Coordinator) IncrementSkipCountAndMaybeRemove(ctx context.Context, sessionID string, index int) (rec *Record, removed bool, err error) {
	var evicted string
	rec, err = c.Transact(ctx, "increment_skip_count", sessionID, func(_ context.Context, r *Record) error {
		evicted = ""
		if index >= 0 && index < len(r.Participants) {
			evicted = r.Participants[index].CharacterID
		}
		var rerr error
		removed, rerr = r.IncrementSkipCountAndMaybeRemove(index)
		return rerr
	})
	if err != nil {
		return nil, false, err
	}
	if removed {
		c.logger.Info("participant evicted for skipping",
			zap.String("session_id", sessionID),
			zap.String("character_id", evicted),
		)
		c.publish(ctx, rec, EventParticipantEvicted, evicted)
	}
	return rec, removed, nil
}

// SkipTurn charges a skip to the current turn holder and, when they remain,
// advances the turn past them. An evicted holder's slot is already taken by the
// next participant.
func (c *Coordinator) SkipTurn(ctx context.Context, sessionID string) (rec *Record, removed bool, err error) {
	var holder string
	rec, err = c.Transact(ctx, "skip_turn", sessionID, func(ctx context.Context, r *Record) error {
		holder = ""
		removed = false
		if len(r.Participants) == 0 {
			if err := r.ensureActive(); err != nil {
				return err
			}
			return errNoChange
		}
		holder = r.Participants[r.CurrentTurnIndex].CharacterID
		var serr error
		removed, serr = r.IncrementSkipCountAndMaybeRemove(r.CurrentTurnIndex)
		if serr != nil || removed {
			return serr
		}
		_, serr = r.AdvanceTurn(advanceSkip(ctx, c.policyFor(r.Kind)))
		return serr
	})
	if err != nil {
		return nil, false, err
	}
	if removed {
		c.publish(ctx, rec, EventParticipantEvicted, holder)
	} else if holder != "" {
		c.publish(ctx, rec, EventTurnAdvanced, "")
	}
	return rec, removed, nil
}

// AdvanceTurn moves the turn to the next participant the kind policy allows.
// An empty encounter is left untouched.
func (c *Coordinator) AdvanceTurn(ctx context.Context, sessionID string) (*Record, error) {
	changed := false
	rec, err := c.Transact(ctx, "advance_turn", sessionID, func(ctx context.Context, r *Record) error {
		var aerr error
		changed, aerr = r.AdvanceTurn(advanceSkip(ctx, c.policyFor(r.Kind)))
		if aerr != nil {
			return aerr
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		c.publish(ctx, rec, EventTurnAdvanced, "")
	}
	return rec, nil
}

// EffectiveCurrentTurnParticipant returns whose turn it effectively is, passing
// over mod characters and anyone knocked out.
//
// Postcondition: Returns nil when nobody is eligible; callers then fall back to
// CurrentTurnParticipant.
func (c *Coordinator) EffectiveCurrentTurnParticipant(ctx context.Context, sessionID string) (*Participant, error) {
	rec, err := c.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rec.EffectiveCurrentTurnParticipant(effectiveSkip(ctx, c.ko)), nil
}

// CurrentTurnParticipant returns the raw occupant of the turn pointer.
func (c *Coordinator) CurrentTurnParticipant(ctx context.Context, sessionID string) (*Participant, error) {
	rec, err := c.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rec.CurrentTurnParticipant(), nil
}

// AdvanceToNextMonster moves a wave to its next monster. When hasNext is false
// the queue is exhausted and the caller should complete the encounter.
func (c *Coordinator) AdvanceToNextMonster(ctx context.Context, sessionID, defeatedBy string) (rec *Record, hasNext bool, err error) {
	rec, err = c.Transact(ctx, "advance_to_next_monster", sessionID, func(_ context.Context, r *Record) error {
		var aerr error
		hasNext, aerr = r.AdvanceToNextMonster(defeatedBy)
		return aerr
	})
	if err != nil {
		return nil, false, err
	}
	c.publish(ctx, rec, EventMonsterDefeated, defeatedBy)
	return rec, hasNext, nil
}

// ResolveMonsterDefeat handles a depleted target in one transaction: a wave
// with monsters left moves on, anything else completes with victory.
//
// Precondition: the active monster has no hearts left in the stored record.
// Postcondition: completed reports whether the encounter ended. Returns
// ErrMonsterAlive when another caller already resolved this defeat.
func (c *Coordinator) ResolveMonsterDefeat(ctx context.Context, sessionID, defeatedBy string) (rec *Record, completed bool, err error) {
	rec, err = c.Transact(ctx, "resolve_monster_defeat", sessionID, func(_ context.Context, r *Record) error {
		completed = false
		if err := r.ensureActive(); err != nil {
			return err
		}
		if !r.Monster.Depleted() {
			return fmt.Errorf("resolving %q with %d hearts: %w", r.Monster.Name, r.Monster.CurrentHearts, ErrMonsterAlive)
		}
		if r.Kind == KindWave {
			hasNext, aerr := r.AdvanceToNextMonster(defeatedBy)
			if aerr != nil || hasNext {
				return aerr
			}
		}
		completed = true
		return r.CompleteEncounter(ResultVictory, c.opts.Now())
	})
	if err != nil {
		return nil, false, err
	}
	c.publish(ctx, rec, EventMonsterDefeated, defeatedBy)
	if completed {
		c.logCompletion(rec)
		c.publish(ctx, rec, EventEncounterCompleted, "")
	}
	return rec, completed, nil
}

// CompleteEncounter ends an active encounter with outcome.
func (c *Coordinator) CompleteEncounter(ctx context.Context, sessionID string, outcome Result) (*Record, error) {
	rec, err := c.Transact(ctx, "complete_encounter", sessionID, func(_ context.Context, r *Record) error {
		return r.CompleteEncounter(outcome, c.opts.Now())
	})
	if err != nil {
		return nil, err
	}
	c.logCompletion(rec)
	c.publish(ctx, rec, EventEncounterCompleted, "")
	return rec, nil
}

// IsExpired reports whether the encounter is past its expiry.
func (c *Coordinator) IsExpired(ctx context.Context, sessionID string) (bool, error) {
	rec, err := c.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return rec.IsExpired(c.opts.Now()), nil
}

// FindActiveRaids returns active encounters that have not yet expired.
func (c *Coordinator) FindActiveRaids(ctx context.Context) ([]*Record, error) {
	recs, err := c.store.FindActive(ctx, c.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("finding active encounters: %w", err)
	}
	return recs, nil
}

// FindExpiredRaids returns active encounters whose expiry has passed.
func (c *Coordinator) FindExpiredRaids(ctx context.Context) ([]*Record, error) {
	recs, err := c.store.FindExpired(ctx, c.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("finding expired encounters: %w", err)
	}
	return recs, nil
}

func (c *Coordinator) policyFor(kind Kind) Policy {
	if p, ok := c.policies[kind]; ok {
		return p
	}
	return c.policies[KindRaid]
}

func (c *Coordinator) logCompletion(rec *Record) {
	c.logger.Info("encounter completed",
		zap.String("session_id", rec.SessionID),
		zap.String("result", string(rec.Result)),
		zap.Int("participants", rec.Analytics.ParticipantCount),
		zap.Int("total_damage", rec.Analytics.TotalDamage),
		zap.Duration("duration", rec.Analytics.Duration),
	)
}

// publish hands an event to the notifier. Failures are logged and dropped.
func (c *Coordinator) publish(ctx context.Context, rec *Record, typ EventType, characterID string) {
	if c.notifier == nil {
		return
	}
	ev := Event{
		Type:        typ,
		SessionID:   rec.SessionID,
		Kind:        rec.Kind,
		ChannelID:   rec.ChannelID,
		CharacterID: characterID,
		Status:      rec.Status,
		Version:     rec.Version,
		At:          c.opts.Now().UTC(),
	}
	if err := c.notifier.Publish(ctx, ev); err != nil {
		c.logger.Warn("publishing encounter event",
			zap.String("session_id", rec.SessionID),
			zap.String("event", string(typ)),
			zap.Error(err),
		)
	}
}
