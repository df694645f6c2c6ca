package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StanceUpdate asks the engine to move a belief to a new position. Exactly one
// of Signal and TargetConfidence is set. An empty Text keeps the current text.
type StanceUpdate struct {
	PersonaID        uuid.UUID
	BeliefID         uuid.UUID
	Text             string
	Signal           *domain.EvidenceSignal
	TargetConfidence *float64
	Rationale        string
	Trigger          domain.TriggerType
	Actor            string
	Lock             bool
}

// StanceEngine is the only writer of stance versions after a belief is created.
type StanceEngine struct {
	beliefs domain.BeliefStore
	stances domain.StanceStore
	locks   *personaLocks
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewStanceEngine(beliefs domain.BeliefStore, stances domain.StanceStore, m *metrics.Metrics, logger *zap.Logger) *StanceEngine {
	return &StanceEngine{
		beliefs: beliefs,
		stances: stances,
		locks:   newPersonaLocks(),
		metrics: m,
		logger:  logger,
	}
}

// UpdateStance supersedes the head with a new version. A locked head rejects
// the update with domain.ErrLockedStance and nothing is written.
func (e *StanceEngine) UpdateStance(ctx context.Context, u StanceUpdate) (uuid.UUID, error) {
	return e.apply(ctx, u, false)
}

// OverrideStance is the explicit review path. It may replace a locked head;
// the locked version is retired unchanged and the audit trigger is always
// external_review.
func (e *StanceEngine) OverrideStance(ctx context.Context, u StanceUpdate) (uuid.UUID, error) {
	u.Trigger = domain.TriggerExternalReview
	return e.apply(ctx, u, true)
}

func (e *StanceEngine) apply(ctx context.Context, u StanceUpdate, override bool) (id uuid.UUID, err error) {
	ctx, span := startSpan(ctx, "StanceEngine.UpdateStance",
		attribute.String("persona_id", u.PersonaID.String()),
		attribute.String("belief_id", u.BeliefID.String()),
		attribute.String("trigger", string(u.Trigger)),
		attribute.Bool("override", override),
	)
	defer func() {
		e.metrics.StanceUpdates.WithLabelValues(string(u.Trigger), outcomeLabel(err)).Inc()
		endSpan(span, err)
	}()

	if err := validateStanceUpdate(u); err != nil {
		return uuid.Nil, err
	}

	unlock := e.locks.Lock(u.PersonaID)
	defer unlock()

	belief, err := e.beliefs.GetByID(ctx, u.PersonaID, u.BeliefID)
	if err != nil {
		return uuid.Nil, err
	}

	head, err := e.stances.GetHead(ctx, u.PersonaID, u.BeliefID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		head = nil
	case err != nil:
		return uuid.Nil, err
	}

	if head != nil && head.Status == domain.StanceLocked && !override {
		e.logger.Info("stance update rejected: locked",
			zap.String("persona_id", u.PersonaID.String()),
			zap.String("belief_id", u.BeliefID.String()),
			zap.String("trigger", string(u.Trigger)),
			zap.String("actor", u.Actor))
		return uuid.Nil, domain.ErrLockedStance
	}

	prior := domain.PriorConfidence
	old := domain.StanceSnapshot{Confidence: prior}
	var expected *uuid.UUID
	if head != nil {
		prior = head.Confidence
		old = head.Snapshot()
		expected = &head.ID
	}

	confidence, err := ResolveConfidence(prior, u.Signal, u.TargetConfidence)
	if err != nil {
		return uuid.Nil, err
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		if head != nil {
			text = head.Text
		} else {
			text = belief.Title
		}
	}

	status := domain.StanceCurrent
	if u.Lock {
		status = domain.StanceLocked
	}
	next := &domain.StanceVersion{
		ID:         uuid.New(),
		Text:       text,
		Confidence: confidence,
		Status:     status,
		Rationale:  u.Rationale,
	}
	record := &domain.BeliefUpdateRecord{
		ID:       uuid.New(),
		OldValue: old,
		NewValue: next.Snapshot(),
		Reason:   u.Rationale,
		Trigger:  u.Trigger,
		Actor:    u.Actor,
	}

	if err := e.stances.Apply(ctx, domain.StanceMutation{
		PersonaID:      u.PersonaID,
		BeliefID:       u.BeliefID,
		ExpectedHeadID: expected,
		Next:           next,
		Record:         record,
	}); err != nil {
		if errors.Is(err, domain.ErrConcurrency) {
			e.logger.Warn("stance head moved during update",
				zap.String("persona_id", u.PersonaID.String()),
				zap.String("belief_id", u.BeliefID.String()))
		}
		return uuid.Nil, err
	}

	e.logger.Info("stance updated",
		zap.String("persona_id", u.PersonaID.String()),
		zap.String("belief_id", u.BeliefID.String()),
		zap.String("version_id", next.ID.String()),
		zap.Int("version", next.Version),
		zap.Float64("old_confidence", old.Confidence),
		zap.Float64("new_confidence", confidence),
		zap.String("status", string(status)),
		zap.String("trigger", string(u.Trigger)),
		zap.String("actor", u.Actor))

	return next.ID, nil
}

func validateStanceUpdate(u StanceUpdate) error {
	if !domain.ValidTriggerType(string(u.Trigger)) {
		return domain.Invalid("unknown trigger type %q", u.Trigger)
	}
	if strings.TrimSpace(u.Actor) == "" {
		return domain.Invalid("actor is required")
	}
	// The prior only matters for signals; this call checks shape and ranges.
	_, err := ResolveConfidence(domain.PriorConfidence, u.Signal, u.TargetConfidence)
	return err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, domain.ErrLockedStance):
		return "locked"
	case errors.Is(err, domain.ErrConcurrency):
		return "concurrency"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	}
	return "error"
}
