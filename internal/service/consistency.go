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

const defaultVerdictActor = "consistency-checker"

// BeliefSnapshot is the plain view of a belief handed to an external checker.
type BeliefSnapshot struct {
	BeliefID   uuid.UUID         `json:"belief_id"`
	Title      string            `json:"title"`
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Locked     bool              `json:"locked"`
	Conviction domain.Conviction `json:"conviction"`
}

// Verdict is an external checker's judgement of a draft against one belief.
type Verdict struct {
	BeliefID    uuid.UUID
	Contradicts bool
	Severity    domain.EvidenceStrength
	Rationale   string
	Actor       string
	// SourceRef, when set, is recorded as observed_interaction evidence before
	// the stance is adjusted.
	SourceRef string
}

type VerdictAction string

const (
	VerdictIgnored VerdictAction = "ignored"
	VerdictApplied VerdictAction = "applied"
	VerdictLocked  VerdictAction = "locked"
)

type VerdictOutcome struct {
	Action     VerdictAction `json:"action"`
	EvidenceID *uuid.UUID    `json:"evidence_id,omitempty"`
	VersionID  *uuid.UUID    `json:"version_id,omitempty"`
}

// ConsistencyService is where an outside consistency checker reads the
// persona's positions and reports contradictions back. It makes no judgements
// of its own.
type ConsistencyService struct {
	beliefs     *BeliefService
	stances     domain.StanceStore
	engine      *StanceEngine
	evidence    *EvidenceService
	minSeverity domain.EvidenceStrength
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewConsistencyService(beliefs *BeliefService, stances domain.StanceStore, engine *StanceEngine, evidence *EvidenceService, minSeverity domain.EvidenceStrength, m *metrics.Metrics, logger *zap.Logger) *ConsistencyService {
	if !domain.ValidEvidenceStrength(string(minSeverity)) {
		minSeverity = domain.StrengthModerate
	}
	return &ConsistencyService{
		beliefs:     beliefs,
		stances:     stances,
		engine:      engine,
		evidence:    evidence,
		minSeverity: minSeverity,
		metrics:     m,
		logger:      logger,
	}
}

// Snapshot lists the persona's beliefs matching filter with their head text.
func (s *ConsistencyService) Snapshot(ctx context.Context, personaID uuid.UUID, filter domain.GraphFilter) (out []BeliefSnapshot, err error) {
	ctx, span := startSpan(ctx, "ConsistencyService.Snapshot", attribute.String("persona_id", personaID.String()))
	defer func() { endSpan(span, err) }()

	graph, err := s.beliefs.GetGraph(ctx, personaID, filter)
	if err != nil {
		return nil, err
	}

	out = make([]BeliefSnapshot, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		snap := BeliefSnapshot{
			BeliefID:   n.ID,
			Title:      n.Title,
			Confidence: n.Confidence,
			Conviction: domain.ComputeConviction(n.Confidence),
		}
		head, err := s.stances.GetHead(ctx, personaID, n.ID)
		switch {
		case err == nil:
			snap.Text = head.Text
			snap.Locked = head.Status == domain.StanceLocked
		case errors.Is(err, domain.ErrNotFound):
			snap.Text = n.Title
		default:
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// ApplyVerdict turns a contradiction at or above the configured severity into
// a conflict-triggered stance update that pushes against the current stance.
// Anything else is acknowledged without writes. A locked head returns a
// VerdictLocked outcome carrying any evidence already recorded, together with
// domain.ErrLockedStance.
func (s *ConsistencyService) ApplyVerdict(ctx context.Context, personaID uuid.UUID, v Verdict) (out *VerdictOutcome, err error) {
	ctx, span := startSpan(ctx, "ConsistencyService.ApplyVerdict",
		attribute.String("persona_id", personaID.String()),
		attribute.String("belief_id", v.BeliefID.String()),
		attribute.Bool("contradicts", v.Contradicts),
		attribute.String("severity", string(v.Severity)))
	defer func() {
		if out != nil {
			s.metrics.Verdicts.WithLabelValues(string(out.Action)).Inc()
		}
		endSpan(span, err)
	}()

	if !domain.ValidEvidenceStrength(string(v.Severity)) {
		return nil, domain.Invalid("unknown severity %q", v.Severity)
	}
	if _, err := s.beliefs.GetBelief(ctx, personaID, v.BeliefID); err != nil {
		return nil, err
	}

	if !v.Contradicts || v.Severity.Rank() < s.minSeverity.Rank() {
		s.logger.Debug("verdict below action threshold",
			zap.String("persona_id", personaID.String()),
			zap.String("belief_id", v.BeliefID.String()),
			zap.Bool("contradicts", v.Contradicts),
			zap.String("severity", string(v.Severity)))
		return &VerdictOutcome{Action: VerdictIgnored}, nil
	}

	actor := strings.TrimSpace(v.Actor)
	if actor == "" {
		actor = defaultVerdictActor
	}

	out = &VerdictOutcome{}
	if ref := strings.TrimSpace(v.SourceRef); ref != "" {
		evidenceID, err := s.evidence.AppendEvidence(ctx, personaID, v.BeliefID, domain.SourceObservedInteraction, ref, v.Severity)
		if err != nil {
			return nil, err
		}
		out.EvidenceID = &evidenceID
	}

	versionID, err := RetryOnConcurrency(ctx, func(ctx context.Context) (uuid.UUID, error) {
		return s.engine.UpdateStance(ctx, StanceUpdate{
			PersonaID: personaID,
			BeliefID:  v.BeliefID,
			Signal:    &domain.EvidenceSignal{Strength: v.Severity, Direction: domain.DirectionOpposes},
			Rationale: v.Rationale,
			Trigger:   domain.TriggerConflict,
			Actor:     actor,
		})
	})
	if errors.Is(err, domain.ErrLockedStance) {
		out.Action = VerdictLocked
		return out, err
	}
	if err != nil {
		return nil, err
	}

	out.Action = VerdictApplied
	out.VersionID = &versionID
	s.logger.Info("contradiction applied",
		zap.String("persona_id", personaID.String()),
		zap.String("belief_id", v.BeliefID.String()),
		zap.String("severity", string(v.Severity)),
		zap.String("version_id", versionID.String()))
	return out, nil
}
