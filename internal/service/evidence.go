package service

import (
	"context"
	"strings"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EvidenceService is the append-only evidence ledger. Appending never changes
// a belief's confidence; callers that want that go through the StanceEngine.
type EvidenceService struct {
	beliefs  domain.BeliefStore
	evidence domain.EvidenceStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewEvidenceService(beliefs domain.BeliefStore, evidence domain.EvidenceStore, m *metrics.Metrics, logger *zap.Logger) *EvidenceService {
	return &EvidenceService{beliefs: beliefs, evidence: evidence, metrics: m, logger: logger}
}

// AppendEvidence records a justification for the belief. Identical inputs
// produce distinct links.
func (s *EvidenceService) AppendEvidence(ctx context.Context, personaID, beliefID uuid.UUID, sourceType domain.EvidenceSourceType, sourceRef string, strength domain.EvidenceStrength) (id uuid.UUID, err error) {
	ctx, span := startSpan(ctx, "EvidenceService.AppendEvidence",
		attribute.String("persona_id", personaID.String()),
		attribute.String("belief_id", beliefID.String()),
		attribute.String("strength", string(strength)))
	defer func() { endSpan(span, err) }()

	if !domain.ValidEvidenceSourceType(string(sourceType)) {
		return uuid.Nil, domain.Invalid("unknown source type %q", sourceType)
	}
	if !domain.ValidEvidenceStrength(string(strength)) {
		return uuid.Nil, domain.Invalid("unknown evidence strength %q", strength)
	}
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return uuid.Nil, domain.Invalid("source_ref is required")
	}

	link := &domain.EvidenceLink{
		BeliefID:   beliefID,
		PersonaID:  personaID,
		SourceType: sourceType,
		SourceRef:  sourceRef,
		Strength:   strength,
	}
	// The store scopes the write to (belief, persona); a foreign belief yields ErrNotFound.
	if err := s.evidence.Append(ctx, link); err != nil {
		return uuid.Nil, err
	}

	s.metrics.EvidenceAppended.WithLabelValues(string(strength)).Inc()
	s.logger.Debug("evidence appended",
		zap.String("persona_id", personaID.String()),
		zap.String("belief_id", beliefID.String()),
		zap.String("evidence_id", link.ID.String()),
		zap.String("source_type", string(sourceType)))
	return link.ID, nil
}

func (s *EvidenceService) ListEvidence(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.EvidenceLink, error) {
	if _, err := s.beliefs.GetByID(ctx, personaID, beliefID); err != nil {
		return nil, err
	}
	links, err := s.evidence.List(ctx, personaID, beliefID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.EvidenceLink{}
	}
	return links, nil
}
