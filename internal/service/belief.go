package service

import (
	"context"
	"strings"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InitialStance seeds the first stance version when a belief is created.
type InitialStance struct {
	Text       string
	Confidence float64
	Rationale  string
	Lock       bool
	Actor      string
}

type CreateBeliefInput struct {
	PersonaID uuid.UUID
	Title     string
	Summary   string
	Tags      []string
	Stance    *InitialStance
}

// BeliefPatch carries the in-place editable fields of a belief node. Nil fields
// are left unchanged. Confidence is not editable here.
type BeliefPatch struct {
	Title   *string
	Summary *string
	Tags    *[]string
}

type EdgePatch struct {
	Relation *domain.RelationType
	Weight   *float64
}

// BeliefService reads and maintains the persona's belief graph.
type BeliefService struct {
	personas domain.PersonaStore
	beliefs  domain.BeliefStore
	stances  domain.StanceStore
	evidence domain.EvidenceStore
	logger   *zap.Logger
}

func NewBeliefService(personas domain.PersonaStore, beliefs domain.BeliefStore, stances domain.StanceStore, evidence domain.EvidenceStore, logger *zap.Logger) *BeliefService {
	return &BeliefService{
		personas: personas,
		beliefs:  beliefs,
		stances:  stances,
		evidence: evidence,
		logger:   logger,
	}
}

// GetGraph returns the persona's nodes passing filter and the edges whose two
// endpoints are both among them.
func (s *BeliefService) GetGraph(ctx context.Context, personaID uuid.UUID, filter domain.GraphFilter) (g *domain.Graph, err error) {
	ctx, span := startSpan(ctx, "BeliefService.GetGraph", attribute.String("persona_id", personaID.String()))
	defer func() { endSpan(span, err) }()

	if filter.MinConfidence != nil && (*filter.MinConfidence < 0 || *filter.MinConfidence > 1) {
		return nil, domain.ErrInvalidConfidence
	}
	if _, err := s.personas.GetByID(ctx, personaID); err != nil {
		return nil, err
	}

	nodes, err := s.beliefs.List(ctx, personaID, filter)
	if err != nil {
		return nil, err
	}
	edges, err := s.beliefs.ListEdges(ctx, personaID)
	if err != nil {
		return nil, err
	}

	inSet := make(map[uuid.UUID]struct{}, len(nodes))
	for _, n := range nodes {
		inSet[n.ID] = struct{}{}
	}
	g = &domain.Graph{Nodes: nodes, Edges: []domain.BeliefEdge{}}
	if g.Nodes == nil {
		g.Nodes = []domain.BeliefNode{}
	}
	for _, e := range edges {
		_, src := inSet[e.SourceID]
		_, dst := inSet[e.TargetID]
		if src && dst {
			g.Edges = append(g.Edges, e)
		}
	}
	return g, nil
}

// GetBeliefWithHistory returns the node with every stance version (oldest
// first) and every evidence link (oldest first).
func (s *BeliefService) GetBeliefWithHistory(ctx context.Context, personaID, beliefID uuid.UUID) (h *domain.BeliefHistory, err error) {
	ctx, span := startSpan(ctx, "BeliefService.GetBeliefWithHistory",
		attribute.String("persona_id", personaID.String()),
		attribute.String("belief_id", beliefID.String()))
	defer func() { endSpan(span, err) }()

	belief, err := s.beliefs.GetByID(ctx, personaID, beliefID)
	if err != nil {
		return nil, err
	}
	versions, err := s.stances.ListVersions(ctx, personaID, beliefID)
	if err != nil {
		return nil, err
	}
	links, err := s.evidence.List(ctx, personaID, beliefID)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []domain.StanceVersion{}
	}
	if links == nil {
		links = []domain.EvidenceLink{}
	}
	return &domain.BeliefHistory{Belief: *belief, Versions: versions, Evidence: links}, nil
}

// CreateBelief inserts a node, and when in.Stance is set its first stance
// version and audit record, all in one transaction.
func (s *BeliefService) CreateBelief(ctx context.Context, in CreateBeliefInput) (*domain.BeliefNode, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.Invalid("title is required")
	}

	b := &domain.BeliefNode{
		PersonaID:  in.PersonaID,
		Title:      title,
		Summary:    in.Summary,
		Confidence: domain.PriorConfidence,
		Tags:       normalizeTags(in.Tags),
	}

	var initial *domain.StanceVersion
	var record *domain.BeliefUpdateRecord
	if st := in.Stance; st != nil {
		if st.Confidence < 0 || st.Confidence > 1 {
			return nil, domain.ErrInvalidConfidence
		}
		if strings.TrimSpace(st.Actor) == "" {
			return nil, domain.Invalid("actor is required for an initial stance")
		}
		text := strings.TrimSpace(st.Text)
		if text == "" {
			text = title
		}
		status := domain.StanceCurrent
		if st.Lock {
			status = domain.StanceLocked
		}
		initial = &domain.StanceVersion{
			ID:         uuid.New(),
			Text:       text,
			Confidence: st.Confidence,
			Status:     status,
			Rationale:  st.Rationale,
		}
		record = &domain.BeliefUpdateRecord{
			ID:       uuid.New(),
			OldValue: domain.StanceSnapshot{Confidence: domain.PriorConfidence},
			NewValue: initial.Snapshot(),
			Reason:   st.Rationale,
			Trigger:  domain.TriggerManual,
			Actor:    st.Actor,
		}
		b.Confidence = st.Confidence
	}

	if err := s.beliefs.Create(ctx, b, initial, record); err != nil {
		return nil, err
	}

	s.logger.Info("belief created",
		zap.String("persona_id", b.PersonaID.String()),
		zap.String("belief_id", b.ID.String()),
		zap.Bool("with_stance", initial != nil))
	return b, nil
}

func (s *BeliefService) GetBelief(ctx context.Context, personaID, beliefID uuid.UUID) (*domain.BeliefNode, error) {
	return s.beliefs.GetByID(ctx, personaID, beliefID)
}

func (s *BeliefService) UpdateBelief(ctx context.Context, personaID, beliefID uuid.UUID, patch BeliefPatch) (*domain.BeliefNode, error) {
	b, err := s.beliefs.GetByID(ctx, personaID, beliefID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.Invalid("title must not be empty")
		}
		b.Title = title
	}
	if patch.Summary != nil {
		b.Summary = *patch.Summary
	}
	if patch.Tags != nil {
		b.Tags = normalizeTags(*patch.Tags)
	}
	if err := s.beliefs.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBelief removes the node; its edges, stance versions, evidence and audit
// rows go with it.
func (s *BeliefService) DeleteBelief(ctx context.Context, personaID, beliefID uuid.UUID) error {
	if err := s.beliefs.Delete(ctx, personaID, beliefID); err != nil {
		return err
	}
	s.logger.Info("belief deleted",
		zap.String("persona_id", personaID.String()),
		zap.String("belief_id", beliefID.String()))
	return nil
}

func (s *BeliefService) CreateEdge(ctx context.Context, e *domain.BeliefEdge) error {
	if !domain.ValidRelationType(string(e.Relation)) {
		return domain.Invalid("unknown relation type %q", e.Relation)
	}
	if !domain.ValidWeight(e.Weight) {
		return domain.Invalid("weight must be within [0,1]")
	}
	if e.SourceID == e.TargetID {
		return domain.Invalid("an edge cannot link a belief to itself")
	}
	return s.beliefs.CreateEdge(ctx, e)
}

func (s *BeliefService) UpdateEdge(ctx context.Context, personaID, edgeID uuid.UUID, patch EdgePatch) (*domain.BeliefEdge, error) {
	e, err := s.beliefs.GetEdge(ctx, personaID, edgeID)
	if err != nil {
		return nil, err
	}
	if patch.Relation != nil {
		if !domain.ValidRelationType(string(*patch.Relation)) {
			return nil, domain.Invalid("unknown relation type %q", *patch.Relation)
		}
		e.Relation = *patch.Relation
	}
	if patch.Weight != nil {
		if !domain.ValidWeight(*patch.Weight) {
			return nil, domain.Invalid("weight must be within [0,1]")
		}
		e.Weight = *patch.Weight
	}
	if err := s.beliefs.UpdateEdge(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *BeliefService) DeleteEdge(ctx context.Context, personaID, edgeID uuid.UUID) error {
	return s.beliefs.DeleteEdge(ctx, personaID, edgeID)
}

// ListUpdates returns the audit trail of one belief, oldest first.
func (s *BeliefService) ListUpdates(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.BeliefUpdateRecord, error) {
	if _, err := s.beliefs.GetByID(ctx, personaID, beliefID); err != nil {
		return nil, err
	}
	records, err := s.stances.ListUpdates(ctx, personaID, beliefID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.BeliefUpdateRecord{}
	}
	return records, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
