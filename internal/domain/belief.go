package domain

import (
	"time"

	"github.com/google/uuid"
)

// PriorConfidence is assumed for a belief that has no stance version yet.
const PriorConfidence = 0.5

// BeliefNode is a topic or claim the persona holds a position on.
// Confidence mirrors the head stance version and is never written on its own.
type BeliefNode struct {
	ID         uuid.UUID `json:"id"`
	PersonaID  uuid.UUID `json:"persona_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Confidence float64   `json:"confidence"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasTag reports whether the node carries tag.
func (b *BeliefNode) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type RelationType string

const (
	RelationSupports    RelationType = "supports"
	RelationContradicts RelationType = "contradicts"
	RelationDependsOn   RelationType = "depends_on"
	RelationEvidenceFor RelationType = "evidence_for"
)

func ValidRelationType(r string) bool {
	switch RelationType(r) {
	case RelationSupports, RelationContradicts, RelationDependsOn, RelationEvidenceFor:
		return true
	}
	return false
}

// BeliefEdge is a directed, typed link between two beliefs of one persona.
// Weight is relationship strength in [0,1]. Edges are edited in place.
type BeliefEdge struct {
	ID        uuid.UUID    `json:"id"`
	PersonaID uuid.UUID    `json:"persona_id"`
	SourceID  uuid.UUID    `json:"source_id"`
	TargetID  uuid.UUID    `json:"target_id"`
	Relation  RelationType `json:"relation"`
	Weight    float64      `json:"weight"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// GraphFilter narrows GetGraph. Zero value matches everything.
type GraphFilter struct {
	Tag           string
	MinConfidence *float64
}

// Matches reports whether node passes the filter.
func (f GraphFilter) Matches(node *BeliefNode) bool {
	if f.Tag != "" && !node.HasTag(f.Tag) {
		return false
	}
	if f.MinConfidence != nil && node.Confidence < *f.MinConfidence {
		return false
	}
	return true
}

type Graph struct {
	Nodes []BeliefNode `json:"nodes"`
	Edges []BeliefEdge `json:"edges"`
}

// BeliefHistory is a belief together with its full stance lineage and evidence.
type BeliefHistory struct {
	Belief   BeliefNode      `json:"belief"`
	Versions []StanceVersion `json:"stance_versions"`
	Evidence []EvidenceLink  `json:"evidence"`
}

// ValidWeight reports whether w is a legal edge weight.
func ValidWeight(w float64) bool {
	return w >= 0 && w <= 1
}
