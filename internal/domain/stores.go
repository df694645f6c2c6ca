package domain

import (
	"context"

	"github.com/google/uuid"
)

// Every store method that touches persona-owned rows takes the persona id and
// filters on it; an id belonging to another persona behaves as ErrNotFound.

type PersonaStore interface {
	Create(ctx context.Context, p *Persona) error
	GetByID(ctx context.Context, id uuid.UUID) (*Persona, error)
	List(ctx context.Context) ([]Persona, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) error
	// Delete removes the persona and everything it owns.
	Delete(ctx context.Context, id uuid.UUID) error
}

type BeliefStore interface {
	// Create inserts the node. When initial is non-nil the first stance version
	// and its audit record are written in the same transaction.
	Create(ctx context.Context, b *BeliefNode, initial *StanceVersion, record *BeliefUpdateRecord) error
	GetByID(ctx context.Context, personaID, id uuid.UUID) (*BeliefNode, error)
	List(ctx context.Context, personaID uuid.UUID, filter GraphFilter) ([]BeliefNode, error)
	// Update rewrites title, summary and tags in place.
	Update(ctx context.Context, b *BeliefNode) error
	Delete(ctx context.Context, personaID, id uuid.UUID) error

	CreateEdge(ctx context.Context, e *BeliefEdge) error
	GetEdge(ctx context.Context, personaID, id uuid.UUID) (*BeliefEdge, error)
	UpdateEdge(ctx context.Context, e *BeliefEdge) error
	DeleteEdge(ctx context.Context, personaID, id uuid.UUID) error
	ListEdges(ctx context.Context, personaID uuid.UUID) ([]BeliefEdge, error)
}

type StanceStore interface {
	// GetHead returns the current or locked version, or ErrNotFound if the belief has none.
	GetHead(ctx context.Context, personaID, beliefID uuid.UUID) (*StanceVersion, error)
	ListVersions(ctx context.Context, personaID, beliefID uuid.UUID) ([]StanceVersion, error)
	// Apply performs the deprecate + insert + audit + node refresh unit atomically.
	// It returns ErrConcurrency when the head no longer matches m.ExpectedHeadID.
	Apply(ctx context.Context, m StanceMutation) error
	ListUpdates(ctx context.Context, personaID, beliefID uuid.UUID) ([]BeliefUpdateRecord, error)
}

type EvidenceStore interface {
	// Append inserts the link and touches the belief's updated_at in one transaction.
	Append(ctx context.Context, e *EvidenceLink) error
	List(ctx context.Context, personaID, beliefID uuid.UUID) ([]EvidenceLink, error)
}

type InteractionStore interface {
	// Create returns ErrConflict when the external ref was already ingested for the persona.
	Create(ctx context.Context, i *Interaction) error
	GetByID(ctx context.Context, personaID, id uuid.UUID) (*Interaction, error)
	GetByIDs(ctx context.Context, personaID uuid.UUID, ids []uuid.UUID) ([]Interaction, error)
	// SetEmbedding stores the vector and clears any recorded embedding failures.
	SetEmbedding(ctx context.Context, personaID, id uuid.UUID, embedding []float32, model string) error
	// RecordEmbedFailure counts a failed embedding attempt against the row.
	RecordEmbedFailure(ctx context.Context, personaID, id uuid.UUID, reason string) error
	EmbeddingStats(ctx context.Context, personaID uuid.UUID) (EmbeddingStats, error)
	// ListEmbedded pages through interactions that carry an embedding, ordered by Seq.
	ListEmbedded(ctx context.Context, personaID uuid.UUID, cursor InteractionCursor) ([]Interaction, error)
	// ListPendingEmbedding returns interactions of any persona still missing an
	// embedding, fewest failed attempts first and then oldest first. Rows that
	// reached MaxEmbedAttempts are left out.
	ListPendingEmbedding(ctx context.Context, limit int) ([]Interaction, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
