package api

import (
	"context"
	"database/sql"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/embedding"
	"github.com/Harshitk-cp/credo/internal/store"
	"github.com/Harshitk-cp/credo/internal/store/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend bundles the stores of one persistence driver.
type Backend struct {
	Driver       string
	Personas     domain.PersonaStore
	Beliefs      domain.BeliefStore
	Stances      domain.StanceStore
	Evidence     domain.EvidenceStore
	Interactions domain.InteractionStore
	Ping         func(ctx context.Context) error
}

func PostgresBackend(db *pgxpool.Pool) Backend {
	return Backend{
		Driver:       "postgres",
		Personas:     store.NewPersonaStore(db),
		Beliefs:      store.NewBeliefStore(db),
		Stances:      store.NewStanceStore(db),
		Evidence:     store.NewEvidenceStore(db),
		Interactions: store.NewInteractionStore(db),
		Ping:         db.Ping,
	}
}

func SQLiteBackend(db *sql.DB) Backend {
	return Backend{
		Driver:       "sqlite",
		Personas:     sqlite.NewPersonaStore(db),
		Beliefs:      sqlite.NewBeliefStore(db),
		Stances:      sqlite.NewStanceStore(db),
		Evidence:     sqlite.NewEvidenceStore(db),
		Interactions: sqlite.NewInteractionStore(db),
		Ping:         db.PingContext,
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.PersonaStore     = (*store.PersonaStore)(nil)
	_ domain.BeliefStore      = (*store.BeliefStore)(nil)
	_ domain.StanceStore      = (*store.StanceStore)(nil)
	_ domain.EvidenceStore    = (*store.EvidenceStore)(nil)
	_ domain.InteractionStore = (*store.InteractionStore)(nil)
	_ domain.PersonaStore     = (*sqlite.PersonaStore)(nil)
	_ domain.BeliefStore      = (*sqlite.BeliefStore)(nil)
	_ domain.StanceStore      = (*sqlite.StanceStore)(nil)
	_ domain.EvidenceStore    = (*sqlite.EvidenceStore)(nil)
	_ domain.InteractionStore = (*sqlite.InteractionStore)(nil)
	_ domain.EmbeddingClient  = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient  = (*embedding.MockClient)(nil)
)
