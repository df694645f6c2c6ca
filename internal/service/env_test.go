package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/embedding"
	"github.com/Harshitk-cp/credo/internal/memindex"
	"github.com/Harshitk-cp/credo/internal/metrics"
	"github.com/Harshitk-cp/credo/internal/store/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEnv wires every service against a throwaway SQLite file and index dir.
type testEnv struct {
	db       *sql.DB
	indexDir string

	personaStore     *sqlite.PersonaStore
	beliefStore      *sqlite.BeliefStore
	stanceStore      *sqlite.StanceStore
	evidenceStore    *sqlite.EvidenceStore
	interactionStore *sqlite.InteractionStore

	index       *memindex.Manager
	personas    *PersonaService
	beliefs     *BeliefService
	engine      *StanceEngine
	evidence    *EvidenceService
	memory      *MemoryService
	consistency *ConsistencyService
}

func newTestEnv(t *testing.T, embedder domain.EmbeddingClient) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "credo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	m := metrics.NewNop()

	env := &testEnv{
		db:               db,
		indexDir:         filepath.Join(dir, "index"),
		personaStore:     sqlite.NewPersonaStore(db),
		beliefStore:      sqlite.NewBeliefStore(db),
		stanceStore:      sqlite.NewStanceStore(db),
		evidenceStore:    sqlite.NewEvidenceStore(db),
		interactionStore: sqlite.NewInteractionStore(db),
	}
	env.index = memindex.NewManager(env.indexDir, logger)
	env.beliefs = NewBeliefService(env.personaStore, env.beliefStore, env.stanceStore, env.evidenceStore, logger)
	env.engine = NewStanceEngine(env.beliefStore, env.stanceStore, m, logger)
	env.evidence = NewEvidenceService(env.beliefStore, env.evidenceStore, m, logger)
	env.memory = NewMemoryService(env.personaStore, env.interactionStore, env.index, embedder, MemoryConfig{
		EmbeddingModel: embedding.MockModelName,
		EmbedOnIngest:  true,
	}, m, logger)
	env.personas = NewPersonaService(env.personaStore, env.memory, logger)
	env.consistency = NewConsistencyService(env.beliefs, env.stanceStore, env.engine, env.evidence, domain.StrengthModerate, m, logger)
	t.Cleanup(env.memory.Wait)
	return env
}

func (e *testEnv) persona(t *testing.T, name string) *domain.Persona {
	t.Helper()
	p := &domain.Persona{DisplayName: name}
	require.NoError(t, e.personas.Create(context.Background(), p))
	return p
}

func (e *testEnv) belief(t *testing.T, personaID uuid.UUID, title string, confidence float64, lock bool) *domain.BeliefNode {
	t.Helper()
	b, err := e.beliefs.CreateBelief(context.Background(), CreateBeliefInput{
		PersonaID: personaID,
		Title:     title,
		Stance: &InitialStance{
			Text:       title,
			Confidence: confidence,
			Lock:       lock,
			Actor:      "operator",
		},
	})
	require.NoError(t, err)
	return b
}

// mockEmbedder implements domain.EmbeddingClient for testing.
type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}
