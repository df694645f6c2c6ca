package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "credo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createPersona(t *testing.T, db *sql.DB, name string) *domain.Persona {
	t.Helper()
	p := &domain.Persona{DisplayName: name}
	require.NoError(t, NewPersonaStore(db).Create(context.Background(), p))
	return p
}

func createBelief(t *testing.T, db *sql.DB, personaID uuid.UUID, title string) *domain.BeliefNode {
	t.Helper()
	b := &domain.BeliefNode{PersonaID: personaID, Title: title, Confidence: domain.PriorConfidence}
	require.NoError(t, NewBeliefStore(db).Create(context.Background(), b, nil, nil))
	return b
}

func TestPersonaStore_CRUD(t *testing.T) {
	db := openTestDB(t)
	store := NewPersonaStore(db)
	ctx := context.Background()

	p := &domain.Persona{DisplayName: "skeptic", Config: map[string]any{"tone": "dry"}}
	require.NoError(t, store.Create(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "skeptic", got.DisplayName)
	assert.Equal(t, "dry", got.Config["tone"])

	require.NoError(t, store.UpdateConfig(ctx, p.ID, map[string]any{"tone": "warm"}))
	got, err = store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "warm", got.Config["tone"])

	require.NoError(t, store.Delete(ctx, p.ID))
	_, err = store.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, p.ID), domain.ErrNotFound)
}

func TestBeliefStore_CreateWithInitialStance(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	ctx := context.Background()

	initial := &domain.StanceVersion{ID: uuid.New(), Text: "remote work helps", Confidence: 0.7, Status: domain.StanceCurrent}
	record := &domain.BeliefUpdateRecord{
		OldValue: domain.StanceSnapshot{Confidence: domain.PriorConfidence},
		NewValue: initial.Snapshot(),
		Reason:   "initial stance",
		Trigger:  domain.TriggerManual,
		Actor:    "operator",
	}
	b := &domain.BeliefNode{PersonaID: p.ID, Title: "remote work", Confidence: 0.7, Tags: []string{"work"}}
	require.NoError(t, NewBeliefStore(db).Create(ctx, b, initial, record))

	stances := NewStanceStore(db)
	head, err := stances.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, initial.ID, head.ID)
	assert.Equal(t, 1, head.Version)
	assert.Equal(t, domain.StanceCurrent, head.Status)

	updates, err := stances.ListUpdates(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, initial.ID, *updates[0].NewValue.VersionID)
	assert.Nil(t, updates[0].OldValue.VersionID)
}

func TestBeliefStore_PersonaScoping(t *testing.T) {
	db := openTestDB(t)
	a := createPersona(t, db, "a")
	b := createPersona(t, db, "b")
	ctx := context.Background()
	beliefs := NewBeliefStore(db)

	ba := createBelief(t, db, a.ID, "owned by a")
	bb := createBelief(t, db, b.ID, "owned by b")

	_, err := beliefs.GetByID(ctx, b.ID, ba.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, beliefs.Delete(ctx, b.ID, ba.ID), domain.ErrNotFound)

	edge := &domain.BeliefEdge{PersonaID: a.ID, SourceID: ba.ID, TargetID: bb.ID, Relation: domain.RelationSupports, Weight: 0.5}
	assert.ErrorIs(t, beliefs.CreateEdge(ctx, edge), domain.ErrNotFound)

	list, err := beliefs.List(ctx, a.ID, domain.GraphFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ba.ID, list[0].ID)
}

func TestBeliefStore_ListFilter(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	ctx := context.Background()
	beliefs := NewBeliefStore(db)

	for _, b := range []*domain.BeliefNode{
		{PersonaID: p.ID, Title: "low", Confidence: 0.2, Tags: []string{"tech"}},
		{PersonaID: p.ID, Title: "high", Confidence: 0.9, Tags: []string{"tech"}},
		{PersonaID: p.ID, Title: "other", Confidence: 0.9, Tags: []string{"food"}},
	} {
		require.NoError(t, beliefs.Create(ctx, b, nil, nil))
	}

	minConfidence := 0.5
	list, err := beliefs.List(ctx, p.ID, domain.GraphFilter{Tag: "tech", MinConfidence: &minConfidence})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "high", list[0].Title)
}

func TestBeliefStore_Edges(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	ctx := context.Background()
	beliefs := NewBeliefStore(db)

	src := createBelief(t, db, p.ID, "src")
	dst := createBelief(t, db, p.ID, "dst")

	edge := &domain.BeliefEdge{PersonaID: p.ID, SourceID: src.ID, TargetID: dst.ID, Relation: domain.RelationSupports, Weight: 0.4}
	require.NoError(t, beliefs.CreateEdge(ctx, edge))

	dup := &domain.BeliefEdge{PersonaID: p.ID, SourceID: src.ID, TargetID: dst.ID, Relation: domain.RelationSupports, Weight: 0.1}
	assert.ErrorIs(t, beliefs.CreateEdge(ctx, dup), domain.ErrConflict)

	edge.Weight = 0.8
	require.NoError(t, beliefs.UpdateEdge(ctx, edge))
	got, err := beliefs.GetEdge(ctx, p.ID, edge.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.Weight, 1e-9)

	// Deleting an endpoint cascades to its edges.
	require.NoError(t, beliefs.Delete(ctx, p.ID, dst.ID))
	edges, err := beliefs.ListEdges(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestStanceStore_ApplyChecksHead(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	b := createBelief(t, db, p.ID, "topic")
	ctx := context.Background()
	stances := NewStanceStore(db)

	first := &domain.StanceVersion{ID: uuid.New(), Text: "v1", Confidence: 0.6, Status: domain.StanceCurrent}
	require.NoError(t, stances.Apply(ctx, domain.StanceMutation{
		PersonaID: p.ID, BeliefID: b.ID,
		Next:   first,
		Record: &domain.BeliefUpdateRecord{NewValue: first.Snapshot(), Trigger: domain.TriggerManual, Actor: "t"},
	}))

	// A mutation that still believes there is no head must be rejected.
	stale := &domain.StanceVersion{ID: uuid.New(), Text: "v2", Confidence: 0.7, Status: domain.StanceCurrent}
	err := stances.Apply(ctx, domain.StanceMutation{
		PersonaID: p.ID, BeliefID: b.ID,
		Next:   stale,
		Record: &domain.BeliefUpdateRecord{NewValue: stale.Snapshot(), Trigger: domain.TriggerManual, Actor: "t"},
	})
	assert.ErrorIs(t, err, domain.ErrConcurrency)

	second := &domain.StanceVersion{ID: uuid.New(), Text: "v2", Confidence: 0.7, Status: domain.StanceCurrent}
	require.NoError(t, stances.Apply(ctx, domain.StanceMutation{
		PersonaID: p.ID, BeliefID: b.ID, ExpectedHeadID: &first.ID,
		Next:   second,
		Record: &domain.BeliefUpdateRecord{OldValue: first.Snapshot(), NewValue: second.Snapshot(), Trigger: domain.TriggerManual, Actor: "t"},
	}))

	versions, err := stances.ListVersions(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, domain.StanceDeprecated, versions[0].Status)
	assert.Equal(t, domain.StanceCurrent, versions[1].Status)
	assert.Equal(t, 2, versions[1].Version)

	node, err := NewBeliefStore(db).GetByID(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, node.Confidence, 1e-9)

	updates, err := stances.ListUpdates(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, updates, 2)
}

func TestStanceStore_ApplyWrongPersona(t *testing.T) {
	db := openTestDB(t)
	owner := createPersona(t, db, "owner")
	other := createPersona(t, db, "other")
	b := createBelief(t, db, owner.ID, "topic")

	next := &domain.StanceVersion{ID: uuid.New(), Text: "x", Confidence: 0.6, Status: domain.StanceCurrent}
	err := NewStanceStore(db).Apply(context.Background(), domain.StanceMutation{
		PersonaID: other.ID, BeliefID: b.ID,
		Next:   next,
		Record: &domain.BeliefUpdateRecord{NewValue: next.Snapshot(), Trigger: domain.TriggerManual, Actor: "t"},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvidenceStore_AppendKeepsDuplicates(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	b := createBelief(t, db, p.ID, "topic")
	ctx := context.Background()
	evidence := NewEvidenceStore(db)

	for i := 0; i < 2; i++ {
		link := &domain.EvidenceLink{
			PersonaID: p.ID, BeliefID: b.ID,
			SourceType: domain.SourceNote, SourceRef: "note-1", Strength: domain.StrengthWeak,
		}
		require.NoError(t, evidence.Append(ctx, link))
	}

	links, err := evidence.List(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.NotEqual(t, links[0].ID, links[1].ID)

	other := createPersona(t, db, "other")
	err = evidence.Append(ctx, &domain.EvidenceLink{
		PersonaID: other.ID, BeliefID: b.ID,
		SourceType: domain.SourceNote, SourceRef: "x", Strength: domain.StrengthWeak,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInteractionStore_EmbeddingLifecycle(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	ctx := context.Background()
	interactions := NewInteractionStore(db)

	first := &domain.Interaction{
		PersonaID: p.ID, Content: "first", Type: domain.InteractionPost, ExternalRef: "t3_1",
		Metadata: map[string]any{domain.MetadataSubreddit: "golang"},
	}
	require.NoError(t, interactions.Create(ctx, first))
	second := &domain.Interaction{
		PersonaID: p.ID, Content: "second", Type: domain.InteractionComment, ExternalRef: "t1_2",
		Embedding: []float32{1, 0}, EmbeddingModel: "mock",
	}
	require.NoError(t, interactions.Create(ctx, second))
	assert.Greater(t, second.Seq, first.Seq)

	dup := &domain.Interaction{PersonaID: p.ID, Content: "again", Type: domain.InteractionPost, ExternalRef: "t3_1"}
	assert.ErrorIs(t, interactions.Create(ctx, dup), domain.ErrConflict)

	pending, err := interactions.ListPendingEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	require.NoError(t, interactions.SetEmbedding(ctx, p.ID, first.ID, []float32{0.5, 0.25}, "mock"))

	embedded, err := interactions.ListEmbedded(ctx, p.ID, domain.InteractionCursor{Limit: 1})
	require.NoError(t, err)
	require.Len(t, embedded, 1)
	assert.Equal(t, first.ID, embedded[0].ID)
	assert.Equal(t, []float32{0.5, 0.25}, embedded[0].Embedding)
	assert.Equal(t, "golang", embedded[0].Subreddit())
	require.NotNil(t, embedded[0].EmbeddedAt)

	next, err := interactions.ListEmbedded(ctx, p.ID, domain.InteractionCursor{AfterSeq: embedded[0].Seq, Limit: 10})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, second.ID, next[0].ID)

	got, err := interactions.GetByIDs(ctx, p.ID, []uuid.UUID{second.ID, first.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	other := createPersona(t, db, "other")
	_, err = interactions.GetByID(ctx, other.ID, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInteractionStore_EmbeddingStats(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	other := createPersona(t, db, "other")
	ctx := context.Background()
	interactions := NewInteractionStore(db)

	stats, err := interactions.EmbeddingStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingStats{}, stats)

	var rows []*domain.Interaction
	for _, ref := range []string{"s1", "s2", "s3"} {
		in := &domain.Interaction{PersonaID: p.ID, Content: ref, Type: domain.InteractionPost, ExternalRef: ref}
		require.NoError(t, interactions.Create(ctx, in))
		rows = append(rows, in)
	}
	require.NoError(t, interactions.Create(ctx, &domain.Interaction{
		PersonaID: other.ID, Content: "elsewhere", Type: domain.InteractionPost, ExternalRef: "o1",
		Embedding: []float32{1, 1}, EmbeddingModel: "mock",
	}))
	require.NoError(t, interactions.SetEmbedding(ctx, p.ID, rows[0].ID, []float32{1, 0}, "mock"))
	require.NoError(t, interactions.SetEmbedding(ctx, p.ID, rows[1].ID, []float32{0, 1}, "mock"))

	stats, err = interactions.EmbeddingStats(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingStats{Count: 2, MaxSeq: rows[1].Seq}, stats)
}

func TestInteractionStore_EmbedFailuresDeprioritise(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	ctx := context.Background()
	interactions := NewInteractionStore(db)

	failing := &domain.Interaction{PersonaID: p.ID, Content: "failing", Type: domain.InteractionPost, ExternalRef: "f1"}
	require.NoError(t, interactions.Create(ctx, failing))
	fresh := &domain.Interaction{PersonaID: p.ID, Content: "fresh", Type: domain.InteractionPost, ExternalRef: "f2"}
	require.NoError(t, interactions.Create(ctx, fresh))

	require.NoError(t, interactions.RecordEmbedFailure(ctx, p.ID, failing.ID, "provider rejected input"))
	pending, err := interactions.ListPendingEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, fresh.ID, pending[0].ID)
	assert.Equal(t, failing.ID, pending[1].ID)

	for i := 1; i < domain.MaxEmbedAttempts; i++ {
		require.NoError(t, interactions.RecordEmbedFailure(ctx, p.ID, failing.ID, "provider rejected input"))
	}
	pending, err = interactions.ListPendingEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)

	// A successful embed clears the failures.
	require.NoError(t, interactions.SetEmbedding(ctx, p.ID, failing.ID, []float32{1, 0}, "mock"))
	var attempts int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT embed_attempts FROM interactions WHERE id = ?`, failing.ID).Scan(&attempts))
	assert.Zero(t, attempts)

	assert.ErrorIs(t, interactions.RecordEmbedFailure(ctx, p.ID, failing.ID, "late"), domain.ErrNotFound)
	assert.ErrorIs(t, interactions.RecordEmbedFailure(ctx, p.ID, uuid.New(), "missing"), domain.ErrNotFound)
}

func TestPersonaStore_DeleteCascades(t *testing.T) {
	db := openTestDB(t)
	p := createPersona(t, db, "p")
	b := createBelief(t, db, p.ID, "topic")
	ctx := context.Background()

	require.NoError(t, NewInteractionStore(db).Create(ctx, &domain.Interaction{
		PersonaID: p.ID, Content: "hi", Type: domain.InteractionPost, ExternalRef: "r1",
	}))
	require.NoError(t, NewPersonaStore(db).Delete(ctx, p.ID))

	_, err := NewBeliefStore(db).GetByID(ctx, p.ID, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	pending, err := NewInteractionStore(db).ListPendingEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
