package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/memindex"
	"github.com/Harshitk-cp/credo/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultEmbeddingTimeout  = 10 * time.Second
	defaultBackgroundRebuild = 5 * time.Minute
	defaultEmbedConcurrency  = 4
	maxSearchK               = 100
	clientSuppliedModel      = "client-supplied"
)

type MemoryConfig struct {
	// EmbeddingModel is recorded on rows embedded by this service.
	EmbeddingModel   string
	EmbeddingTimeout time.Duration
	// EmbedOnIngest embeds synchronously in LogInteraction; otherwise the
	// EmbeddingWorker picks the row up later.
	EmbedOnIngest bool
	// EmbedConcurrency bounds parallel embedding calls in EmbedPending.
	EmbedConcurrency int
}

// MemoryService is the persona's episodic memory: it ingests self-authored
// interactions and answers nearest-neighbour queries over them. Interaction
// rows are authoritative; the index is a derived cache that can be rebuilt.
type MemoryService struct {
	personas     domain.PersonaStore
	interactions domain.InteractionStore
	index        *memindex.Manager
	embedder     domain.EmbeddingClient
	cfg          MemoryConfig
	metrics      *metrics.Metrics
	logger       *zap.Logger

	rebuilds singleflight.Group
	bg       sync.WaitGroup
}

// NewMemoryService wires the memory pipeline. embedder may be nil, in which
// case only caller-supplied vectors are accepted.
func NewMemoryService(personas domain.PersonaStore, interactions domain.InteractionStore, index *memindex.Manager, embedder domain.EmbeddingClient, cfg MemoryConfig, m *metrics.Metrics, logger *zap.Logger) *MemoryService {
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = defaultEmbeddingTimeout
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = defaultEmbedConcurrency
	}
	return &MemoryService{
		personas:     personas,
		interactions: interactions,
		index:        index,
		embedder:     embedder,
		cfg:          cfg,
		metrics:      m,
		logger:       logger,
	}
}

// LogInteraction stores one self-authored statement. A failed inline embedding
// is logged and left for the EmbeddingWorker; the row is still returned.
func (s *MemoryService) LogInteraction(ctx context.Context, personaID uuid.UUID, content string, typ domain.InteractionType, externalRef string, metadata map[string]any) (in *domain.Interaction, err error) {
	ctx, span := startSpan(ctx, "MemoryService.LogInteraction",
		attribute.String("persona_id", personaID.String()),
		attribute.String("type", string(typ)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(content) == "" {
		return nil, domain.Invalid("content is required")
	}
	if !domain.ValidInteractionType(string(typ)) {
		return nil, domain.Invalid("unknown interaction type %q", typ)
	}
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return nil, domain.Invalid("external_ref is required")
	}

	in = &domain.Interaction{
		PersonaID:   personaID,
		Content:     content,
		Type:        typ,
		ExternalRef: externalRef,
		Metadata:    metadata,
	}
	if err := s.interactions.Create(ctx, in); err != nil {
		return nil, err
	}
	s.metrics.InteractionsLogged.WithLabelValues(string(typ)).Inc()

	if !s.cfg.EmbedOnIngest || s.embedder == nil {
		return in, nil
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		s.logger.Warn("inline embedding failed; deferring to worker",
			zap.String("persona_id", personaID.String()),
			zap.String("interaction_id", in.ID.String()),
			zap.Error(err))
		return in, nil
	}
	if err := s.attach(ctx, in, vec, s.cfg.EmbeddingModel); err != nil {
		s.logger.Warn("failed to index interaction",
			zap.String("persona_id", personaID.String()),
			zap.String("interaction_id", in.ID.String()),
			zap.Error(err))
	}
	return in, nil
}

// AddEmbedding attaches a caller-computed vector to an existing interaction
// and indexes it.
func (s *MemoryService) AddEmbedding(ctx context.Context, personaID, interactionID uuid.UUID, vector []float32) (err error) {
	ctx, span := startSpan(ctx, "MemoryService.AddEmbedding",
		attribute.String("persona_id", personaID.String()),
		attribute.String("interaction_id", interactionID.String()))
	defer func() { endSpan(span, err) }()

	if len(vector) == 0 {
		return domain.Invalid("embedding must not be empty")
	}
	in, err := s.interactions.GetByID(ctx, personaID, interactionID)
	if err != nil {
		return err
	}
	return s.attach(ctx, in, vector, clientSuppliedModel)
}

// attach checks the vector against the persona's index, persists it on the row
// and then upserts it. The index is verified, and rebuilt when unavailable,
// before the row is written so that its width is known.
func (s *MemoryService) attach(ctx context.Context, in *domain.Interaction, vector []float32, model string) error {
	if err := s.ensureIndex(ctx, in.PersonaID); err != nil {
		return err
	}
	if dim := s.index.Dim(in.PersonaID); dim != 0 && dim != len(vector) {
		return domain.Invalid("embedding has %d dimensions, index expects %d", len(vector), dim)
	}

	if err := s.interactions.SetEmbedding(ctx, in.PersonaID, in.ID, vector, model); err != nil {
		return err
	}
	embeddedAt := time.Now().UTC()
	in.Embedding = vector
	in.EmbeddingModel = model
	in.EmbeddedAt = &embeddedAt

	err := s.index.Upsert(in.PersonaID, memindex.Entry{
		ID:        in.ID,
		Seq:       in.Seq,
		Subreddit: in.Subreddit(),
		Vector:    vector,
	})
	if errors.Is(err, domain.ErrIndexUnavailable) {
		_, err = s.rebuild(ctx, in.PersonaID)
	}
	if errors.Is(err, memindex.ErrDimensionMismatch) {
		return domain.Invalid("%s", err.Error())
	}
	return err
}

// ensureIndex makes the persona's index usable for a write, rebuilding it from
// the rows when the snapshot is missing, corrupt or behind.
func (s *MemoryService) ensureIndex(ctx context.Context, personaID uuid.UUID) error {
	if err := s.index.Verify(ctx, personaID, s.interactions); err != nil {
		return err
	}
	if s.index.Available(personaID) {
		return nil
	}
	_, err := s.rebuild(ctx, personaID)
	return err
}

// SearchHistory returns the persona's interactions closest to the query, best
// first. It never consults another persona's index. When the index is
// unavailable it answers empty and schedules a rebuild.
func (s *MemoryService) SearchHistory(ctx context.Context, personaID uuid.UUID, q domain.SearchQuery) (matches []domain.InteractionMatch, err error) {
	ctx, span := startSpan(ctx, "MemoryService.SearchHistory",
		attribute.String("persona_id", personaID.String()),
		attribute.Int("k", q.K))
	start := time.Now()
	defer func() {
		s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		endSpan(span, err)
	}()

	hasText := strings.TrimSpace(q.Text) != ""
	switch {
	case hasText && len(q.Vector) > 0:
		return nil, domain.Invalid("provide either query text or a query vector, not both")
	case !hasText && len(q.Vector) == 0:
		return nil, domain.Invalid("query text or vector is required")
	case q.K <= 0 || q.K > maxSearchK:
		return nil, domain.Invalid("k must be between 1 and %d", maxSearchK)
	}

	if _, err := s.personas.GetByID(ctx, personaID); err != nil {
		return nil, err
	}
	if err := s.index.Verify(ctx, personaID, s.interactions); err != nil {
		return nil, err
	}

	vector := q.Vector
	if hasText {
		if s.embedder == nil {
			return nil, domain.Invalid("text queries need an embedding provider")
		}
		vector, err = s.embed(ctx, q.Text)
		if err != nil {
			return nil, err
		}
	}

	hits, err := s.index.Search(ctx, personaID, vector, q.K, q.Subreddit)
	switch {
	case errors.Is(err, domain.ErrIndexUnavailable):
		s.logger.Warn("memory index unavailable; returning no results and rebuilding",
			zap.String("persona_id", personaID.String()))
		s.rebuildInBackground(personaID)
		return []domain.InteractionMatch{}, nil
	case errors.Is(err, memindex.ErrDimensionMismatch):
		return nil, domain.Invalid("%s", err.Error())
	case err != nil:
		return nil, err
	}
	if len(hits) == 0 {
		return []domain.InteractionMatch{}, nil
	}

	ids := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	rows, err := s.interactions.GetByIDs(ctx, personaID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Interaction, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	matches = make([]domain.InteractionMatch, 0, len(hits))
	for _, h := range hits {
		row, ok := byID[h.ID]
		if !ok {
			continue
		}
		row.Embedding = nil
		matches = append(matches, domain.InteractionMatch{Interaction: row, Score: h.Score})
	}
	return matches, nil
}

// RebuildIndex reconstructs the persona's index from every embedded
// interaction and returns the number of entries.
func (s *MemoryService) RebuildIndex(ctx context.Context, personaID uuid.UUID) (n int, err error) {
	ctx, span := startSpan(ctx, "MemoryService.RebuildIndex", attribute.String("persona_id", personaID.String()))
	defer func() { endSpan(span, err) }()

	if _, err := s.personas.GetByID(ctx, personaID); err != nil {
		return 0, err
	}
	return s.rebuild(ctx, personaID)
}

// rebuild collapses concurrent rebuilds of one persona into a single run.
func (s *MemoryService) rebuild(ctx context.Context, personaID uuid.UUID) (int, error) {
	v, err, shared := s.rebuilds.Do(personaID.String(), func() (any, error) {
		start := time.Now()
		n, err := s.index.Rebuild(ctx, personaID, s.interactions)
		s.metrics.RebuildDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.IndexRebuilds.WithLabelValues("failed").Inc()
			s.logger.Error("index rebuild failed",
				zap.String("persona_id", personaID.String()),
				zap.Error(err))
			return 0, err
		}
		s.metrics.IndexRebuilds.WithLabelValues("ok").Inc()
		s.logger.Info("index rebuilt",
			zap.String("persona_id", personaID.String()),
			zap.Int("entries", n),
			zap.Duration("took", time.Since(start)))
		return n, nil
	})
	if shared {
		s.logger.Debug("joined in-flight rebuild", zap.String("persona_id", personaID.String()))
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *MemoryService) rebuildInBackground(personaID uuid.UUID) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultBackgroundRebuild)
		defer cancel()
		_, _ = s.rebuild(ctx, personaID)
	}()
}

// Wait blocks until background rebuilds started by SearchHistory finish.
func (s *MemoryService) Wait() {
	s.bg.Wait()
}

// EmbedPending embeds up to limit interactions that have no vector yet and
// indexes them. It returns how many were embedded. Each failure is counted on
// the row, so rows that keep failing sink below newer ones and are dropped
// from the queue after domain.MaxEmbedAttempts.
func (s *MemoryService) EmbedPending(ctx context.Context, limit int) (int, error) {
	if s.embedder == nil {
		return 0, nil
	}
	pending, err := s.interactions.ListPendingEmbedding(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, len(pending))
	failures := make([]error, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)
	for i := range pending {
		g.Go(func() error {
			vec, err := s.embed(gctx, pending[i].Content)
			if err != nil {
				s.logger.Warn("embedding failed",
					zap.String("interaction_id", pending[i].ID.String()),
					zap.Error(err))
				failures[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	done := 0
	for i := range pending {
		if failures[i] != nil {
			s.recordEmbedFailure(ctx, &pending[i], failures[i])
			continue
		}
		if err := s.attach(ctx, &pending[i], vectors[i], s.cfg.EmbeddingModel); err != nil {
			s.logger.Warn("failed to attach embedding",
				zap.String("persona_id", pending[i].PersonaID.String()),
				zap.String("interaction_id", pending[i].ID.String()),
				zap.Error(err))
			s.recordEmbedFailure(ctx, &pending[i], err)
			continue
		}
		done++
	}
	return done, nil
}

// recordEmbedFailure counts a failed attempt on the row. Failures caused by
// the caller's own cancellation are not counted.
func (s *MemoryService) recordEmbedFailure(ctx context.Context, in *domain.Interaction, cause error) {
	if ctx.Err() != nil {
		return
	}
	if err := s.interactions.RecordEmbedFailure(ctx, in.PersonaID, in.ID, cause.Error()); err != nil {
		s.logger.Warn("failed to record embedding failure",
			zap.String("interaction_id", in.ID.String()),
			zap.Error(err))
	}
}

// FlushIndexes persists every index that changed since its last snapshot.
func (s *MemoryService) FlushIndexes() (int, error) {
	n, err := s.index.FlushAll()
	if n > 0 {
		s.metrics.IndexFlushes.Add(float64(n))
	}
	return n, err
}

// DropIndex forgets a persona's index and its snapshot file.
func (s *MemoryService) DropIndex(personaID uuid.UUID) error {
	return s.index.Drop(personaID)
}

// embed calls the provider with the configured timeout. No index lock is held.
func (s *MemoryService) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.metrics.Embeddings.WithLabelValues("failed").Inc()
		return nil, err
	}
	if len(vec) == 0 {
		s.metrics.Embeddings.WithLabelValues("failed").Inc()
		return nil, errors.New("embedding provider returned an empty vector")
	}
	s.metrics.Embeddings.WithLabelValues("ok").Inc()
	return vec, nil
}
