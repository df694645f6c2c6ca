package memindex

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultRebuildPageSize = 500

// Source supplies the authoritative embedded interactions for a rebuild.
type Source interface {
	ListEmbedded(ctx context.Context, personaID uuid.UUID, cursor domain.InteractionCursor) ([]domain.Interaction, error)
}

// StatsSource summarises the authoritative embedded interactions.
type StatsSource interface {
	EmbeddingStats(ctx context.Context, personaID uuid.UUID) (domain.EmbeddingStats, error)
}

type shard struct {
	mu sync.RWMutex
	// idx is nil while the shard is unavailable.
	idx    *Index
	loaded bool
	// verified is set once idx has been checked against the rows or rebuilt
	// from them in this process.
	verified bool
	dirty    bool
}

// Manager owns one Index per persona. Each persona has its own lock, so a
// rebuild blocks adds and searches for that persona only.
type Manager struct {
	dir      string
	logger   *zap.Logger
	pageSize int

	mu     sync.Mutex
	shards map[uuid.UUID]*shard
}

func NewManager(dir string, logger *zap.Logger) *Manager {
	return &Manager{
		dir:      dir,
		logger:   logger,
		pageSize: defaultRebuildPageSize,
		shards:   make(map[uuid.UUID]*shard),
	}
}

func (m *Manager) SetRebuildPageSize(n int) {
	if n > 0 {
		m.pageSize = n
	}
}

func (m *Manager) shard(personaID uuid.UUID) *shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shards[personaID]
	if !ok {
		s = &shard{}
		m.shards[personaID] = s
	}
	return s
}

// load reads the snapshot on first use. Caller holds s.mu for writing.
func (m *Manager) load(personaID uuid.UUID, s *shard) {
	if s.loaded {
		return
	}
	s.loaded = true

	idx, err := readSnapshot(m.dir, personaID)
	switch {
	case err == nil:
		s.idx = idx
	case errors.Is(err, ErrSnapshotMissing):
		m.logger.Info("no index snapshot for persona", zap.String("persona_id", personaID.String()))
	default:
		m.logger.Warn("index snapshot unreadable",
			zap.String("persona_id", personaID.String()),
			zap.Error(err))
	}
}

func (m *Manager) ensureLoaded(personaID uuid.UUID, s *shard) {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}
	s.mu.Lock()
	m.load(personaID, s)
	s.mu.Unlock()
}

// Verify checks the persona's loaded index against the rows once per process.
// Entries only ever come from persisted rows, so an index with the same count
// and highest Seq as the rows holds all of them. A snapshot that is behind is
// marked unavailable so the caller rebuilds it. A persona with no embedded
// rows gets an empty index even when its snapshot is missing.
func (m *Manager) Verify(ctx context.Context, personaID uuid.UUID, src StatsSource) error {
	s := m.shard(personaID)
	s.mu.RLock()
	verified := s.verified
	s.mu.RUnlock()
	if verified {
		return nil
	}

	stats, err := src.EmbeddingStats(ctx, personaID)
	if err != nil {
		return fmt.Errorf("read embedding stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m.load(personaID, s)
	if s.verified {
		return nil
	}
	switch {
	case s.idx == nil && stats.Count == 0:
		s.idx = New()
	case s.idx == nil:
	case s.idx.Len() != stats.Count || s.idx.MaxSeq() != stats.MaxSeq:
		m.logger.Warn("index snapshot is behind the stored interactions",
			zap.String("persona_id", personaID.String()),
			zap.Int("indexed", s.idx.Len()),
			zap.Int("stored", stats.Count),
			zap.Int64("indexed_max_seq", s.idx.MaxSeq()),
			zap.Int64("stored_max_seq", stats.MaxSeq))
		s.idx = nil
		s.dirty = false
		return nil
	}
	s.verified = s.idx != nil
	return nil
}

// Available reports whether the persona's index is loaded and usable.
func (m *Manager) Available(personaID uuid.UUID) bool {
	s := m.shard(personaID)
	m.ensureLoaded(personaID, s)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx != nil
}

// Upsert adds or replaces one entry. It returns domain.ErrIndexUnavailable when
// the persona's index has to be rebuilt first.
func (m *Manager) Upsert(personaID uuid.UUID, e Entry) error {
	s := m.shard(personaID)
	m.ensureLoaded(personaID, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return domain.ErrIndexUnavailable
	}
	if err := s.idx.Upsert(e); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// Search returns the k best hits for query within the persona's index.
func (m *Manager) Search(ctx context.Context, personaID uuid.UUID, query []float32, k int, subreddit string) ([]Hit, error) {
	s := m.shard(personaID)
	m.ensureLoaded(personaID, s)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return nil, domain.ErrIndexUnavailable
	}
	return s.idx.Search(query, k, subreddit)
}

// Dim returns the vector width of the persona's index, 0 when it is empty or
// unavailable.
func (m *Manager) Dim(personaID uuid.UUID) int {
	s := m.shard(personaID)
	m.ensureLoaded(personaID, s)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return 0
	}
	return s.idx.Dim()
}

// Size returns the number of entries, or -1 when the index is unavailable.
func (m *Manager) Size(personaID uuid.UUID) int {
	s := m.shard(personaID)
	m.ensureLoaded(personaID, s)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return -1
	}
	return s.idx.Len()
}

// Rebuild reconstructs the persona's index from src into a fresh structure and
// swaps it in only when every page was read. Adds and searches for the persona
// wait until it finishes; a cancelled or failed rebuild keeps the prior index.
func (m *Manager) Rebuild(ctx context.Context, personaID uuid.UUID, src Source) (int, error) {
	s := m.shard(personaID)
	s.mu.Lock()
	defer s.mu.Unlock()
	m.load(personaID, s)

	fresh := New()
	cursor := domain.InteractionCursor{Limit: m.pageSize}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		page, err := src.ListEmbedded(ctx, personaID, cursor)
		if err != nil {
			return 0, fmt.Errorf("read embedded interactions: %w", err)
		}
		for _, in := range page {
			if len(in.Embedding) == 0 {
				continue
			}
			if err := fresh.Upsert(Entry{ID: in.ID, Seq: in.Seq, Subreddit: in.Subreddit(), Vector: in.Embedding}); err != nil {
				m.logger.Warn("skipping interaction during rebuild",
					zap.String("persona_id", personaID.String()),
					zap.String("interaction_id", in.ID.String()),
					zap.Error(err))
			}
		}
		if len(page) < cursor.Limit {
			break
		}
		cursor.AfterSeq = page[len(page)-1].Seq
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.idx = fresh
	s.verified = true
	s.dirty = true
	if err := writeSnapshot(m.dir, personaID, fresh); err != nil {
		m.logger.Warn("failed to persist rebuilt index",
			zap.String("persona_id", personaID.String()),
			zap.Error(err))
	} else {
		s.dirty = false
	}
	return fresh.Len(), nil
}

// Flush persists the persona's index if it changed since the last write.
func (m *Manager) Flush(personaID uuid.UUID) error {
	_, err := m.flush(personaID)
	return err
}

func (m *Manager) flush(personaID uuid.UUID) (bool, error) {
	m.mu.Lock()
	s, ok := m.shards[personaID]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil || !s.dirty {
		return false, nil
	}
	if err := writeSnapshot(m.dir, personaID, s.idx); err != nil {
		return false, err
	}
	s.dirty = false
	return true, nil
}

// FlushAll persists every dirty index and returns how many were written.
func (m *Manager) FlushAll() (int, error) {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.shards))
	for id := range m.shards {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	written := 0
	for _, id := range ids {
		ok, err := m.flush(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("persona %s: %w", id, err))
			continue
		}
		if ok {
			written++
		}
	}
	return written, errors.Join(errs...)
}

// Drop forgets the persona's index and removes its snapshot file.
func (m *Manager) Drop(personaID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.shards[personaID]
	delete(m.shards, personaID)
	m.mu.Unlock()

	if ok {
		s.mu.Lock()
		s.idx = nil
		s.dirty = false
		s.mu.Unlock()
	}
	return removeSnapshot(m.dir, personaID)
}
