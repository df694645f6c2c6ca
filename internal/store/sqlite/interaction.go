package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
)

// InteractionStore keeps embeddings as JSON arrays in a TEXT column.
type InteractionStore struct {
	db *sql.DB
}

func NewInteractionStore(db *sql.DB) *InteractionStore {
	return &InteractionStore{db: db}
}

const interactionColumns = `id, persona_id, seq, content, type, external_ref, metadata, embedding, embedding_model, embedded_at, created_at`

func scanInteraction(row scanner) (*domain.Interaction, error) {
	var i domain.Interaction
	var metadata string
	var embedding sql.NullString
	var embeddedAt sql.NullTime
	if err := row.Scan(&i.ID, &i.PersonaID, &i.Seq, &i.Content, &i.Type, &i.ExternalRef, &metadata,
		&embedding, &i.EmbeddingModel, &embeddedAt, &i.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(metadata, &i.Metadata); err != nil {
		return nil, fmt.Errorf("decode interaction metadata: %w", err)
	}
	if embedding.Valid {
		if err := decodeJSON(embedding.String, &i.Embedding); err != nil {
			return nil, fmt.Errorf("decode interaction embedding: %w", err)
		}
	}
	if embeddedAt.Valid {
		t := embeddedAt.Time
		i.EmbeddedAt = &t
	}
	return &i, nil
}

func (s *InteractionStore) Create(ctx context.Context, i *domain.Interaction) error {
	if i.Metadata == nil {
		i.Metadata = map[string]any{}
	}
	metadata, err := encodeJSON(i.Metadata)
	if err != nil {
		return fmt.Errorf("encode interaction metadata: %w", err)
	}

	i.ID = uuid.New()
	i.CreatedAt = now()

	var embedding sql.NullString
	var embeddedAt sql.NullTime
	if len(i.Embedding) > 0 {
		encoded, err := encodeJSON(i.Embedding)
		if err != nil {
			return fmt.Errorf("encode interaction embedding: %w", err)
		}
		embedding = sql.NullString{String: encoded, Valid: true}
		embeddedAt = sql.NullTime{Time: i.CreatedAt, Valid: true}
		t := i.CreatedAt
		i.EmbeddedAt = &t
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, persona_id, content, type, external_ref, metadata, embedding, embedding_model, embedded_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.PersonaID, i.Content, i.Type, i.ExternalRef, metadata, embedding, i.EmbeddingModel, embeddedAt, i.CreatedAt,
	)
	switch {
	case isUnique(err):
		return domain.ErrConflict
	case isForeignKey(err):
		return domain.ErrNotFound
	case err != nil:
		return err
	}
	i.Seq, err = res.LastInsertId()
	return err
}

func (s *InteractionStore) GetByID(ctx context.Context, personaID, id uuid.UUID) (*domain.Interaction, error) {
	i, err := scanInteraction(s.db.QueryRowContext(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE id = ? AND persona_id = ?`, id, personaID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return i, nil
}

func (s *InteractionStore) GetByIDs(ctx context.Context, personaID uuid.UUID, ids []uuid.UUID) ([]domain.Interaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, personaID)
	for n, id := range ids {
		placeholders[n] = "?"
		args = append(args, id)
	}
	return s.query(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE persona_id = ? AND id IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY seq ASC`,
		args...,
	)
}

func (s *InteractionStore) SetEmbedding(ctx context.Context, personaID, id uuid.UUID, embedding []float32, model string) error {
	if len(embedding) == 0 {
		return domain.Invalid("embedding must not be empty")
	}
	encoded, err := encodeJSON(embedding)
	if err != nil {
		return fmt.Errorf("encode interaction embedding: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions SET embedding = ?, embedding_model = ?, embedded_at = ?, embed_attempts = 0, embed_error = ''
		 WHERE id = ? AND persona_id = ?`,
		encoded, model, now(), id, personaID,
	)
	return affected(res, err)
}

func (s *InteractionStore) ListEmbedded(ctx context.Context, personaID uuid.UUID, cursor domain.InteractionCursor) ([]domain.Interaction, error) {
	limit := cursor.Limit
	if limit <= 0 {
		limit = 500
	}
	return s.query(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE persona_id = ? AND embedding IS NOT NULL AND seq > ?
		 ORDER BY seq ASC LIMIT ?`,
		personaID, cursor.AfterSeq, limit,
	)
}

func (s *InteractionStore) ListPendingEmbedding(ctx context.Context, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE embedding IS NULL AND embed_attempts < ?
		 ORDER BY embed_attempts ASC, seq ASC LIMIT ?`,
		domain.MaxEmbedAttempts, limit,
	)
}

func (s *InteractionStore) RecordEmbedFailure(ctx context.Context, personaID, id uuid.UUID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions SET embed_attempts = embed_attempts + 1, embed_error = ?
		 WHERE id = ? AND persona_id = ? AND embedding IS NULL`,
		reason, id, personaID,
	)
	return affected(res, err)
}

func (s *InteractionStore) EmbeddingStats(ctx context.Context, personaID uuid.UUID) (domain.EmbeddingStats, error) {
	var stats domain.EmbeddingStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(seq), 0) FROM interactions
		 WHERE persona_id = ? AND embedding IS NOT NULL`,
		personaID,
	).Scan(&stats.Count, &stats.MaxSeq)
	if err != nil {
		return domain.EmbeddingStats{}, fmt.Errorf("embedding stats: %w", err)
	}
	return stats, nil
}

func (s *InteractionStore) query(ctx context.Context, query string, args ...any) ([]domain.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
