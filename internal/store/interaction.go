package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type InteractionStore struct {
	db *pgxpool.Pool
}

func NewInteractionStore(db *pgxpool.Pool) *InteractionStore {
	return &InteractionStore{db: db}
}

const interactionColumns = `id, persona_id, seq, content, type, external_ref, metadata, embedding, embedding_model, embedded_at, created_at`

func scanInteraction(row pgx.Row, i *domain.Interaction) error {
	var embedding *pgvector.Vector
	err := row.Scan(&i.ID, &i.PersonaID, &i.Seq, &i.Content, &i.Type, &i.ExternalRef, &i.Metadata,
		&embedding, &i.EmbeddingModel, &i.EmbeddedAt, &i.CreatedAt)
	if err != nil {
		return err
	}
	if embedding != nil {
		i.Embedding = embedding.Slice()
	}
	return nil
}

func (s *InteractionStore) Create(ctx context.Context, i *domain.Interaction) error {
	if i.Metadata == nil {
		i.Metadata = map[string]any{}
	}
	var embedding *pgvector.Vector
	if len(i.Embedding) > 0 {
		v := pgvector.NewVector(i.Embedding)
		embedding = &v
		now := time.Now().UTC()
		i.EmbeddedAt = &now
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO interactions (persona_id, content, type, external_ref, metadata, embedding, embedding_model, embedded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, seq, created_at`,
		i.PersonaID, i.Content, i.Type, i.ExternalRef, i.Metadata, embedding, i.EmbeddingModel, i.EmbeddedAt,
	).Scan(&i.ID, &i.Seq, &i.CreatedAt)
	switch {
	case isPgCode(err, pgUniqueViolation):
		return ErrConflict
	case isPgCode(err, pgForeignKeyViolation):
		return ErrNotFound
	}
	return err
}

func (s *InteractionStore) GetByID(ctx context.Context, personaID, id uuid.UUID) (*domain.Interaction, error) {
	i := &domain.Interaction{}
	err := scanInteraction(s.db.QueryRow(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE id = $1 AND persona_id = $2`,
		id, personaID,
	), i)
	if err != nil {
		return nil, notFound(err)
	}
	return i, nil
}

func (s *InteractionStore) GetByIDs(ctx context.Context, personaID uuid.UUID, ids []uuid.UUID) ([]domain.Interaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.query(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE persona_id = $1 AND id = ANY($2)
		 ORDER BY seq ASC`,
		personaID, ids,
	)
}

func (s *InteractionStore) SetEmbedding(ctx context.Context, personaID, id uuid.UUID, embedding []float32, model string) error {
	if len(embedding) == 0 {
		return domain.Invalid("embedding must not be empty")
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE interactions SET embedding = $1, embedding_model = $2, embedded_at = NOW(),
		        embed_attempts = 0, embed_error = ''
		 WHERE id = $3 AND persona_id = $4`,
		pgvector.NewVector(embedding), model, id, personaID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *InteractionStore) ListEmbedded(ctx context.Context, personaID uuid.UUID, cursor domain.InteractionCursor) ([]domain.Interaction, error) {
	limit := cursor.Limit
	if limit <= 0 {
		limit = 500
	}
	return s.query(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE persona_id = $1 AND embedding IS NOT NULL AND seq > $2
		 ORDER BY seq ASC
		 LIMIT $3`,
		personaID, cursor.AfterSeq, limit,
	)
}

func (s *InteractionStore) ListPendingEmbedding(ctx context.Context, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE embedding IS NULL AND embed_attempts < $2
		 ORDER BY embed_attempts ASC, seq ASC
		 LIMIT $1`,
		limit, domain.MaxEmbedAttempts,
	)
}

func (s *InteractionStore) RecordEmbedFailure(ctx context.Context, personaID, id uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE interactions SET embed_attempts = embed_attempts + 1, embed_error = $1
		 WHERE id = $2 AND persona_id = $3 AND embedding IS NULL`,
		reason, id, personaID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *InteractionStore) EmbeddingStats(ctx context.Context, personaID uuid.UUID) (domain.EmbeddingStats, error) {
	var stats domain.EmbeddingStats
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MAX(seq), 0) FROM interactions
		 WHERE persona_id = $1 AND embedding IS NOT NULL`,
		personaID,
	).Scan(&stats.Count, &stats.MaxSeq)
	if err != nil {
		return domain.EmbeddingStats{}, fmt.Errorf("embedding stats: %w", err)
	}
	return stats, nil
}

func (s *InteractionStore) query(ctx context.Context, sql string, args ...any) ([]domain.Interaction, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		var i domain.Interaction
		if err := scanInteraction(rows, &i); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
