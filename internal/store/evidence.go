package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EvidenceStore struct {
	db *pgxpool.Pool
}

func NewEvidenceStore(db *pgxpool.Pool) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) Append(ctx context.Context, e *domain.EvidenceLink) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE beliefs SET updated_at = NOW() WHERE id = $1 AND persona_id = $2`,
			e.BeliefID, e.PersonaID,
		)
		if err != nil {
			return fmt.Errorf("touch belief: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		return tx.QueryRow(ctx,
			`INSERT INTO evidence_links (belief_id, persona_id, source_type, source_ref, strength)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			e.BeliefID, e.PersonaID, e.SourceType, e.SourceRef, e.Strength,
		).Scan(&e.ID, &e.CreatedAt)
	})
}

func (s *EvidenceStore) List(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.EvidenceLink, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, belief_id, persona_id, source_type, source_ref, strength, created_at
		 FROM evidence_links
		 WHERE belief_id = $1 AND persona_id = $2
		 ORDER BY created_at ASC, id ASC`,
		beliefID, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var links []domain.EvidenceLink
	for rows.Next() {
		var e domain.EvidenceLink
		if err := rows.Scan(&e.ID, &e.BeliefID, &e.PersonaID, &e.SourceType, &e.SourceRef, &e.Strength, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		links = append(links, e)
	}
	return links, rows.Err()
}
