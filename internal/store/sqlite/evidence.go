package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
)

type EvidenceStore struct {
	db *sql.DB
}

func NewEvidenceStore(db *sql.DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) Append(ctx context.Context, e *domain.EvidenceLink) error {
	e.ID = uuid.New()
	e.CreatedAt = now()

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE beliefs SET updated_at = ? WHERE id = ? AND persona_id = ?`,
			e.CreatedAt, e.BeliefID, e.PersonaID,
		)
		if err := affected(res, err); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO evidence_links (id, belief_id, persona_id, source_type, source_ref, strength, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.BeliefID, e.PersonaID, e.SourceType, e.SourceRef, e.Strength, e.CreatedAt,
		)
		return err
	})
}

func (s *EvidenceStore) List(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.EvidenceLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, belief_id, persona_id, source_type, source_ref, strength, created_at
		 FROM evidence_links WHERE belief_id = ? AND persona_id = ?
		 ORDER BY rowid ASC`,
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
