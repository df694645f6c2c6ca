package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StanceStore struct {
	db *pgxpool.Pool
}

func NewStanceStore(db *pgxpool.Pool) *StanceStore {
	return &StanceStore{db: db}
}

const stanceColumns = `id, belief_id, persona_id, version, text, confidence, status, rationale, created_at`

func scanStance(row pgx.Row, v *domain.StanceVersion) error {
	return row.Scan(&v.ID, &v.BeliefID, &v.PersonaID, &v.Version, &v.Text, &v.Confidence, &v.Status, &v.Rationale, &v.CreatedAt)
}

func (s *StanceStore) GetHead(ctx context.Context, personaID, beliefID uuid.UUID) (*domain.StanceVersion, error) {
	v := &domain.StanceVersion{}
	err := scanStance(s.db.QueryRow(ctx,
		`SELECT `+stanceColumns+` FROM stance_versions
		 WHERE belief_id = $1 AND persona_id = $2 AND status IN ('current', 'locked')`,
		beliefID, personaID,
	), v)
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (s *StanceStore) ListVersions(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.StanceVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+stanceColumns+` FROM stance_versions
		 WHERE belief_id = $1 AND persona_id = $2
		 ORDER BY version ASC`,
		beliefID, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stance versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.StanceVersion
	for rows.Next() {
		var v domain.StanceVersion
		if err := scanStance(rows, &v); err != nil {
			return nil, fmt.Errorf("scan stance version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Apply locks the belief row, verifies the head the caller observed is still the
// head, then retires it, inserts the next version, writes the audit record and
// refreshes the node's cached confidence. Any failure rolls back all of it.
func (s *StanceStore) Apply(ctx context.Context, m domain.StanceMutation) error {
	if m.Next == nil || m.Record == nil {
		return domain.Invalid("stance mutation requires a version and an audit record")
	}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var lockedID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM beliefs WHERE id = $1 AND persona_id = $2 FOR UPDATE`,
			m.BeliefID, m.PersonaID,
		).Scan(&lockedID)
		if err != nil {
			return notFound(err)
		}

		var headID *uuid.UUID
		var id uuid.UUID
		err = tx.QueryRow(ctx,
			`SELECT id FROM stance_versions WHERE belief_id = $1 AND status IN ('current', 'locked')`,
			m.BeliefID,
		).Scan(&id)
		switch {
		case err == nil:
			headID = &id
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("read head: %w", err)
		}

		if !sameHead(headID, m.ExpectedHeadID) {
			return domain.ErrConcurrency
		}

		if headID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE stance_versions SET status = 'deprecated' WHERE id = $1`,
				*headID,
			); err != nil {
				return fmt.Errorf("deprecate head: %w", err)
			}
		}

		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM stance_versions WHERE belief_id = $1`,
			m.BeliefID,
		).Scan(&m.Next.Version); err != nil {
			return fmt.Errorf("next version: %w", err)
		}

		m.Next.BeliefID = m.BeliefID
		m.Next.PersonaID = m.PersonaID
		if err := insertStanceVersion(ctx, tx, m.Next); err != nil {
			return fmt.Errorf("insert stance version: %w", err)
		}

		m.Record.BeliefID = m.BeliefID
		m.Record.PersonaID = m.PersonaID
		if err := insertUpdateRecord(ctx, tx, m.Record); err != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE beliefs SET confidence = $1, updated_at = NOW() WHERE id = $2`,
			m.Next.Confidence, m.BeliefID,
		); err != nil {
			return fmt.Errorf("refresh belief confidence: %w", err)
		}
		return nil
	})
	if isPgCode(err, pgUniqueViolation) {
		return domain.ErrConcurrency
	}
	return err
}

func (s *StanceStore) ListUpdates(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.BeliefUpdateRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, belief_id, persona_id, old_value, new_value, reason, trigger_type, actor, created_at
		 FROM belief_updates
		 WHERE belief_id = $1 AND persona_id = $2
		 ORDER BY created_at ASC, id ASC`,
		beliefID, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list belief updates: %w", err)
	}
	defer rows.Close()

	var records []domain.BeliefUpdateRecord
	for rows.Next() {
		var r domain.BeliefUpdateRecord
		if err := rows.Scan(&r.ID, &r.BeliefID, &r.PersonaID, &r.OldValue, &r.NewValue, &r.Reason, &r.Trigger, &r.Actor, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan belief update: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func sameHead(actual, expected *uuid.UUID) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return *actual == *expected
}

func insertStanceVersion(ctx context.Context, tx pgx.Tx, v *domain.StanceVersion) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Version == 0 {
		v.Version = 1
	}
	return tx.QueryRow(ctx,
		`INSERT INTO stance_versions (id, belief_id, persona_id, version, text, confidence, status, rationale)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		v.ID, v.BeliefID, v.PersonaID, v.Version, v.Text, v.Confidence, v.Status, v.Rationale,
	).Scan(&v.CreatedAt)
}

func insertUpdateRecord(ctx context.Context, tx pgx.Tx, r *domain.BeliefUpdateRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return tx.QueryRow(ctx,
		`INSERT INTO belief_updates (id, belief_id, persona_id, old_value, new_value, reason, trigger_type, actor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		r.ID, r.BeliefID, r.PersonaID, r.OldValue, r.NewValue, r.Reason, r.Trigger, r.Actor,
	).Scan(&r.CreatedAt)
}
