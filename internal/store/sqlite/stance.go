package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
)

type StanceStore struct {
	db *sql.DB
}

func NewStanceStore(db *sql.DB) *StanceStore {
	return &StanceStore{db: db}
}

const stanceColumns = `id, belief_id, persona_id, version, text, confidence, status, rationale, created_at`

func scanStance(row scanner) (*domain.StanceVersion, error) {
	var v domain.StanceVersion
	if err := row.Scan(&v.ID, &v.BeliefID, &v.PersonaID, &v.Version, &v.Text, &v.Confidence, &v.Status, &v.Rationale, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *StanceStore) GetHead(ctx context.Context, personaID, beliefID uuid.UUID) (*domain.StanceVersion, error) {
	v, err := scanStance(s.db.QueryRowContext(ctx,
		`SELECT `+stanceColumns+` FROM stance_versions
		 WHERE belief_id = ? AND persona_id = ? AND status IN ('current', 'locked')`,
		beliefID, personaID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (s *StanceStore) ListVersions(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.StanceVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stanceColumns+` FROM stance_versions
		 WHERE belief_id = ? AND persona_id = ? ORDER BY version ASC`,
		beliefID, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stance versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.StanceVersion
	for rows.Next() {
		v, err := scanStance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stance version: %w", err)
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// Apply runs inside an immediate transaction, so the head read and the writes
// that follow cannot interleave with another writer.
func (s *StanceStore) Apply(ctx context.Context, m domain.StanceMutation) error {
	if m.Next == nil || m.Record == nil {
		return domain.Invalid("stance mutation requires a version and an audit record")
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var owner uuid.UUID
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM beliefs WHERE id = ? AND persona_id = ?`, m.BeliefID, m.PersonaID,
		).Scan(&owner); err != nil {
			return notFound(err)
		}

		var headID *uuid.UUID
		var id uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM stance_versions WHERE belief_id = ? AND status IN ('current', 'locked')`, m.BeliefID,
		).Scan(&id)
		switch {
		case err == nil:
			headID = &id
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("read head: %w", err)
		}

		if !sameHead(headID, m.ExpectedHeadID) {
			return domain.ErrConcurrency
		}

		if headID != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE stance_versions SET status = 'deprecated' WHERE id = ?`, *headID,
			); err != nil {
				return fmt.Errorf("deprecate head: %w", err)
			}
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM stance_versions WHERE belief_id = ?`, m.BeliefID,
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

		if _, err := tx.ExecContext(ctx,
			`UPDATE beliefs SET confidence = ?, updated_at = ? WHERE id = ?`,
			m.Next.Confidence, now(), m.BeliefID,
		); err != nil {
			return fmt.Errorf("refresh belief confidence: %w", err)
		}
		return nil
	})
	if isUnique(err) {
		return domain.ErrConcurrency
	}
	return err
}

func (s *StanceStore) ListUpdates(ctx context.Context, personaID, beliefID uuid.UUID) ([]domain.BeliefUpdateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, belief_id, persona_id, old_value, new_value, reason, trigger_type, actor, created_at
		 FROM belief_updates WHERE belief_id = ? AND persona_id = ?
		 ORDER BY rowid ASC`,
		beliefID, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list belief updates: %w", err)
	}
	defer rows.Close()

	var records []domain.BeliefUpdateRecord
	for rows.Next() {
		var r domain.BeliefUpdateRecord
		var oldValue, newValue string
		if err := rows.Scan(&r.ID, &r.BeliefID, &r.PersonaID, &oldValue, &newValue, &r.Reason, &r.Trigger, &r.Actor, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan belief update: %w", err)
		}
		if err := decodeJSON(oldValue, &r.OldValue); err != nil {
			return nil, fmt.Errorf("decode old value: %w", err)
		}
		if err := decodeJSON(newValue, &r.NewValue); err != nil {
			return nil, fmt.Errorf("decode new value: %w", err)
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

func insertStanceVersion(ctx context.Context, tx *sql.Tx, v *domain.StanceVersion) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Version == 0 {
		v.Version = 1
	}
	v.CreatedAt = now()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO stance_versions (`+stanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.BeliefID, v.PersonaID, v.Version, v.Text, v.Confidence, v.Status, v.Rationale, v.CreatedAt,
	)
	return err
}

func insertUpdateRecord(ctx context.Context, tx *sql.Tx, r *domain.BeliefUpdateRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	oldValue, err := encodeJSON(r.OldValue)
	if err != nil {
		return err
	}
	newValue, err := encodeJSON(r.NewValue)
	if err != nil {
		return err
	}
	r.CreatedAt = now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO belief_updates (id, belief_id, persona_id, old_value, new_value, reason, trigger_type, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BeliefID, r.PersonaID, oldValue, newValue, r.Reason, r.Trigger, r.Actor, r.CreatedAt,
	)
	return err
}
