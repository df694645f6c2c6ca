package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
)

type BeliefStore struct {
	db *sql.DB
}

func NewBeliefStore(db *sql.DB) *BeliefStore {
	return &BeliefStore{db: db}
}

const beliefColumns = `id, persona_id, title, summary, confidence, tags, created_at, updated_at`

func scanBelief(row scanner) (*domain.BeliefNode, error) {
	var b domain.BeliefNode
	var tags string
	if err := row.Scan(&b.ID, &b.PersonaID, &b.Title, &b.Summary, &b.Confidence, &tags, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(tags, &b.Tags); err != nil {
		return nil, fmt.Errorf("decode belief tags: %w", err)
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return &b, nil
}

func (s *BeliefStore) Create(ctx context.Context, b *domain.BeliefNode, initial *domain.StanceVersion, record *domain.BeliefUpdateRecord) error {
	if b.Tags == nil {
		b.Tags = []string{}
	}
	tags, err := encodeJSON(b.Tags)
	if err != nil {
		return fmt.Errorf("encode belief tags: %w", err)
	}

	b.ID = uuid.New()
	b.CreatedAt = now()
	b.UpdatedAt = b.CreatedAt

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO beliefs (`+beliefColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.PersonaID, b.Title, b.Summary, b.Confidence, tags, b.CreatedAt, b.UpdatedAt,
		); err != nil {
			return err
		}
		if initial == nil {
			return nil
		}

		initial.BeliefID = b.ID
		initial.PersonaID = b.PersonaID
		if err := insertStanceVersion(ctx, tx, initial); err != nil {
			return fmt.Errorf("insert initial stance: %w", err)
		}
		if record != nil {
			record.BeliefID = b.ID
			record.PersonaID = b.PersonaID
			if err := insertUpdateRecord(ctx, tx, record); err != nil {
				return fmt.Errorf("insert initial audit record: %w", err)
			}
		}
		return nil
	})
	if isForeignKey(err) {
		return domain.ErrNotFound
	}
	return err
}

func (s *BeliefStore) GetByID(ctx context.Context, personaID, id uuid.UUID) (*domain.BeliefNode, error) {
	b, err := scanBelief(s.db.QueryRowContext(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE id = ? AND persona_id = ?`, id, personaID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// List applies the confidence bound in SQL and the tag match in Go, since tags
// are stored as a JSON array.
func (s *BeliefStore) List(ctx context.Context, personaID uuid.UUID, filter domain.GraphFilter) ([]domain.BeliefNode, error) {
	query := `SELECT ` + beliefColumns + ` FROM beliefs WHERE persona_id = ?`
	args := []any{personaID}
	if filter.MinConfidence != nil {
		query += ` AND confidence >= ?`
		args = append(args, *filter.MinConfidence)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list beliefs: %w", err)
	}
	defer rows.Close()

	var beliefs []domain.BeliefNode
	for rows.Next() {
		b, err := scanBelief(rows)
		if err != nil {
			return nil, fmt.Errorf("scan belief: %w", err)
		}
		if filter.Matches(b) {
			beliefs = append(beliefs, *b)
		}
	}
	return beliefs, rows.Err()
}

func (s *BeliefStore) Update(ctx context.Context, b *domain.BeliefNode) error {
	if b.Tags == nil {
		b.Tags = []string{}
	}
	tags, err := encodeJSON(b.Tags)
	if err != nil {
		return fmt.Errorf("encode belief tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE beliefs SET title = ?, summary = ?, tags = ?, updated_at = ? WHERE id = ? AND persona_id = ?`,
		b.Title, b.Summary, tags, now(), b.ID, b.PersonaID,
	)
	if err := affected(res, err); err != nil {
		return err
	}

	fresh, err := s.GetByID(ctx, b.PersonaID, b.ID)
	if err != nil {
		return err
	}
	*b = *fresh
	return nil
}

func (s *BeliefStore) Delete(ctx context.Context, personaID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM beliefs WHERE id = ? AND persona_id = ?`, id, personaID)
	return affected(res, err)
}

const edgeColumns = `id, persona_id, source_id, target_id, relation, weight, created_at, updated_at`

func scanEdge(row scanner) (*domain.BeliefEdge, error) {
	var e domain.BeliefEdge
	if err := row.Scan(&e.ID, &e.PersonaID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *BeliefStore) CreateEdge(ctx context.Context, e *domain.BeliefEdge) error {
	e.ID = uuid.New()
	e.CreatedAt = now()
	e.UpdatedAt = e.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO belief_edges (`+edgeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PersonaID, e.SourceID, e.TargetID, e.Relation, e.Weight, e.CreatedAt, e.UpdatedAt,
	)
	switch {
	case isUnique(err):
		return domain.ErrConflict
	case isForeignKey(err):
		return domain.ErrNotFound
	}
	return err
}

func (s *BeliefStore) GetEdge(ctx context.Context, personaID, id uuid.UUID) (*domain.BeliefEdge, error) {
	e, err := scanEdge(s.db.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM belief_edges WHERE id = ? AND persona_id = ?`, id, personaID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (s *BeliefStore) UpdateEdge(ctx context.Context, e *domain.BeliefEdge) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE belief_edges SET relation = ?, weight = ?, updated_at = ? WHERE id = ? AND persona_id = ?`,
		e.Relation, e.Weight, now(), e.ID, e.PersonaID,
	)
	if isUnique(err) {
		return domain.ErrConflict
	}
	if err := affected(res, err); err != nil {
		return err
	}

	fresh, err := s.GetEdge(ctx, e.PersonaID, e.ID)
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

func (s *BeliefStore) DeleteEdge(ctx context.Context, personaID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM belief_edges WHERE id = ? AND persona_id = ?`, id, personaID)
	return affected(res, err)
}

func (s *BeliefStore) ListEdges(ctx context.Context, personaID uuid.UUID) ([]domain.BeliefEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+edgeColumns+` FROM belief_edges WHERE persona_id = ? ORDER BY created_at ASC, id ASC`, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.BeliefEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, *e)
	}
	return edges, rows.Err()
}
