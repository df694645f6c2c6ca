package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

const beliefColumns = `id, persona_id, title, summary, confidence, tags, created_at, updated_at`

func scanBelief(row pgx.Row, b *domain.BeliefNode) error {
	return row.Scan(&b.ID, &b.PersonaID, &b.Title, &b.Summary, &b.Confidence, &b.Tags, &b.CreatedAt, &b.UpdatedAt)
}

func (s *BeliefStore) Create(ctx context.Context, b *domain.BeliefNode, initial *domain.StanceVersion, record *domain.BeliefUpdateRecord) error {
	if b.Tags == nil {
		b.Tags = []string{}
	}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO beliefs (persona_id, title, summary, confidence, tags)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			b.PersonaID, b.Title, b.Summary, b.Confidence, b.Tags,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
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
	if isPgCode(err, pgForeignKeyViolation) {
		return ErrNotFound
	}
	return err
}

func (s *BeliefStore) GetByID(ctx context.Context, personaID, id uuid.UUID) (*domain.BeliefNode, error) {
	b := &domain.BeliefNode{}
	err := scanBelief(s.db.QueryRow(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE id = $1 AND persona_id = $2`,
		id, personaID,
	), b)
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (s *BeliefStore) List(ctx context.Context, personaID uuid.UUID, filter domain.GraphFilter) ([]domain.BeliefNode, error) {
	conditions := []string{"persona_id = $1"}
	args := []any{personaID}

	if filter.Tag != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", len(args)+1))
		args = append(args, filter.Tag)
	}
	if filter.MinConfidence != nil {
		conditions = append(conditions, fmt.Sprintf("confidence >= $%d", len(args)+1))
		args = append(args, *filter.MinConfidence)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM beliefs WHERE %s ORDER BY created_at ASC, id ASC`,
		beliefColumns, strings.Join(conditions, " AND "),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list beliefs: %w", err)
	}
	defer rows.Close()

	var beliefs []domain.BeliefNode
	for rows.Next() {
		var b domain.BeliefNode
		if err := scanBelief(rows, &b); err != nil {
			return nil, fmt.Errorf("scan belief: %w", err)
		}
		beliefs = append(beliefs, b)
	}
	return beliefs, rows.Err()
}

func (s *BeliefStore) Update(ctx context.Context, b *domain.BeliefNode) error {
	if b.Tags == nil {
		b.Tags = []string{}
	}
	err := s.db.QueryRow(ctx,
		`UPDATE beliefs SET title = $1, summary = $2, tags = $3, updated_at = NOW()
		 WHERE id = $4 AND persona_id = $5
		 RETURNING confidence, created_at, updated_at`,
		b.Title, b.Summary, b.Tags, b.ID, b.PersonaID,
	).Scan(&b.Confidence, &b.CreatedAt, &b.UpdatedAt)
	return notFound(err)
}

func (s *BeliefStore) Delete(ctx context.Context, personaID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM beliefs WHERE id = $1 AND persona_id = $2`,
		id, personaID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const edgeColumns = `id, persona_id, source_id, target_id, relation, weight, created_at, updated_at`

func scanEdge(row pgx.Row, e *domain.BeliefEdge) error {
	return row.Scan(&e.ID, &e.PersonaID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &e.CreatedAt, &e.UpdatedAt)
}

// CreateEdge relies on the composite foreign keys: an endpoint owned by another
// persona fails the (id, persona_id) reference and surfaces as ErrNotFound.
func (s *BeliefStore) CreateEdge(ctx context.Context, e *domain.BeliefEdge) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO belief_edges (persona_id, source_id, target_id, relation, weight)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		e.PersonaID, e.SourceID, e.TargetID, e.Relation, e.Weight,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	switch {
	case isPgCode(err, pgUniqueViolation):
		return ErrConflict
	case isPgCode(err, pgForeignKeyViolation):
		return ErrNotFound
	}
	return err
}

func (s *BeliefStore) GetEdge(ctx context.Context, personaID, id uuid.UUID) (*domain.BeliefEdge, error) {
	e := &domain.BeliefEdge{}
	err := scanEdge(s.db.QueryRow(ctx,
		`SELECT `+edgeColumns+` FROM belief_edges WHERE id = $1 AND persona_id = $2`,
		id, personaID,
	), e)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (s *BeliefStore) UpdateEdge(ctx context.Context, e *domain.BeliefEdge) error {
	err := s.db.QueryRow(ctx,
		`UPDATE belief_edges SET relation = $1, weight = $2, updated_at = NOW()
		 WHERE id = $3 AND persona_id = $4
		 RETURNING source_id, target_id, created_at, updated_at`,
		e.Relation, e.Weight, e.ID, e.PersonaID,
	).Scan(&e.SourceID, &e.TargetID, &e.CreatedAt, &e.UpdatedAt)
	if isPgCode(err, pgUniqueViolation) {
		return ErrConflict
	}
	return notFound(err)
}

func (s *BeliefStore) DeleteEdge(ctx context.Context, personaID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM belief_edges WHERE id = $1 AND persona_id = $2`,
		id, personaID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) ListEdges(ctx context.Context, personaID uuid.UUID) ([]domain.BeliefEdge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+edgeColumns+` FROM belief_edges WHERE persona_id = $1 ORDER BY created_at ASC, id ASC`,
		personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.BeliefEdge
	for rows.Next() {
		var e domain.BeliefEdge
		if err := scanEdge(rows, &e); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
