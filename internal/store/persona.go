package store

import (
	"context"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PersonaStore struct {
	db *pgxpool.Pool
}

func NewPersonaStore(db *pgxpool.Pool) *PersonaStore {
	return &PersonaStore{db: db}
}

func (s *PersonaStore) Create(ctx context.Context, p *domain.Persona) error {
	if p.Config == nil {
		p.Config = map[string]any{}
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO personas (display_name, config) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		p.DisplayName, p.Config,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *PersonaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	p := &domain.Persona{}
	err := s.db.QueryRow(ctx,
		`SELECT id, display_name, config, created_at, updated_at
		 FROM personas WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.DisplayName, &p.Config, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *PersonaStore) List(ctx context.Context) ([]domain.Persona, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, display_name, config, created_at, updated_at
		 FROM personas ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var personas []domain.Persona
	for rows.Next() {
		var p domain.Persona
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Config, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

func (s *PersonaStore) UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE personas SET config = $1, updated_at = NOW() WHERE id = $2`,
		config, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete cascades to beliefs, edges, stance versions, evidence, audit rows and interactions.
func (s *PersonaStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
