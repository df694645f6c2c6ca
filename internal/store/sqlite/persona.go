package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
)

type PersonaStore struct {
	db *sql.DB
}

func NewPersonaStore(db *sql.DB) *PersonaStore {
	return &PersonaStore{db: db}
}

func (s *PersonaStore) Create(ctx context.Context, p *domain.Persona) error {
	if p.Config == nil {
		p.Config = map[string]any{}
	}
	config, err := encodeJSON(p.Config)
	if err != nil {
		return fmt.Errorf("encode persona config: %w", err)
	}
	p.ID = uuid.New()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO personas (id, display_name, config, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.DisplayName, config, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func scanPersona(row scanner) (*domain.Persona, error) {
	var p domain.Persona
	var config string
	if err := row.Scan(&p.ID, &p.DisplayName, &config, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(config, &p.Config); err != nil {
		return nil, fmt.Errorf("decode persona config: %w", err)
	}
	return &p, nil
}

func (s *PersonaStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	p, err := scanPersona(s.db.QueryRowContext(ctx,
		`SELECT id, display_name, config, created_at, updated_at FROM personas WHERE id = ?`, id,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *PersonaStore) List(ctx context.Context) ([]domain.Persona, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, config, created_at, updated_at FROM personas ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var personas []domain.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		personas = append(personas, *p)
	}
	return personas, rows.Err()
}

func (s *PersonaStore) UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	encoded, err := encodeJSON(config)
	if err != nil {
		return fmt.Errorf("encode persona config: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE personas SET config = ?, updated_at = ? WHERE id = ?`,
		encoded, now(), id,
	)
	return affected(res, err)
}

func (s *PersonaStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM personas WHERE id = ?`, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
