package service

import (
	"context"
	"strings"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PersonaService struct {
	store  domain.PersonaStore
	memory *MemoryService
	logger *zap.Logger
}

func NewPersonaService(store domain.PersonaStore, memory *MemoryService, logger *zap.Logger) *PersonaService {
	return &PersonaService{store: store, memory: memory, logger: logger}
}

func (s *PersonaService) Create(ctx context.Context, p *domain.Persona) error {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.DisplayName == "" {
		return domain.Invalid("display_name is required")
	}
	if err := s.store.Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info("persona created", zap.String("persona_id", p.ID.String()))
	return nil
}

func (s *PersonaService) Get(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	return s.store.GetByID(ctx, id)
}

func (s *PersonaService) List(ctx context.Context) ([]domain.Persona, error) {
	personas, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if personas == nil {
		personas = []domain.Persona{}
	}
	return personas, nil
}

func (s *PersonaService) UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]any) (*domain.Persona, error) {
	if err := s.store.UpdateConfig(ctx, id, config); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, id)
}

// Delete removes the persona with every row it owns, then its index shard and
// snapshot file.
func (s *PersonaService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.memory != nil {
		if err := s.memory.DropIndex(id); err != nil {
			s.logger.Warn("failed to drop persona index",
				zap.String("persona_id", id.String()),
				zap.Error(err))
		}
	}
	s.logger.Info("persona deleted", zap.String("persona_id", id.String()))
	return nil
}
