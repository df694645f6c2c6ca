package domain

import (
	"time"

	"github.com/google/uuid"
)

// Persona is the identity under which beliefs and memory exist. Its id is the
// partition key of every other entity.
type Persona struct {
	ID          uuid.UUID      `json:"id"`
	DisplayName string         `json:"display_name"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
