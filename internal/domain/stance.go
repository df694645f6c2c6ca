package domain

import (
	"time"

	"github.com/google/uuid"
)

type StanceStatus string

const (
	StanceCurrent    StanceStatus = "current"
	StanceDeprecated StanceStatus = "deprecated"
	StanceLocked     StanceStatus = "locked"
)

func ValidStanceStatus(s string) bool {
	switch StanceStatus(s) {
	case StanceCurrent, StanceDeprecated, StanceLocked:
		return true
	}
	return false
}

// IsHead reports whether a version with this status is the belief's live position.
// A locked version is the head until an override supersedes it.
func (s StanceStatus) IsHead() bool {
	return s == StanceCurrent || s == StanceLocked
}

// StanceVersion is one immutable snapshot of a belief's position.
// Only Status ever changes after insert, and only from head to deprecated.
type StanceVersion struct {
	ID         uuid.UUID    `json:"id"`
	BeliefID   uuid.UUID    `json:"belief_id"`
	PersonaID  uuid.UUID    `json:"persona_id"`
	Version    int          `json:"version"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Status     StanceStatus `json:"status"`
	Rationale  string       `json:"rationale,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Snapshot captures the audit view of the version.
func (v *StanceVersion) Snapshot() StanceSnapshot {
	id := v.ID
	return StanceSnapshot{
		VersionID:  &id,
		Text:       v.Text,
		Confidence: v.Confidence,
		Status:     v.Status,
	}
}

// StanceSnapshot is the before/after value stored on an update record.
type StanceSnapshot struct {
	VersionID  *uuid.UUID   `json:"version_id,omitempty"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Status     StanceStatus `json:"status,omitempty"`
}

type TriggerType string

const (
	TriggerManual         TriggerType = "manual"
	TriggerEvidence       TriggerType = "evidence"
	TriggerConflict       TriggerType = "conflict"
	TriggerExternalReview TriggerType = "external_review"
)

func ValidTriggerType(t string) bool {
	switch TriggerType(t) {
	case TriggerManual, TriggerEvidence, TriggerConflict, TriggerExternalReview:
		return true
	}
	return false
}

// BeliefUpdateRecord is the audit row written with every stance mutation.
type BeliefUpdateRecord struct {
	ID        uuid.UUID      `json:"id"`
	BeliefID  uuid.UUID      `json:"belief_id"`
	PersonaID uuid.UUID      `json:"persona_id"`
	OldValue  StanceSnapshot `json:"old_value"`
	NewValue  StanceSnapshot `json:"new_value"`
	Reason    string         `json:"reason"`
	Trigger   TriggerType    `json:"trigger_type"`
	Actor     string         `json:"actor"`
	CreatedAt time.Time      `json:"created_at"`
}

// StanceMutation is the unit the store applies atomically: retire the expected
// head (if any), insert Next, write Record, refresh the node's cached confidence.
type StanceMutation struct {
	PersonaID uuid.UUID
	BeliefID  uuid.UUID
	// ExpectedHeadID is the head the caller read; nil when the belief had none.
	ExpectedHeadID *uuid.UUID
	Next           *StanceVersion
	Record         *BeliefUpdateRecord
}
