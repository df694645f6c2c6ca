package domain

import (
	"time"

	"github.com/google/uuid"
)

type EvidenceSourceType string

const (
	SourceObservedInteraction EvidenceSourceType = "observed_interaction"
	SourceExternalReference   EvidenceSourceType = "external_reference"
	SourceNote                EvidenceSourceType = "note"
)

func ValidEvidenceSourceType(s string) bool {
	switch EvidenceSourceType(s) {
	case SourceObservedInteraction, SourceExternalReference, SourceNote:
		return true
	}
	return false
}

type EvidenceStrength string

const (
	StrengthWeak     EvidenceStrength = "weak"
	StrengthModerate EvidenceStrength = "moderate"
	StrengthStrong   EvidenceStrength = "strong"
)

func ValidEvidenceStrength(s string) bool {
	switch EvidenceStrength(s) {
	case StrengthWeak, StrengthModerate, StrengthStrong:
		return true
	}
	return false
}

// Rank orders strengths weak < moderate < strong. Unknown strengths rank 0.
func (s EvidenceStrength) Rank() int {
	switch s {
	case StrengthWeak:
		return 1
	case StrengthModerate:
		return 2
	case StrengthStrong:
		return 3
	}
	return 0
}

// EvidenceLink is an immutable justification record attached to a belief.
type EvidenceLink struct {
	ID         uuid.UUID          `json:"id"`
	BeliefID   uuid.UUID          `json:"belief_id"`
	PersonaID  uuid.UUID          `json:"persona_id"`
	SourceType EvidenceSourceType `json:"source_type"`
	SourceRef  string             `json:"source_ref"`
	Strength   EvidenceStrength   `json:"strength"`
	CreatedAt  time.Time          `json:"created_at"`
}

type SignalDirection string

const (
	DirectionSupports SignalDirection = "supports"
	DirectionOpposes  SignalDirection = "opposes"
)

func ValidSignalDirection(d string) bool {
	switch SignalDirection(d) {
	case DirectionSupports, DirectionOpposes:
		return true
	}
	return false
}

// EvidenceSignal is evidence strength applied to the current stance, either
// reinforcing it or pushing against it.
type EvidenceSignal struct {
	Strength  EvidenceStrength `json:"strength"`
	Direction SignalDirection  `json:"direction"`
}
