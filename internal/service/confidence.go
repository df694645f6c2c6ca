package service

import (
	"math"

	"github.com/Harshitk-cp/credo/internal/domain"
)

// Fixed confidence deltas per evidence strength.
const (
	WeakDelta     = 0.05
	ModerateDelta = 0.10
	StrongDelta   = 0.20
)

// StrengthDelta returns the magnitude of the confidence change for strength,
// or 0 for an unknown strength.
func StrengthDelta(strength domain.EvidenceStrength) float64 {
	switch strength {
	case domain.StrengthWeak:
		return WeakDelta
	case domain.StrengthModerate:
		return ModerateDelta
	case domain.StrengthStrong:
		return StrongDelta
	}
	return 0
}

// ClampConfidence bounds p to [0,1].
func ClampConfidence(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ResolveConfidence computes the next confidence from the prior. Exactly one of
// signal and target must be set. A target is used verbatim and must already be
// in [0,1]; a signal moves the prior by its strength's delta and is clamped.
func ResolveConfidence(prior float64, signal *domain.EvidenceSignal, target *float64) (float64, error) {
	switch {
	case signal != nil && target != nil:
		return 0, domain.Invalid("provide either an evidence signal or a target confidence, not both")
	case signal == nil && target == nil:
		return 0, domain.Invalid("an evidence signal or a target confidence is required")
	case target != nil:
		if math.IsNaN(*target) || *target < 0 || *target > 1 {
			return 0, domain.ErrInvalidConfidence
		}
		return *target, nil
	}

	if !domain.ValidEvidenceStrength(string(signal.Strength)) {
		return 0, domain.Invalid("unknown evidence strength %q", signal.Strength)
	}
	delta := StrengthDelta(signal.Strength)
	switch signal.Direction {
	case domain.DirectionSupports:
	case domain.DirectionOpposes:
		delta = -delta
	default:
		return 0, domain.Invalid("unknown signal direction %q", signal.Direction)
	}
	return ClampConfidence(prior + delta), nil
}
