package service

import (
	"math"
	"testing"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrengthDelta(t *testing.T) {
	assert.Equal(t, 0.05, StrengthDelta(domain.StrengthWeak))
	assert.Equal(t, 0.10, StrengthDelta(domain.StrengthModerate))
	assert.Equal(t, 0.20, StrengthDelta(domain.StrengthStrong))
	assert.Equal(t, 0.0, StrengthDelta("overwhelming"))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.3))
	assert.Equal(t, 1.0, ClampConfidence(1.2))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
}

func TestResolveConfidence(t *testing.T) {
	target := func(v float64) *float64 { return &v }
	signal := func(s domain.EvidenceStrength, d domain.SignalDirection) *domain.EvidenceSignal {
		return &domain.EvidenceSignal{Strength: s, Direction: d}
	}

	tests := []struct {
		name    string
		prior   float64
		signal  *domain.EvidenceSignal
		target  *float64
		want    float64
		wantErr error
	}{
		{"weak support", 0.5, signal(domain.StrengthWeak, domain.DirectionSupports), nil, 0.55, nil},
		{"moderate oppose", 0.5, signal(domain.StrengthModerate, domain.DirectionOpposes), nil, 0.40, nil},
		{"strong support clamps at one", 0.9, signal(domain.StrengthStrong, domain.DirectionSupports), nil, 1.0, nil},
		{"strong oppose clamps at zero", 0.1, signal(domain.StrengthStrong, domain.DirectionOpposes), nil, 0.0, nil},
		{"target verbatim", 0.5, nil, target(0.83), 0.83, nil},
		{"target zero", 0.5, nil, target(0), 0, nil},
		{"target above one", 0.5, nil, target(1.2), 0, domain.ErrInvalidConfidence},
		{"target below zero", 0.5, nil, target(-0.1), 0, domain.ErrInvalidConfidence},
		{"target NaN", 0.5, nil, target(math.NaN()), 0, domain.ErrInvalidConfidence},
		{"both", 0.5, signal(domain.StrengthWeak, domain.DirectionSupports), target(0.5), 0, domain.ErrValidation},
		{"neither", 0.5, nil, nil, 0, domain.ErrValidation},
		{"bad strength", 0.5, signal("huge", domain.DirectionSupports), nil, 0, domain.ErrValidation},
		{"bad direction", 0.5, signal(domain.StrengthWeak, "sideways"), nil, 0, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConfidence(tt.prior, tt.signal, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
