package service

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsistencyService_Snapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "columnist")
	firm := env.belief(t, p.ID, "Free trade raises living standards", 0.9, true)
	env.belief(t, p.ID, "Tariffs protect jobs", 0.3, false)
	bare, err := env.beliefs.CreateBelief(ctx, CreateBeliefInput{PersonaID: p.ID, Title: "Central banks should target NGDP"})
	require.NoError(t, err)

	snaps, err := env.consistency.Snapshot(ctx, p.ID, domain.GraphFilter{})
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	byID := make(map[string]BeliefSnapshot, len(snaps))
	for _, s := range snaps {
		byID[s.BeliefID.String()] = s
	}
	got := byID[firm.ID.String()]
	assert.Equal(t, "Free trade raises living standards", got.Text)
	assert.True(t, got.Locked)
	assert.Equal(t, domain.ConvictionFirm, got.Conviction)

	got = byID[bare.ID.String()]
	assert.Equal(t, bare.Title, got.Text)
	assert.False(t, got.Locked)
	assert.Equal(t, domain.ConvictionTentative, got.Conviction)

	minConfidence := 0.5
	snaps, err = env.consistency.Snapshot(ctx, p.ID, domain.GraphFilter{MinConfidence: &minConfidence})
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestConsistencyService_ApplyVerdict(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "columnist")
	b := env.belief(t, p.ID, "Free trade raises living standards", 0.7, false)

	t.Run("agreement is ignored", func(t *testing.T) {
		out, err := env.consistency.ApplyVerdict(ctx, p.ID, Verdict{BeliefID: b.ID, Contradicts: false, Severity: domain.StrengthStrong})
		require.NoError(t, err)
		assert.Equal(t, VerdictIgnored, out.Action)
		assert.Nil(t, out.VersionID)
	})

	t.Run("minor contradiction is ignored", func(t *testing.T) {
		out, err := env.consistency.ApplyVerdict(ctx, p.ID, Verdict{BeliefID: b.ID, Contradicts: true, Severity: domain.StrengthWeak, SourceRef: "draft-1"})
		require.NoError(t, err)
		assert.Equal(t, VerdictIgnored, out.Action)

		links, err := env.evidence.ListEvidence(ctx, p.ID, b.ID)
		require.NoError(t, err)
		assert.Empty(t, links)
	})

	t.Run("strong contradiction opposes the stance", func(t *testing.T) {
		out, err := env.consistency.ApplyVerdict(ctx, p.ID, Verdict{
			BeliefID:    b.ID,
			Contradicts: true,
			Severity:    domain.StrengthStrong,
			Rationale:   "draft argued for tariffs",
			SourceRef:   "draft-2",
		})
		require.NoError(t, err)
		assert.Equal(t, VerdictApplied, out.Action)
		require.NotNil(t, out.VersionID)
		require.NotNil(t, out.EvidenceID)

		head, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, *out.VersionID, head.ID)
		assert.InDelta(t, 0.5, head.Confidence, 1e-9)

		records, err := env.beliefs.ListUpdates(ctx, p.ID, b.ID)
		require.NoError(t, err)
		last := records[len(records)-1]
		assert.Equal(t, domain.TriggerConflict, last.Trigger)
		assert.Equal(t, defaultVerdictActor, last.Actor)
		assert.Equal(t, "draft argued for tariffs", last.Reason)

		links, err := env.evidence.ListEvidence(ctx, p.ID, b.ID)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, domain.SourceObservedInteraction, links[0].SourceType)
		assert.Equal(t, "draft-2", links[0].SourceRef)
	})

	t.Run("unknown severity", func(t *testing.T) {
		_, err := env.consistency.ApplyVerdict(ctx, p.ID, Verdict{BeliefID: b.ID, Contradicts: true, Severity: "catastrophic"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("foreign belief", func(t *testing.T) {
		other := env.persona(t, "other")
		_, err := env.consistency.ApplyVerdict(ctx, other.ID, Verdict{BeliefID: b.ID, Contradicts: true, Severity: domain.StrengthStrong})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestConsistencyService_ApplyVerdict_Locked(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "zealot")
	b := env.belief(t, p.ID, "The earth is round", 0.99, true)

	out, err := env.consistency.ApplyVerdict(ctx, p.ID, Verdict{BeliefID: b.ID, Contradicts: true, Severity: domain.StrengthStrong})
	assert.ErrorIs(t, err, domain.ErrLockedStance)
	require.NotNil(t, out)
	assert.Equal(t, VerdictLocked, out.Action)
	assert.Nil(t, out.EvidenceID)
	assert.Nil(t, out.VersionID)

	out, err = env.consistency.ApplyVerdict(ctx, p.ID, Verdict{
		BeliefID:    b.ID,
		Contradicts: true,
		Severity:    domain.StrengthStrong,
		SourceRef:   "t1_flat",
	})
	assert.ErrorIs(t, err, domain.ErrLockedStance)
	require.NotNil(t, out)
	assert.Equal(t, VerdictLocked, out.Action)
	require.NotNil(t, out.EvidenceID)

	links, err := env.evidenceStore.List(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, *out.EvidenceID, links[0].ID)

	versions, err := env.stanceStore.ListVersions(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}
