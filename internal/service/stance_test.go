package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Harshitk-cp/credo/internal/domain"
	"github.com/Harshitk-cp/credo/internal/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func supports(s domain.EvidenceStrength) *domain.EvidenceSignal {
	return &domain.EvidenceSignal{Strength: s, Direction: domain.DirectionSupports}
}

func TestStanceEngine_UpdateStance_Signal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "economist")
	b := env.belief(t, p.ID, "Rent control reduces housing supply", 0.6, false)

	versionID, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID: p.ID,
		BeliefID:  b.ID,
		Signal:    supports(domain.StrengthModerate),
		Rationale: "new meta-analysis",
		Trigger:   domain.TriggerEvidence,
		Actor:     "reviewer",
	})
	require.NoError(t, err)

	head, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, versionID, head.ID)
	assert.Equal(t, 2, head.Version)
	assert.InDelta(t, 0.7, head.Confidence, 1e-9)
	assert.Equal(t, "Rent control reduces housing supply", head.Text, "empty text keeps the prior wording")

	node, err := env.beliefs.GetBelief(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, node.Confidence, 1e-9)

	versions, err := env.stanceStore.ListVersions(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, domain.StanceDeprecated, versions[0].Status)
	assert.Equal(t, domain.StanceCurrent, versions[1].Status)
}

func TestStanceEngine_UpdateStance_ClampsAtOne(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "optimist")
	b := env.belief(t, p.ID, "Things are getting better", 0.9, false)

	_, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID: p.ID,
		BeliefID:  b.ID,
		Signal:    supports(domain.StrengthStrong),
		Trigger:   domain.TriggerEvidence,
		Actor:     "reviewer",
	})
	require.NoError(t, err)

	head, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, head.Confidence)
}

func TestStanceEngine_UpdateStance_TargetConfidence(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "analyst")
	b := env.belief(t, p.ID, "Remote work raises productivity", 0.5, false)

	target := 0.83
	_, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID:        p.ID,
		BeliefID:         b.ID,
		Text:             "Remote work raises productivity for focused tasks",
		TargetConfidence: &target,
		Trigger:          domain.TriggerManual,
		Actor:            "operator",
	})
	require.NoError(t, err)

	head, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.83, head.Confidence)
	assert.Equal(t, "Remote work raises productivity for focused tasks", head.Text)

	bad := 1.5
	_, err = env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID:        p.ID,
		BeliefID:         b.ID,
		TargetConfidence: &bad,
		Trigger:          domain.TriggerManual,
		Actor:            "operator",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfidence)

	versions, err := env.stanceStore.ListVersions(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestStanceEngine_UpdateStance_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.persona(t, "critic")
	b := env.belief(t, p.ID, "Sequels are worse", 0.6, false)

	tests := []struct {
		name string
		u    StanceUpdate
	}{
		{"missing actor", StanceUpdate{Signal: supports(domain.StrengthWeak), Trigger: domain.TriggerEvidence}},
		{"bad trigger", StanceUpdate{Signal: supports(domain.StrengthWeak), Trigger: "gut_feeling", Actor: "x"}},
		{"no signal or target", StanceUpdate{Trigger: domain.TriggerEvidence, Actor: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.u.PersonaID = p.ID
			tt.u.BeliefID = b.ID
			_, err := env.engine.UpdateStance(context.Background(), tt.u)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestStanceEngine_UpdateStance_NoHead(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "newcomer")
	b, err := env.beliefs.CreateBelief(ctx, CreateBeliefInput{PersonaID: p.ID, Title: "Tabs over spaces"})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorConfidence, b.Confidence)

	versionID, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID: p.ID,
		BeliefID:  b.ID,
		Signal:    supports(domain.StrengthWeak),
		Trigger:   domain.TriggerEvidence,
		Actor:     "reviewer",
	})
	require.NoError(t, err)

	head, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, versionID, head.ID)
	assert.Equal(t, 1, head.Version)
	assert.InDelta(t, 0.55, head.Confidence, 1e-9)
	assert.Equal(t, "Tabs over spaces", head.Text)

	records, err := env.beliefs.ListUpdates(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].OldValue.VersionID)
	assert.Equal(t, domain.PriorConfidence, records[0].OldValue.Confidence)
}

func TestStanceEngine_AuditRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "historian")
	b := env.belief(t, p.ID, "The printing press caused the Reformation", 0.7, false)

	first, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)

	versionID, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID: p.ID,
		BeliefID:  b.ID,
		Signal:    &domain.EvidenceSignal{Strength: domain.StrengthWeak, Direction: domain.DirectionOpposes},
		Rationale: "counterexample from Bohemia",
		Trigger:   domain.TriggerEvidence,
		Actor:     "reviewer",
	})
	require.NoError(t, err)

	records, err := env.beliefs.ListUpdates(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	created := records[0]
	assert.Equal(t, domain.TriggerManual, created.Trigger)
	assert.Equal(t, "operator", created.Actor)

	rec := records[1]
	require.NotNil(t, rec.OldValue.VersionID)
	require.NotNil(t, rec.NewValue.VersionID)
	assert.Equal(t, first.ID, *rec.OldValue.VersionID)
	assert.Equal(t, versionID, *rec.NewValue.VersionID)
	assert.InDelta(t, 0.7, rec.OldValue.Confidence, 1e-9)
	assert.InDelta(t, 0.65, rec.NewValue.Confidence, 1e-9)
	assert.Equal(t, "counterexample from Bohemia", rec.Reason)
	assert.Equal(t, domain.TriggerEvidence, rec.Trigger)
	assert.Equal(t, "reviewer", rec.Actor)
}

func TestStanceEngine_LockedStance(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "stoic")
	b := env.belief(t, p.ID, "Virtue is the only good", 0.95, true)

	_, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID: p.ID,
		BeliefID:  b.ID,
		Signal:    &domain.EvidenceSignal{Strength: domain.StrengthStrong, Direction: domain.DirectionOpposes},
		Trigger:   domain.TriggerConflict,
		Actor:     "consistency-checker",
	})
	assert.ErrorIs(t, err, domain.ErrLockedStance)

	versions, err := env.stanceStore.ListVersions(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, domain.StanceLocked, versions[0].Status)

	records, err := env.beliefs.ListUpdates(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	node, err := env.beliefs.GetBelief(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.95, node.Confidence)
}

func TestStanceEngine_OverrideStance(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "stoic")
	b := env.belief(t, p.ID, "Virtue is the only good", 0.95, true)
	locked, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)

	target := 0.8
	versionID, err := env.engine.OverrideStance(ctx, StanceUpdate{
		PersonaID:        p.ID,
		BeliefID:         b.ID,
		Text:             "Virtue is the chief good",
		TargetConfidence: &target,
		Rationale:        "editorial review",
		Trigger:          domain.TriggerManual,
		Actor:            "editor",
	})
	require.NoError(t, err)

	versions, err := env.stanceStore.ListVersions(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, locked.ID, versions[0].ID)
	assert.Equal(t, domain.StanceDeprecated, versions[0].Status)
	assert.Equal(t, "Virtue is the only good", versions[0].Text)
	assert.Equal(t, 0.95, versions[0].Confidence)
	assert.Equal(t, versionID, versions[1].ID)
	assert.Equal(t, domain.StanceCurrent, versions[1].Status)

	records, err := env.beliefs.ListUpdates(ctx, p.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.TriggerExternalReview, records[1].Trigger)
	assert.Equal(t, domain.StanceLocked, records[1].OldValue.Status)
}

func TestStanceEngine_LockOnUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "founder")
	b := env.belief(t, p.ID, "Ship weekly", 0.7, false)

	target := 0.9
	_, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID:        p.ID,
		BeliefID:         b.ID,
		TargetConfidence: &target,
		Trigger:          domain.TriggerManual,
		Actor:            "operator",
		Lock:             true,
	})
	require.NoError(t, err)

	head, err := env.stanceStore.GetHead(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StanceLocked, head.Status)

	_, err = env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID: p.ID,
		BeliefID:  b.ID,
		Signal:    supports(domain.StrengthWeak),
		Trigger:   domain.TriggerEvidence,
		Actor:     "reviewer",
	})
	assert.ErrorIs(t, err, domain.ErrLockedStance)
}

func TestStanceEngine_CrossPersona(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := env.persona(t, "alice")
	bob := env.persona(t, "bob")
	b := env.belief(t, alice.ID, "Cats over dogs", 0.6, false)

	_, err := env.engine.UpdateStance(ctx, StanceUpdate{
		PersonaID: bob.ID,
		BeliefID:  b.ID,
		Signal:    supports(domain.StrengthStrong),
		Trigger:   domain.TriggerEvidence,
		Actor:     "reviewer",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	head, err := env.stanceStore.GetHead(ctx, alice.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.6, head.Confidence)
}

// Two engines share the stores but not their in-process locks, so updates race
// at the store and some of them see a moved head.
func TestStanceEngine_ConcurrentUpdatesKeepOneHead(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	p := env.persona(t, "contrarian")
	b := env.belief(t, p.ID, "Consensus is usually wrong", 0.5, false)

	other := NewStanceEngine(env.beliefStore, env.stanceStore, metrics.NewNop(), zap.NewNop())
	engines := []*StanceEngine{env.engine, other}

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(e *StanceEngine) {
			defer wg.Done()
			_, err := RetryOnConcurrency(ctx, func(ctx context.Context) (uuid.UUID, error) {
				return e.UpdateStance(ctx, StanceUpdate{
					PersonaID: p.ID,
					BeliefID:  b.ID,
					Signal:    supports(domain.StrengthWeak),
					Trigger:   domain.TriggerEvidence,
					Actor:     "worker",
				})
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrConcurrency)
		}(engines[i%2])
	}
	wg.Wait()
	require.Positive(t, succeeded)

	versions, err := env.stanceStore.ListVersions(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, versions, succeeded+1)

	heads := 0
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
		if v.Status.IsHead() {
			heads++
		}
	}
	assert.Equal(t, 1, heads)

	records, err := env.beliefs.ListUpdates(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, records, succeeded+1)
}

func TestRetryOnConcurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("retries once", func(t *testing.T) {
		calls := 0
		v, err := RetryOnConcurrency(ctx, func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, domain.ErrConcurrency
			}
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, v)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after second conflict", func(t *testing.T) {
		calls := 0
		_, err := RetryOnConcurrency(ctx, func(context.Context) (int, error) {
			calls++
			return 0, domain.ErrConcurrency
		})
		assert.ErrorIs(t, err, domain.ErrConcurrency)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		_, err := RetryOnConcurrency(ctx, func(context.Context) (int, error) {
			calls++
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retry", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		_, err := RetryOnConcurrency(cctx, func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, domain.ErrConcurrency
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestPersonaLocks(t *testing.T) {
	locks := newPersonaLocks()
	a, b := uuid.New(), uuid.New()

	unlockA := locks.Lock(a)
	// A different persona is not blocked.
	unlockB := locks.Lock(b)
	assert.Equal(t, 2, locks.size())
	unlockB()

	var counter int
	var wg sync.WaitGroup
	unlockA()
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(a)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())
}
