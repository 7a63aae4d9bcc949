package entitlement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowupapp/server/internal/clock"
)

type memCounters struct {
	counts map[string]int
	days   map[string]string
	err    error
}

func newMemCounters() *memCounters {
	return &memCounters{counts: make(map[string]int), days: make(map[string]string)}
}

func (m *memCounters) GetCounter(featureID string) (int, string, error) {
	if m.err != nil {
		return 0, "", m.err
	}
	return m.counts[featureID], m.days[featureID], nil
}

func (m *memCounters) SetCounter(featureID string, count int, day string) error {
	if m.err != nil {
		return m.err
	}
	m.counts[featureID] = count
	m.days[featureID] = day
	return nil
}

func newTestEngine(day string) (*Engine, *clock.Fixed, *memCounters) {
	dk := clock.NewFixed(day)
	counters := newMemCounters()
	return New(DefaultPolicies(), dk, counters), dk, counters
}

func TestPerDayQuotaResetsOnNewDay(t *testing.T) {
	engine, dk, _ := newTestEngine("2026-08-31")

	decision := engine.Check(FeatureSelfieAnalysis, TierFree)
	require.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Remaining)

	require.NoError(t, engine.Commit(FeatureSelfieAnalysis))

	decision = engine.Check(FeatureSelfieAnalysis, TierFree)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, decision.Reason)

	// Next calendar day: the counter reads as zero again.
	dk.Set("2026-09-01")
	decision = engine.Check(FeatureSelfieAnalysis, TierFree)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Remaining)

	// Moving the clock back re-surfaces the old counter unchanged.
	dk.Set("2026-08-31")
	assert.False(t, engine.Check(FeatureSelfieAnalysis, TierFree).Allowed)
}

func TestPerDayCheckNeverMutates(t *testing.T) {
	engine, _, counters := newTestEngine("2026-08-31")

	for i := 0; i < 5; i++ {
		engine.Check(FeatureSelfieAnalysis, TierFree)
	}
	assert.Empty(t, counters.counts, "Check must not write counters")

	require.NoError(t, engine.Commit(FeatureSelfieAnalysis))
	// A denied check afterwards still must not touch the stored count.
	engine.Check(FeatureSelfieAnalysis, TierFree)
	assert.Equal(t, 1, counters.counts[string(FeatureSelfieAnalysis)])
}

func TestPerDayCounterPersistedWithDayKey(t *testing.T) {
	engine, _, counters := newTestEngine("2026-08-31")

	require.NoError(t, engine.Commit(FeatureSelfieAnalysis))
	assert.Equal(t, 1, counters.counts[string(FeatureSelfieAnalysis)])
	assert.Equal(t, "2026-08-31", counters.days[string(FeatureSelfieAnalysis)])
}

func TestPerDayCommitSurfacesStoreError(t *testing.T) {
	engine, _, counters := newTestEngine("2026-08-31")
	counters.err = errors.New("disk full")

	err := engine.Commit(FeatureSelfieAnalysis)
	assert.Error(t, err)
}

func TestPerSessionQuota(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	for i := 0; i < 3; i++ {
		decision := engine.Check(FeatureCoachMessage, TierFree)
		require.True(t, decision.Allowed, "message %d should be allowed", i+1)
		assert.Equal(t, 3-i, decision.Remaining)
		require.NoError(t, engine.Commit(FeatureCoachMessage))
	}

	decision := engine.Check(FeatureCoachMessage, TierFree)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, decision.Reason)
}

func TestPerSessionCounterNotPersisted(t *testing.T) {
	engine, _, counters := newTestEngine("2026-08-31")

	require.NoError(t, engine.Commit(FeatureCoachMessage))
	assert.Empty(t, counters.counts)
}

func TestPremiumIsUnlimited(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	for i := 0; i < 10; i++ {
		decision := engine.Check(FeatureSelfieAnalysis, TierPremium)
		require.True(t, decision.Allowed)
		assert.Equal(t, Unlimited, decision.Remaining)
		require.NoError(t, engine.Commit(FeatureSelfieAnalysis))
	}

	decision := engine.Check(FeatureCoachMessage, TierPremium)
	assert.True(t, decision.Allowed)
	assert.Equal(t, Unlimited, decision.Remaining)
}

func TestCountersAdvanceRegardlessOfTier(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	// Uses committed while premium still count against the free cap after a
	// downgrade.
	require.True(t, engine.Check(FeatureSelfieAnalysis, TierPremium).Allowed)
	require.NoError(t, engine.Commit(FeatureSelfieAnalysis))

	decision := engine.Check(FeatureSelfieAnalysis, TierFree)
	assert.False(t, decision.Allowed)
}

func TestSelectionQuota(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	items := []string{"White T-Shirt", "Blue Jeans", "Denim Jacket", "White Sneakers"}
	for _, item := range items {
		decision := engine.Select(FeatureOutfitItem, TierFree, item)
		require.True(t, decision.Allowed, "selecting %q", item)
	}

	decision := engine.Select(FeatureOutfitItem, TierFree, "Black Hoodie")
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, decision.Reason)

	// Releasing one frees a slot.
	engine.Release(FeatureOutfitItem, "Blue Jeans")
	decision = engine.Select(FeatureOutfitItem, TierFree, "Black Hoodie")
	assert.True(t, decision.Allowed)
}

func TestSelectIsIdempotentPerItem(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	engine.Select(FeatureOutfitItem, TierFree, "White T-Shirt")
	engine.Select(FeatureOutfitItem, TierFree, "White T-Shirt")

	assert.Equal(t, []string{"White T-Shirt"}, engine.Selected(FeatureOutfitItem))
	assert.Equal(t, 3, engine.Remaining(FeatureOutfitItem, TierFree))
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	engine.Release(FeatureOutfitItem, "never selected")
	engine.Release(FeatureOutfitItem, "never selected")

	assert.Empty(t, engine.Selected(FeatureOutfitItem))
	assert.Equal(t, 4, engine.Remaining(FeatureOutfitItem, TierFree))
}

func TestIndexWindowUnlock(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	assert.True(t, engine.Unlocked(FeaturePlanDay, TierFree, 0))
	assert.True(t, engine.Unlocked(FeaturePlanDay, TierFree, 1))
	assert.False(t, engine.Unlocked(FeaturePlanDay, TierFree, 2))
	assert.False(t, engine.Unlocked(FeaturePlanDay, TierFree, 6))

	for i := 0; i < 7; i++ {
		assert.True(t, engine.Unlocked(FeaturePlanDay, TierPremium, i))
	}
}

func TestLimit(t *testing.T) {
	engine, _, _ := newTestEngine("2026-08-31")

	assert.Equal(t, 1, engine.Limit(FeatureSelfieAnalysis, TierFree))
	assert.Equal(t, 3, engine.Limit(FeatureCoachMessage, TierFree))
	assert.Equal(t, 4, engine.Limit(FeatureOutfitItem, TierFree))
	assert.Equal(t, 2, engine.Limit(FeaturePlanDay, TierFree))
	assert.Equal(t, Unlimited, engine.Limit(FeatureSelfieAnalysis, TierPremium))
}

func TestCounterReadErrorTreatedAsZero(t *testing.T) {
	engine, _, counters := newTestEngine("2026-08-31")
	counters.err = errors.New("db locked")

	decision := engine.Check(FeatureSelfieAnalysis, TierFree)
	assert.True(t, decision.Allowed)
}
