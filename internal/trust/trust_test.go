package trust

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
)

func newService() (*Service, *clock.Fake) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.New()
	return New(repo.TrustScores(), fake), fake
}

func TestCompositeHUnsetRenormalizes(t *testing.T) {
	withH := Composite(0.8, 0.6, true, 0.4, 0.2)
	withoutH := Composite(0.8, 0, false, 0.4, 0.2)

	assert.InDelta(t, WQ*0.8+WH*0.6+WN*0.4+WW*0.2, withH, 1e-9)
	assert.InDelta(t, (WQ*0.8+WN*0.4+WW*0.2)/(WQ+WN+WW), withoutH, 1e-9)
}

func TestGetDefaultsNewPair(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	row, err := svc.Get(ctx, "a", "b", core.OverallDomain)
	require.NoError(t, err)
	assert.Equal(t, 0.5, row.Q)
	assert.Equal(t, 0.5, row.N)
	assert.Equal(t, 0.0, row.W)
	assert.False(t, row.HSet)
	assert.Equal(t, 0.5, row.Composite)
}

func TestApplySignalUpdatesQOnBothDomainAndOverall(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.ApplySignal(ctx, "a", "b", "coding", SignalPearlEndorsed))

	domainRow, err := svc.Get(ctx, "a", "b", "coding")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, domainRow.Q, 1e-9)

	overallRow, err := svc.Get(ctx, "a", "b", core.OverallDomain)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, overallRow.Q, 1e-9)
}

func TestSetEndorsementSwitchesToWeightedComposite(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.SetEndorsement(ctx, "a", "b", core.OverallDomain, 0.9))

	row, err := svc.Get(ctx, "a", "b", core.OverallDomain)
	require.NoError(t, err)
	assert.True(t, row.HSet)
	assert.Equal(t, 0.9, row.H)
	assert.InDelta(t, Composite(0.5, 0.9, true, 0.5, 0.0), row.Composite, 1e-9)
}

func TestApplyMonthlyDecayShrinksQNotH(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.SetEndorsement(ctx, "a", "b", core.OverallDomain, 0.9))
	require.NoError(t, svc.ApplyMonthlyDecay(ctx, 0.99))

	row, err := svc.Get(ctx, "a", "b", core.OverallDomain)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*0.99, row.Q, 1e-9)
	assert.Equal(t, 0.9, row.H)
}

func TestRecomputeWAveragesWitnesses(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.SetEndorsement(ctx, "a", "m", core.OverallDomain, 1.0))
	require.NoError(t, svc.SetEndorsement(ctx, "m", "b", core.OverallDomain, 1.0))

	require.NoError(t, svc.RecomputeW(ctx, "a", "b", core.OverallDomain, []string{"m"}))

	row, err := svc.Get(ctx, "a", "b", core.OverallDomain)
	require.NoError(t, err)
	am, err := svc.Get(ctx, "a", "m", core.OverallDomain)
	require.NoError(t, err)
	mb, err := svc.Get(ctx, "m", "b", core.OverallDomain)
	require.NoError(t, err)
	assert.InDelta(t, am.Composite*mb.Composite*WitnessDampening, row.W, 1e-9)
}
