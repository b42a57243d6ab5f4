package pearl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
	"github.com/chitinlabs/clawbuds-sub000/internal/trust"
)

func newHarness() (*Service, *memory.Repository) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.New()
	trustSvc := trust.New(repo.TrustScores(), fake)
	bus := events.New(nil)
	return New(repo.Pearls(), trustSvc, bus, fake), repo
}

func TestCreateSetsBaselineLuster(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	p := &core.Pearl{ID: "p1", Owner: "a", DomainTags: []string{"coding"}, Shareability: core.ShareFriendsOnly}
	require.NoError(t, svc.Create(ctx, p))
	assert.Equal(t, 0.5, p.Luster)
	assert.Equal(t, core.PearlManual, p.Origin)
}

func TestSelfEndorseRejected(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	p := &core.Pearl{ID: "p1", Owner: "a", Shareability: core.ShareFriendsOnly}
	require.NoError(t, svc.Create(ctx, p))

	err := svc.Endorse(ctx, "p1", "a", 0.9, "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.SelfEndorse))
}

func TestEndorseRecomputesLuster(t *testing.T) {
	svc, repo := newHarness()
	ctx := context.Background()

	p := &core.Pearl{ID: "p1", Owner: "a", Shareability: core.ShareFriendsOnly}
	require.NoError(t, svc.Create(ctx, p))
	require.NoError(t, svc.Endorse(ctx, "p1", "b", 1.0, "great"))

	got, err := repo.Pearls().Get(ctx, "p1")
	require.NoError(t, err)
	// baseline vote 0.5 at weight 1, new vote 1.0 at weight = trust composite (default 0.5)
	expected := (0.5*1.0 + 1.0*0.5) / (1.0 + 0.5)
	assert.InDelta(t, expected, got.Luster, 1e-9)
}

func TestUnderFrequencyCap(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	p := &core.Pearl{ID: "p1", Owner: "a", Shareability: core.ShareFriendsOnly}
	require.NoError(t, svc.Create(ctx, p))

	for i := 0; i < FrequencyCapMax; i++ {
		ok, err := svc.UnderFrequencyCap(ctx, "a", "b")
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, svc.Share(ctx, "p1", "a", "b", nil, nil))
	}

	ok, err := svc.UnderFrequencyCap(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShareRejectsPrivatePearl(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	p := &core.Pearl{ID: "p1", Owner: "a", Shareability: core.SharePrivate}
	require.NoError(t, svc.Create(ctx, p))

	err := svc.Share(ctx, "p1", "a", "b", nil, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Private))
}

func TestBuildRoutingContextTagPrefilter(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	p := &core.Pearl{ID: "p1", Owner: "a", DomainTags: []string{"coding"}, Shareability: core.ShareFriendsOnly}
	require.NoError(t, svc.Create(ctx, p))

	rc, err := svc.BuildRoutingContext(ctx, "a", "b", []string{"cooking"})
	require.NoError(t, err)
	assert.Nil(t, rc)

	rc, err = svc.BuildRoutingContext(ctx, "a", "b", []string{"coding"})
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.Equal(t, "p1", rc.PearlID)
	assert.Equal(t, "coding", rc.Domain)
}

func TestBuildRoutingContextExcludesAlreadySharedPearl(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	p := &core.Pearl{ID: "p1", Owner: "a", DomainTags: []string{"coding"}, Shareability: core.ShareFriendsOnly}
	require.NoError(t, svc.Create(ctx, p))
	require.NoError(t, svc.Share(ctx, "p1", "a", "b", nil, nil))

	rc, err := svc.BuildRoutingContext(ctx, "a", "b", []string{"coding"})
	require.NoError(t, err)
	assert.Nil(t, rc)

	// not yet shared with a different friend, so it remains a candidate there.
	rc, err = svc.BuildRoutingContext(ctx, "a", "c", []string{"coding"})
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.Equal(t, "p1", rc.PearlID)
}
