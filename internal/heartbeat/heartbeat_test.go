package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/pearl"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
	"github.com/chitinlabs/clawbuds-sub000/internal/trust"
)

func newHarness() *Service {
	repo := memory.New()
	bus := events.New(nil)
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	trustSvc := trust.New(repo.TrustScores(), fake)
	pearlSvc := pearl.New(repo.Pearls(), trustSvc, bus, fake)
	return New(repo.Heartbeats(), pearlSvc, bus, fake)
}

func TestSendRejectsSelfHeartbeat(t *testing.T) {
	svc := newHarness()
	_, err := svc.Send(context.Background(), "a", "a", []string{"coding"}, "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ValidationError))
}

func TestSendBuildsAndStrengthensFriendModel(t *testing.T) {
	svc := newHarness()
	ctx := context.Background()

	_, err := svc.Send(ctx, "a", "b", []string{"coding"}, "active")
	require.NoError(t, err)

	model, err := svc.FriendModel(ctx, "b", "a")
	require.NoError(t, err)
	assert.InDelta(t, interestBoost, model.InterestWeights["coding"], 1e-9)
	assert.Equal(t, int64(1), model.HeartbeatCount)

	_, err = svc.Send(ctx, "a", "b", []string{"coding"}, "active")
	require.NoError(t, err)
	model, err = svc.FriendModel(ctx, "b", "a")
	require.NoError(t, err)
	assert.Greater(t, model.InterestWeights["coding"], interestBoost)
	assert.Equal(t, int64(2), model.HeartbeatCount)
}

func TestSendDecaysInterestsNoLongerDeclared(t *testing.T) {
	svc := newHarness()
	ctx := context.Background()

	_, err := svc.Send(ctx, "a", "b", []string{"coding", "music"}, "")
	require.NoError(t, err)
	firstMusic := interestBoost

	_, err = svc.Send(ctx, "a", "b", []string{"coding"}, "")
	require.NoError(t, err)

	model, err := svc.FriendModel(ctx, "b", "a")
	require.NoError(t, err)
	assert.Less(t, model.InterestWeights["music"], firstMusic)
}

func TestFriendModelDefaultsWhenUnknown(t *testing.T) {
	svc := newHarness()
	model, err := svc.FriendModel(context.Background(), "b", "nobody")
	require.NoError(t, err)
	assert.Empty(t, model.InterestWeights)
}
