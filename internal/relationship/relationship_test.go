package relationship

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
)

func newService(t *testing.T, clk clock.Clock) *Service {
	t.Helper()
	repo := memory.New()
	bus := events.New(nil)
	return New(repo.RelationshipStrengths(), bus, clk, 7, nil)
}

func TestLayerBands(t *testing.T) {
	assert.Equal(t, "core", string(Layer(0.9)))
	assert.Equal(t, "core", string(Layer(0.75)))
	assert.Equal(t, "sympathy", string(Layer(0.6)))
	assert.Equal(t, "active", string(Layer(0.3)))
	assert.Equal(t, "casual", string(Layer(0.1)))
}

func TestOnFriendAcceptedInitializesBothDirections(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := newService(t, fake)
	ctx := context.Background()

	require.NoError(t, svc.OnFriendAccepted(ctx, "a", "b"))

	ab, err := svc.Get(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, InitialStrength, ab.Strength)

	ba, err := svc.Get(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, InitialStrength, ba.Strength)
}

func TestBoostIncreasesStrengthAndEmitsOnLayerChange(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.New()
	bus := events.New(nil)
	svc := New(repo.RelationshipStrengths(), bus, fake, 7, nil)
	ctx := context.Background()

	require.NoError(t, svc.OnFriendAccepted(ctx, "a", "b"))

	var seenEvents int
	bus.Subscribe("relationship.layer_changed", func(ev events.Event) {
		seenEvents++
	})

	// Initial strength 0.5 is already "sympathy"; repeated endorsement
	// boosts (0.08 each) eventually cross into "core" (>= 0.75).
	for i := 0; i < 5; i++ {
		_, err := svc.Boost(ctx, "a", "b", InteractionEndorsement)
		require.NoError(t, err)
	}

	r, err := svc.Get(ctx, "a", "b")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.Strength, 0.75)
	assert.Equal(t, "core", string(r.CurrentLayer))
	assert.GreaterOrEqual(t, seenEvents, 1)
}

func TestDecayReducesStrengthOverTime(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.New()
	bus := events.New(nil)
	svc := New(repo.RelationshipStrengths(), bus, fake, 7, nil)
	ctx := context.Background()

	require.NoError(t, svc.OnFriendAccepted(ctx, "a", "b"))

	fake.Advance(7 * 24 * time.Hour)
	r, err := svc.Get(ctx, "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, InitialStrength/2, r.Strength, 1e-9)
}

func TestMutualFriends(t *testing.T) {
	mutual := MutualFriends([]string{"x", "y", "z"}, []string{"y", "z", "w"})
	assert.ElementsMatch(t, []string{"y", "z"}, mutual)
}
