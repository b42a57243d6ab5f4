package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/layer1"
	"github.com/chitinlabs/clawbuds-sub000/internal/notifier"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
	"github.com/chitinlabs/clawbuds-sub000/internal/trust"
)

func TestRegisterAndStartStop(t *testing.T) {
	repo := memory.New()
	fake := clock.NewFake(clock.New().Now())
	trustSvc := trust.New(repo.TrustScores(), fake)
	proc := layer1.New(repo.Reflexes(), notifier.Noop{}, fake, 10, 60_000, nil)

	s := New(nil)
	require.NoError(t, s.RegisterMonthlyTrustDecay(trustSvc, 0.99))
	require.NoError(t, s.RegisterLayer1AgeTicker(proc))
	require.NoError(t, s.RegisterNightlyStalenessSweep(func(ctx context.Context) error { return nil }))

	s.Start()
	s.Stop()
}
