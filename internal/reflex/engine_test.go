package reflex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/heartbeat"
	"github.com/chitinlabs/clawbuds-sub000/internal/message"
	"github.com/chitinlabs/clawbuds-sub000/internal/pearl"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
	"github.com/chitinlabs/clawbuds-sub000/internal/trust"
)

func newReflex(t *testing.T, owner, name, behaviorTag string, layer core.TriggerLayer, trig Trigger) *core.Reflex {
	t.Helper()
	raw, err := EncodeTrigger(trig)
	require.NoError(t, err)
	return &core.Reflex{
		ID: owner + "-" + name, Owner: owner, Name: name, BehaviorTag: behaviorTag,
		TriggerLayer: layer, TriggerConfig: raw, Enabled: true, Source: core.SourceBuiltin,
	}
}

func newEngine(fake *clock.Fake, maxPerHour int) (*Engine, *memory.Repository) {
	repo := memory.New()
	bus := events.New(nil)
	trustSvc := trust.New(repo.TrustScores(), fake)
	pearlSvc := pearl.New(repo.Pearls(), trustSvc, bus, fake)
	return New(repo.Reflexes(), bus, pearlSvc, fake, maxPerHour, nil), repo
}

func TestAuditBehaviorLogCannotBeDisabled(t *testing.T) {
	fake := clock.NewFake(time.Now())
	engine, repo := newEngine(fake, 20)
	ctx := context.Background()

	r := newReflex(t, "a", "audit_behavior_log", "audit", core.LayerZero, Trigger{Kind: TriggerEventType, EventType: "message.new"})
	require.NoError(t, repo.Reflexes().Create(ctx, r))

	err := engine.DisableReflex(ctx, "a", "audit_behavior_log")
	require.Error(t, err)
}

func TestLayerZeroRecordsExecutionOnMatch(t *testing.T) {
	fake := clock.NewFake(time.Now())
	engine, repo := newEngine(fake, 20)
	ctx := context.Background()

	r := newReflex(t, "a", "keepalive_heartbeat", "keepalive", core.LayerZero, Trigger{Kind: TriggerEventType, EventType: "message.new"})
	require.NoError(t, repo.Reflexes().Create(ctx, r))

	engine.bus.Emit("message.new", "b", map[string]interface{}{"recipientId": "a", "messageId": "m1"})

	execs, err := repo.Reflexes().ListExecutions(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, core.ResultExecuted, execs[0].Result)
}

func TestHourlyHardConstraintBlocksAfterLimit(t *testing.T) {
	fake := clock.NewFake(time.Now())
	engine, repo := newEngine(fake, 2)
	ctx := context.Background()

	r := newReflex(t, "a", "phatic_micro_reaction", "reaction", core.LayerZero, Trigger{Kind: TriggerEventType, EventType: "message.new"})
	require.NoError(t, repo.Reflexes().Create(ctx, r))

	for i := 0; i < 2; i++ {
		engine.bus.Emit("message.new", "b", map[string]interface{}{"recipientId": "a"})
	}
	engine.bus.Emit("message.new", "b", map[string]interface{}{"recipientId": "a"})

	execs, err := repo.Reflexes().ListExecutions(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.Equal(t, core.ResultBlocked, execs[2].Result)
}

func TestLayerOneQueuesForBatchProcessor(t *testing.T) {
	fake := clock.NewFake(time.Now())
	engine, repo := newEngine(fake, 20)
	ctx := context.Background()

	r := newReflex(t, "a", "summarize_for_briefing", "learned", core.LayerOne, Trigger{Kind: TriggerEventType, EventType: "message.new"})
	require.NoError(t, repo.Reflexes().Create(ctx, r))

	enqueuer := &fakeLayer1{}
	engine.AttachLayer1(enqueuer)

	engine.bus.Emit("message.new", "b", map[string]interface{}{"recipientId": "a"})

	require.Len(t, enqueuer.items, 1)
	assert.Equal(t, core.ResultQueuedForL1, enqueuer.items[0].Result)
}

func TestPhaticMicroReactionFiresOnRealMessageTraffic(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.New()
	bus := events.New(nil)
	trustSvc := trust.New(repo.TrustScores(), fake)
	pearlSvc := pearl.New(repo.Pearls(), trustSvc, bus, fake)
	engine := New(repo.Reflexes(), bus, pearlSvc, fake, 20, nil)
	messageSvc := message.New(repo.Messages(), repo.Friendships(), repo.Claws(), bus, fake, nil)
	ctx := context.Background()

	require.NoError(t, repo.Claws().Create(ctx, &core.Claw{ID: "a", Tags: []string{"coding"}, CreatedAt: fake.Now()}))
	require.NoError(t, repo.Claws().Create(ctx, &core.Claw{ID: "b", Tags: []string{"coding"}, CreatedAt: fake.Now()}))
	require.NoError(t, repo.Friendships().Create(ctx, &core.Friendship{ID: "a-b", Requester: "a", Accepter: "b", Status: core.FriendshipAccepted, CreatedAt: fake.Now()}))
	require.NoError(t, engine.InitializeBuiltins(ctx, "b"))

	_, _, err := messageSvc.Send(ctx, message.SendRequest{Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"b"}, Blocks: []core.Block{{Type: "text", Text: "hi"}}})
	require.NoError(t, err)

	execs, err := repo.Reflexes().ListExecutions(ctx, "b", 0)
	require.NoError(t, err)
	var reactions int
	for _, e := range execs {
		if e.ReflexID == "b-phatic_micro_reaction" {
			reactions++
			assert.Equal(t, core.ResultExecuted, e.Result)
		}
	}
	assert.Equal(t, 1, reactions)
}

func TestRoutePearlByInterestFiresOnRealHeartbeatTraffic(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.New()
	bus := events.New(nil)
	trustSvc := trust.New(repo.TrustScores(), fake)
	pearlSvc := pearl.New(repo.Pearls(), trustSvc, bus, fake)
	engine := New(repo.Reflexes(), bus, pearlSvc, fake, 20, nil)
	heartbeatSvc := heartbeat.New(repo.Heartbeats(), pearlSvc, bus, fake)
	ctx := context.Background()

	require.NoError(t, pearlSvc.Create(ctx, &core.Pearl{ID: "p1", Owner: "o", DomainTags: []string{"AI"}, Shareability: core.ShareFriendsOnly}))
	require.NoError(t, engine.InitializeLayer1Builtins(ctx, "o"))

	enqueuer := &fakeLayer1{}
	engine.AttachLayer1(enqueuer)

	_, err := heartbeatSvc.Send(ctx, "friend", "o", []string{"AI"}, "active")
	require.NoError(t, err)

	require.Len(t, enqueuer.items, 1)
	assert.Equal(t, core.ResultQueuedForL1, enqueuer.items[0].Result)
	require.NotNil(t, enqueuer.routingContexts[0])
	assert.Equal(t, "p1", enqueuer.routingContexts[0].PearlID)
}

type fakeLayer1 struct {
	items           []core.ReflexExecution
	routingContexts []*pearl.RoutingContext
}

func (f *fakeLayer1) Enqueue(ctx context.Context, item core.ReflexExecution, rc *pearl.RoutingContext) error {
	f.items = append(f.items, item)
	f.routingContexts = append(f.routingContexts, rc)
	return nil
}

func (f *fakeLayer1) IsActive() bool { return true }
