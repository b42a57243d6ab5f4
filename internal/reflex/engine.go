// Package reflex implements the event-subscribed rule engine: trigger
// matching, hourly hard constraints, Layer 0/1 dispatch, and the
// management API (spec §4.6), grounded on the teacher's
// internal/governance/task_gate.go mutex-guarded map shape, generalized
// from a single busy-flag to an hourly execution counter.
package reflex

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/pearl"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// Event is the canonicalized BusEvent the engine matches triggers against
// (spec §4.6).
type Event struct {
	Type  string
	ClawID string
	Time  time.Time
	Data  map[string]interface{}
}

// subscribedTopics is the fixed topic set the engine subscribes to at boot
// (spec §4.6 Subscription).
var subscribedTopics = []string{
	"message.new",
	"reaction.added",
	"heartbeat.received",
	"relationship.layer_changed",
	"friend.accepted",
	"pearl.created",
	"pearl.shared",
	"pearl.endorsed",
	"timer.tick",
	"poll.closing_soon",
	"thread.contribution_added",
}

// clawIDFields lists, in precedence order, the payload fields the engine
// checks when deriving an event's owning Claw (spec §4.6: contributor >
// direct field > recipient > owner > toClaw).
var clawIDFields = []string{"contributorId", "clawId", "recipientId", "ownerId", "toClaw"}

func deriveClawID(data map[string]interface{}) string {
	for _, field := range clawIDFields {
		if v, ok := data[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Layer1Enqueuer receives Layer-1 items from the engine. Satisfied by
// internal/layer1.Processor; nil means Layer 1 is inert (spec §4.6: "If no
// batch processor is attached, stop after the audit entry").
type Layer1Enqueuer interface {
	Enqueue(ctx context.Context, item core.ReflexExecution, routingContext *pearl.RoutingContext) error
	IsActive() bool
}

// ActionFunc implements one Layer-0 built-in action.
type ActionFunc func(ctx context.Context, e *Engine, reflex *core.Reflex, ev Event) (result core.ExecutionResult, details map[string]interface{}, err error)

// Engine evaluates reflexes against bus events.
type Engine struct {
	reflexes repository.Reflexes
	bus      *events.Bus
	pearls   *pearl.Service
	clock    clock.Clock
	logger   *log.Logger

	maxMessagesPerHour int

	mu      sync.Mutex
	hourly  map[string]int // "(owner,hourBucket)" -> count

	layer1 Layer1Enqueuer

	actions map[string]ActionFunc
}

// New constructs the reflex Engine and subscribes it to every fixed topic.
func New(reflexes repository.Reflexes, bus *events.Bus, pearls *pearl.Service, clk clock.Clock, maxMessagesPerHour int, logger *log.Logger) *Engine {
	if maxMessagesPerHour <= 0 {
		maxMessagesPerHour = 20
	}
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{
		reflexes:           reflexes,
		bus:                bus,
		pearls:             pearls,
		clock:              clk,
		logger:             logger,
		maxMessagesPerHour: maxMessagesPerHour,
		hourly:             make(map[string]int),
		actions:            make(map[string]ActionFunc),
	}
	e.registerBuiltinActions()
	for _, topic := range subscribedTopics {
		topic := topic
		bus.Subscribe(topic, func(raw events.Event) {
			e.handle(context.Background(), topic, raw)
		})
	}
	return e
}

// AttachLayer1 wires a Layer-1 batch processor after construction (Design
// Notes "Cyclic injection": constructor with optional dependency plus an
// isActive() probe).
func (e *Engine) AttachLayer1(l1 Layer1Enqueuer) {
	e.layer1 = l1
}

func (e *Engine) handle(ctx context.Context, topic string, raw events.Event) {
	ev := Event{
		Type:   topic,
		ClawID: deriveClawID(raw.Data),
		Time:   raw.Time,
		Data:   raw.Data,
	}
	if ev.ClawID == "" {
		return
	}

	reflexesL0, err := e.reflexes.ListEnabledByLayer(ctx, core.LayerZero)
	if err != nil {
		e.logger.Printf("reflex: failed to list layer-0 reflexes: %v", err)
		return
	}
	for _, r := range reflexesL0 {
		if r.Owner != ev.ClawID {
			continue
		}
		e.evaluateLayer0(ctx, r, ev)
	}

	reflexesL1, err := e.reflexes.ListEnabledByLayer(ctx, core.LayerOne)
	if err != nil {
		e.logger.Printf("reflex: failed to list layer-1 reflexes: %v", err)
		return
	}
	for _, r := range reflexesL1 {
		if r.Owner != ev.ClawID {
			continue
		}
		e.evaluateLayer1(ctx, r, ev)
	}
}

func hourBucketKey(owner string, t time.Time) string {
	return fmt.Sprintf("%s|%s", owner, t.UTC().Format("2006010215"))
}

// isRateLimited reports whether the hourly hard constraint applies to a
// behavior tag: it does not gate audit or keepalive behaviors (spec §4.6).
func isRateLimited(behaviorTag string) bool {
	return behaviorTag != "audit" && behaviorTag != "keepalive"
}

// checkAndIncrementHourly atomically checks and, if under the limit,
// increments the (owner, hourBucket) counter. Returns true if the call is
// allowed to proceed.
func (e *Engine) checkAndIncrementHourly(owner string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := hourBucketKey(owner, e.clock.Now())
	if e.hourly[key] >= e.maxMessagesPerHour {
		return false
	}
	e.hourly[key]++
	return true
}

func (e *Engine) evaluateLayer0(ctx context.Context, r *core.Reflex, ev Event) {
	trig, err := DecodeTrigger(r.TriggerConfig)
	if err != nil {
		e.logger.Printf("reflex: failed to decode trigger for %s/%s: %v", r.Owner, r.Name, err)
		return
	}
	if !trig.Matches(ev) {
		return
	}

	var result core.ExecutionResult
	var details map[string]interface{}

	if isRateLimited(r.BehaviorTag) && !e.checkAndIncrementHourly(r.Owner) {
		result = core.ResultBlocked
		details = map[string]interface{}{"reason": "hard_constraint"}
	} else {
		action, ok := e.actions[r.Name]
		if !ok {
			return
		}
		var actErr error
		result, details, actErr = action(ctx, e, r, ev)
		if actErr != nil {
			e.logger.Printf("reflex: action %s failed for %s: %v", r.Name, r.Owner, actErr)
			return
		}
	}

	e.recordExecution(ctx, r, ev, result, details, "")
}

func (e *Engine) evaluateLayer1(ctx context.Context, r *core.Reflex, ev Event) {
	trig, err := DecodeTrigger(r.TriggerConfig)
	if err != nil {
		e.logger.Printf("reflex: failed to decode trigger for %s/%s: %v", r.Owner, r.Name, err)
		return
	}
	if !trig.Matches(ev) {
		return
	}

	var routingCtx *pearl.RoutingContext

	if r.Name == "route_pearl_by_interest" {
		friend, _ := ev.Data["fromClawId"].(string)
		interests := asStringSlice(ev.Data["senderInterests"])
		rc, err := e.pearls.BuildRoutingContext(ctx, r.Owner, friend, interests)
		if err != nil {
			e.logger.Printf("reflex: routing context build failed: %v", err)
			return
		}
		if rc == nil {
			return
		}
		under, err := e.pearls.UnderFrequencyCap(ctx, r.Owner, friend)
		if err != nil {
			e.logger.Printf("reflex: frequency cap check failed: %v", err)
			return
		}
		if !under {
			return
		}
		routingCtx = rc
	}

	exec := e.recordExecution(ctx, r, ev, core.ResultQueuedForL1, nil, "")

	if e.layer1 != nil {
		if err := e.layer1.Enqueue(ctx, *exec, routingCtx); err != nil {
			e.logger.Printf("reflex: layer-1 enqueue failed: %v", err)
		}
	}
}

func (e *Engine) recordExecution(ctx context.Context, r *core.Reflex, ev Event, result core.ExecutionResult, details map[string]interface{}, batchID string) *core.ReflexExecution {
	exec := &core.ReflexExecution{
		ID:        fmt.Sprintf("%s-%d", r.ID, e.clock.Now().UnixNano()),
		ReflexID:  r.ID,
		Owner:     r.Owner,
		EventType: ev.Type,
		Payload:   ev.Data,
		Result:    result,
		Details:   details,
		BatchID:   batchID,
		CreatedAt: e.clock.Now(),
	}
	if err := e.reflexes.RecordExecution(ctx, exec); err != nil {
		e.logger.Printf("reflex: failed to write audit execution for %s: %v", r.Name, err)
	}
	// audit_behavior_log is fulfilled by this very call, not by re-matching
	// its own synthetic event — emitting here would recurse forever.
	if r.BehaviorTag != "audit" {
		e.bus.Emit(SynthesizedReflexExecutionEventType, r.Owner, map[string]interface{}{
			"reflexId": r.ID, "owner": r.Owner, "result": string(result),
		})
	}
	return exec
}

// ListReflexes returns every reflex owned by owner.
func (e *Engine) ListReflexes(ctx context.Context, owner string) ([]*core.Reflex, error) {
	return e.reflexes.ListByOwner(ctx, owner)
}

// EnableReflex enables a reflex by (owner, name).
func (e *Engine) EnableReflex(ctx context.Context, owner, name string) error {
	return e.setEnabled(ctx, owner, name, true)
}

// DisableReflex disables a reflex by (owner, name). audit_behavior_log can
// never be disabled (spec §4.6 Management API, §3 invariant).
func (e *Engine) DisableReflex(ctx context.Context, owner, name string) error {
	if name == "audit_behavior_log" {
		return errs.New(errs.Forbidden, "audit_behavior_log cannot be disabled")
	}
	return e.setEnabled(ctx, owner, name, false)
}

func (e *Engine) setEnabled(ctx context.Context, owner, name string, enabled bool) error {
	r, err := e.reflexes.GetByOwnerAndName(ctx, owner, name)
	if err != nil {
		return errs.New(errs.NotFound, "reflex not found")
	}
	r.Enabled = enabled
	r.UpdatedAt = e.clock.Now()
	return e.reflexes.Update(ctx, r)
}
