package reflex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
)

// EncodeTrigger serializes a Trigger to the opaque bytes stored on
// core.Reflex.TriggerConfig.
func EncodeTrigger(t Trigger) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTrigger deserializes a stored TriggerConfig back into a Trigger.
func DecodeTrigger(raw []byte) (Trigger, error) {
	var t Trigger
	if len(raw) == 0 {
		return t, fmt.Errorf("reflex: empty trigger config")
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, err
	}
	return t, nil
}

// builtinReflex describes one of the initializeBuiltins/
// initializeLayer1Builtins fixtures (spec §4.6 Initialization API).
type builtinReflex struct {
	name        string
	behaviorTag string
	layer       core.TriggerLayer
	trigger     Trigger
}

var layer0Builtins = []builtinReflex{
	{
		name:        "keepalive_heartbeat",
		behaviorTag: "keepalive",
		layer:       core.LayerZero,
		trigger:     Trigger{Kind: TriggerTimer, IntervalMs: 0},
	},
	{
		name:        "phatic_micro_reaction",
		behaviorTag: "reaction",
		layer:       core.LayerZero,
		trigger:     Trigger{Kind: TriggerEventTypeTagIntersection, EventType: "message.new", MinCommonTags: 1},
	},
	{
		name:        "relationship_decay_alert",
		behaviorTag: "alert",
		layer:       core.LayerZero,
		trigger:     Trigger{Kind: TriggerEventType, EventType: "relationship.layer_changed", Condition: "downgrade"},
	},
	{
		name:        "collect_poll_responses",
		behaviorTag: "collection",
		layer:       core.LayerZero,
		trigger:     Trigger{Kind: TriggerEventType, EventType: "poll.closing_soon"},
	},
	{
		name:        "track_thread_progress",
		behaviorTag: "tracking",
		layer:       core.LayerZero,
		trigger:     Trigger{Kind: TriggerEventType, EventType: "thread.contribution_added"},
	},
	{
		name:        "audit_behavior_log",
		behaviorTag: "audit",
		layer:       core.LayerZero,
		trigger:     Trigger{Kind: TriggerAnyReflexExecution},
	},
}

var layer1Builtins = []builtinReflex{
	{
		name:        "route_pearl_by_interest",
		behaviorTag: "routing",
		layer:       core.LayerOne,
		trigger:     Trigger{Kind: TriggerEventTypeTagIntersection, EventType: "heartbeat.received", MinCommonTags: 1},
	},
	{
		name:        "groom_request",
		behaviorTag: "social",
		layer:       core.LayerOne,
		trigger:     Trigger{Kind: TriggerEventType, EventType: "relationship.layer_changed", Condition: "downgrade"},
	},
	{
		name:        "briefing_request",
		behaviorTag: "briefing",
		layer:       core.LayerOne,
		trigger:     Trigger{Kind: TriggerTimer, IntervalMs: 0},
	},
	{
		name:        "llm_request",
		behaviorTag: "cognitive",
		layer:       core.LayerOne,
		trigger:     Trigger{Kind: TriggerMultiHeartbeat},
	},
}

// InitializeBuiltins upserts the six Layer-0 built-in reflexes for owner,
// keyed by (owner, name) and idempotent (spec §4.6 Initialization API).
func (e *Engine) InitializeBuiltins(ctx context.Context, owner string) error {
	return e.upsertBuiltins(ctx, owner, layer0Builtins)
}

// InitializeLayer1Builtins upserts the four Layer-1 built-in reflexes.
func (e *Engine) InitializeLayer1Builtins(ctx context.Context, owner string) error {
	return e.upsertBuiltins(ctx, owner, layer1Builtins)
}

func (e *Engine) upsertBuiltins(ctx context.Context, owner string, set []builtinReflex) error {
	now := e.clock.Now()
	for _, b := range set {
		cfg, err := EncodeTrigger(b.trigger)
		if err != nil {
			return err
		}
		existing, err := e.reflexes.GetByOwnerAndName(ctx, owner, b.name)
		if err == nil {
			existing.BehaviorTag = b.behaviorTag
			existing.TriggerLayer = b.layer
			existing.TriggerConfig = cfg
			existing.UpdatedAt = now
			if err := e.reflexes.Update(ctx, existing); err != nil {
				return err
			}
			continue
		}
		r := &core.Reflex{
			ID:            fmt.Sprintf("%s-%s", owner, b.name),
			Owner:         owner,
			Name:          b.name,
			BehaviorTag:   b.behaviorTag,
			TriggerLayer:  b.layer,
			TriggerConfig: cfg,
			Enabled:       true,
			Confidence:    1.0,
			Source:        core.SourceBuiltin,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := e.reflexes.Create(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) registerBuiltinActions() {
	e.actions["keepalive_heartbeat"] = actionKeepaliveHeartbeat
	e.actions["phatic_micro_reaction"] = actionPhaticMicroReaction
	e.actions["relationship_decay_alert"] = actionRelationshipDecayAlert
	e.actions["collect_poll_responses"] = actionCollectPollResponses
	e.actions["track_thread_progress"] = actionTrackThreadProgress
	e.actions["audit_behavior_log"] = actionAuditBehaviorLog
}

func actionKeepaliveHeartbeat(ctx context.Context, e *Engine, r *core.Reflex, ev Event) (core.ExecutionResult, map[string]interface{}, error) {
	e.bus.Emit("heartbeat.broadcast_requested", r.Owner, map[string]interface{}{"ownerId": r.Owner})
	return core.ResultExecuted, nil, nil
}

func actionPhaticMicroReaction(ctx context.Context, e *Engine, r *core.Reflex, ev Event) (core.ExecutionResult, map[string]interface{}, error) {
	messageID, _ := ev.Data["messageId"].(string)
	e.bus.Emit("reaction.added", r.Owner, map[string]interface{}{
		"messageId": messageID, "emoji": "👍", "byClawId": r.Owner,
	})
	return core.ResultExecuted, map[string]interface{}{"emoji": "👍", "messageId": messageID}, nil
}

func actionRelationshipDecayAlert(ctx context.Context, e *Engine, r *core.Reflex, ev Event) (core.ExecutionResult, map[string]interface{}, error) {
	e.logger.Printf("reflex: relationship downgrade alert for %s: %v -> %v", r.Owner, ev.Data["oldLayer"], ev.Data["newLayer"])
	return core.ResultExecuted, map[string]interface{}{
		"oldLayer": ev.Data["oldLayer"], "newLayer": ev.Data["newLayer"], "toClaw": ev.Data["toClaw"],
	}, nil
}

func actionCollectPollResponses(ctx context.Context, e *Engine, r *core.Reflex, ev Event) (core.ExecutionResult, map[string]interface{}, error) {
	pollID, _ := ev.Data["pollId"].(string)
	closesAt := ev.Data["closesAt"]
	e.logger.Printf("reflex: collecting poll responses for %s (poll %s, closes %v)", r.Owner, pollID, closesAt)
	return core.ResultExecuted, map[string]interface{}{"pollId": pollID, "closesAt": closesAt}, nil
}

// actionTrackThreadProgress is a log-only no-op: the source leaves
// statistics to the briefing component (Design Notes Open Question
// resolution), so this action never mutates state beyond the audit row.
func actionTrackThreadProgress(ctx context.Context, e *Engine, r *core.Reflex, ev Event) (core.ExecutionResult, map[string]interface{}, error) {
	return core.ResultExecuted, map[string]interface{}{"threadId": ev.Data["threadId"]}, nil
}

// actionAuditBehaviorLog is fulfilled by the logging of every other
// execution; it performs no additional action itself.
func actionAuditBehaviorLog(ctx context.Context, e *Engine, r *core.Reflex, ev Event) (core.ExecutionResult, map[string]interface{}, error) {
	return core.ResultExecuted, nil, nil
}
