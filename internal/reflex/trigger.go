package reflex

// TriggerKind identifies which of the eight trigger variants a
// TriggerConfig carries (spec §4.6).
type TriggerKind string

const (
	TriggerEventType               TriggerKind = "event_type"
	TriggerTimer                   TriggerKind = "timer"
	TriggerEventTypeTagIntersection TriggerKind = "event_type_with_tag_intersection"
	TriggerThreshold                TriggerKind = "threshold"
	TriggerCounter                  TriggerKind = "counter"
	TriggerDeadline                  TriggerKind = "deadline"
	TriggerAnyReflexExecution        TriggerKind = "any_reflex_execution"
	TriggerMultiHeartbeat             TriggerKind = "multi_heartbeat"
)

// Comparator is one of the comparison operators threshold/counter triggers
// support.
type Comparator string

const (
	CompLT  Comparator = "lt"
	CompLTE Comparator = "lte"
	CompGT  Comparator = "gt"
	CompGTE Comparator = "gte"
)

// Trigger is the tagged-union trigger configuration (spec §4.6, Design
// Notes "Tagged trigger configuration"). Exactly one of the Kind-specific
// fields applies at a time; Go has no native sum type, so this mirrors the
// teacher's plain-struct-with-optional-fields convention rather than
// introducing an interface-per-variant hierarchy, since match evaluation
// only ever switches on Kind.
type Trigger struct {
	Kind TriggerKind

	EventType string // event_type, event_type_with_tag_intersection, deadline

	Condition string // event_type: "" | "downgrade"

	IntervalMs int64 // timer: optional, 0 means "any interval"

	MinCommonTags int // event_type_with_tag_intersection: default 1 if 0

	Field      string     // threshold, counter
	Comparator Comparator // threshold, counter
	Value      float64    // threshold, counter

	WithinMs int64 // deadline
}

// SynthesizedReflexExecutionEventType is the internal event type
// any_reflex_execution matches against (spec §4.6).
const SynthesizedReflexExecutionEventType = "__reflex_execution__"

var dunbarRank = map[string]int{
	"core":     3,
	"sympathy": 2,
	"active":   1,
	"casual":   0,
}

// Matches evaluates whether ev satisfies t. It is a pure function of its
// inputs, free of I/O, as required by Design Notes "keep it free of I/O".
func (t Trigger) Matches(ev Event) bool {
	switch t.Kind {
	case TriggerEventType:
		if ev.Type != t.EventType {
			return false
		}
		if t.Condition == "downgrade" {
			oldLayer, _ := ev.Data["oldLayer"].(string)
			newLayer, _ := ev.Data["newLayer"].(string)
			return dunbarRank[oldLayer] > dunbarRank[newLayer]
		}
		return true

	case TriggerTimer:
		if ev.Type != "timer.tick" {
			return false
		}
		if t.IntervalMs == 0 {
			return true
		}
		iv, ok := asInt64(ev.Data["intervalMs"])
		return ok && iv == t.IntervalMs

	case TriggerEventTypeTagIntersection:
		if ev.Type != t.EventType {
			return false
		}
		domainTags := asStringSlice(ev.Data["domainTags"])
		senderInterests := asStringSlice(ev.Data["senderInterests"])
		min := t.MinCommonTags
		if min == 0 {
			min = 1
		}
		return countIntersection(domainTags, senderInterests) >= min

	case TriggerThreshold:
		v, ok := asFloat64(ev.Data[t.Field])
		if !ok {
			return false
		}
		return compare(v, t.Comparator, t.Value)

	case TriggerCounter:
		v, ok := asInt64(ev.Data[t.Field])
		if !ok {
			return false
		}
		switch t.Comparator {
		case CompGT:
			return float64(v) > t.Value
		case CompGTE:
			return float64(v) >= t.Value
		default:
			return false
		}

	case TriggerDeadline:
		if ev.Type != t.EventType {
			return false
		}
		closesAt, ok := asInt64(ev.Data["closesAt"])
		if !ok {
			return false
		}
		now := ev.Time.UnixMilli()
		if closesAt <= now {
			return false
		}
		return closesAt-now <= t.WithinMs

	case TriggerAnyReflexExecution:
		return ev.Type == SynthesizedReflexExecutionEventType

	case TriggerMultiHeartbeat:
		// Layer-1 predicate; evaluated by the Layer-1 subsystem, not here.
		return false

	default:
		return false
	}
}

func compare(v float64, c Comparator, threshold float64) bool {
	switch c {
	case CompLT:
		return v < threshold
	case CompLTE:
		return v <= threshold
	case CompGT:
		return v > threshold
	case CompGTE:
		return v >= threshold
	default:
		return false
	}
}

func countIntersection(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	n := 0
	for _, v := range b {
		if set[v] {
			n++
		}
	}
	return n
}

func asStringSlice(v interface{}) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}
