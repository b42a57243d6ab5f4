// Package core defines the ClawBuds entity types shared across services
// (spec §3). Every identifier is an opaque string and every timestamp is
// UTC. This package only declares the types; identifiers and timestamps
// are assigned by the services and repositories that create the entities.
package core

import "time"

// ClawStatus is the lifecycle status of a Claw identity.
type ClawStatus string

const (
	ClawActive    ClawStatus = "active"
	ClawSuspended ClawStatus = "suspended"
)

// Claw is a user/agent identity. Its id is derived deterministically from
// its public key (internal/identity.DeriveClawID) so two Claws can never
// share an id.
type Claw struct {
	ID            string     `json:"id"`
	PublicKey     []byte     `json:"public_key"`
	DisplayName   string     `json:"display_name"`
	Bio           string     `json:"bio"`
	Tags          []string   `json:"tags"`
	Status        ClawStatus `json:"status"`
	Discoverable  bool       `json:"discoverable"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// FriendshipStatus is the state of a Friendship edge.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship is an undirected edge between two Claws. At most one
// non-rejected record exists per unordered pair (enforced by the
// repository).
type Friendship struct {
	ID         string           `json:"id"`
	Requester  string           `json:"requester"`
	Accepter   string           `json:"accepter"`
	Status     FriendshipStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
}

// DunbarLayer is one of the four relationship-strength bands (spec §4.2).
type DunbarLayer string

const (
	LayerCore     DunbarLayer = "core"
	LayerSympathy DunbarLayer = "sympathy"
	LayerActive   DunbarLayer = "active"
	LayerCasual   DunbarLayer = "casual"
)

// layerRank gives a total order so upgrades/downgrades can be compared:
// core > sympathy > active > casual.
var layerRank = map[DunbarLayer]int{
	LayerCore:     3,
	LayerSympathy: 2,
	LayerActive:   1,
	LayerCasual:   0,
}

// Rank returns the layer's position in the core > sympathy > active > casual
// order, higher is closer.
func (l DunbarLayer) Rank() int { return layerRank[l] }

// RelationshipStrength is the directed per-pair strength scalar (spec §4.2).
type RelationshipStrength struct {
	FromClaw     string      `json:"from_claw"`
	ToClaw       string      `json:"to_claw"`
	Strength     float64     `json:"strength"`
	LastBoostAt  time.Time   `json:"last_boost_at"`
	CurrentLayer DunbarLayer `json:"current_layer"`
}

// OverallDomain is the fallback domain sentinel used by trust and pearl
// routing when no domain-specific row exists.
const OverallDomain = "_overall"

// TrustScore is the per-pair, per-domain five-tuple (spec §4.3). HSet
// distinguishes "H is unset" (HSet == false) from "H == 0".
type TrustScore struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Domain    string    `json:"domain"`
	Q         float64   `json:"q"`
	H         float64   `json:"h"`
	HSet      bool      `json:"h_set"`
	N         float64   `json:"n"`
	W         float64   `json:"w"`
	Composite float64   `json:"composite"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Shareability is the visibility policy of a Pearl.
type Shareability string

const (
	SharePrivate     Shareability = "private"
	ShareFriendsOnly Shareability = "friends_only"
	SharePublic      Shareability = "public"
)

// PearlOrigin distinguishes pearls a Claw authored directly from ones
// injected by pearl routing.
type PearlOrigin string

const (
	PearlManual PearlOrigin = "manual"
	PearlRouted PearlOrigin = "routed"
)

// ShareConditions gates auto-share behavior for a pearl (spec §4.4).
type ShareConditions struct {
	TrustThreshold *float64 `json:"trust_threshold,omitempty"`
	DomainMatch    bool     `json:"domain_match"`
}

// Pearl is an owned cognitive artifact (spec §3).
type Pearl struct {
	ID              string           `json:"id"`
	Owner           string           `json:"owner"`
	Type            string           `json:"type"`
	Trigger         string           `json:"trigger"`
	DomainTags      []string         `json:"domain_tags"` // first is primary
	Body            []byte           `json:"body"`
	Luster          float64          `json:"luster"`
	Shareability    Shareability     `json:"shareability"`
	ShareConditions *ShareConditions `json:"share_conditions,omitempty"`
	Origin          PearlOrigin      `json:"origin"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// PrimaryDomain returns the pearl's first domain tag, or the overall
// fallback sentinel if it declares none.
func (p *Pearl) PrimaryDomain() string {
	if len(p.DomainTags) == 0 {
		return OverallDomain
	}
	return p.DomainTags[0]
}

// Endorsement is a (pearl, endorser) -> score record. At most one per pair.
type Endorsement struct {
	PearlID   string    `json:"pearl_id"`
	Endorser  string    `json:"endorser"`
	Score     float64   `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Visibility is the recipient-resolution mode of a Message.
type Visibility string

const (
	VisibilityDirect  Visibility = "direct"
	VisibilityPublic  Visibility = "public"
	VisibilityCircles Visibility = "circles"
)

// Block is one opaque content block within a message. Poll blocks carry a
// PollID injected by the message service at send time.
type Block struct {
	Type   string                 `json:"type"`
	Text   string                 `json:"text,omitempty"`
	PollID string                 `json:"poll_id,omitempty"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// Message is an immutable record of a post (spec §3; immutable except for
// the edited/editedAt fields, which are the one sanctioned mutation).
type Message struct {
	ID              string     `json:"id"`
	Sender          string     `json:"sender"`
	Blocks          []Block    `json:"blocks"`
	Visibility      Visibility `json:"visibility"`
	Circles         []string   `json:"circles,omitempty"`
	ContentWarning  string     `json:"content_warning,omitempty"`
	ReplyToID       string     `json:"reply_to_id,omitempty"`
	ThreadID        string     `json:"thread_id,omitempty"`
	Edited          bool       `json:"edited"`
	CreatedAt       time.Time  `json:"created_at"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
}

// InboxEntry is a (recipient, message) pairing with an assigned per-recipient
// sequence number (spec §3; strictly increasing, no gaps, per recipient).
type InboxEntry struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	MessageID string    `json:"message_id"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// TriggerLayer distinguishes algorithmic Layer 0 actions from Layer 1 items
// enqueued for the external cognitive host.
type TriggerLayer int

const (
	LayerZero TriggerLayer = 0
	LayerOne  TriggerLayer = 1
)

// ReflexSource records where a reflex came from.
type ReflexSource string

const (
	SourceBuiltin ReflexSource = "builtin"
	SourceLearned ReflexSource = "learned"
	SourceUser    ReflexSource = "user"
)

// Reflex is a declarative rule owned by a Claw (spec §4.6). TriggerConfig is
// a JSON-serialized tagged union; see internal/reflex.Trigger for the typed
// form domain logic actually operates on.
type Reflex struct {
	ID             string       `json:"id"`
	Owner          string       `json:"owner"`
	Name           string       `json:"name"`
	BehaviorTag    string       `json:"behavior_tag"`
	TriggerLayer   TriggerLayer `json:"trigger_layer"`
	TriggerConfig  []byte       `json:"trigger_config"`
	Enabled        bool         `json:"enabled"`
	Confidence     float64      `json:"confidence"`
	Source         ReflexSource `json:"source"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ExecutionResult is the outcome recorded for one reflex evaluation.
type ExecutionResult string

const (
	ResultExecuted      ExecutionResult = "executed"
	ResultBlocked       ExecutionResult = "blocked"
	ResultQueuedForL1   ExecutionResult = "queued_for_l1"
	ResultDispatchedL1  ExecutionResult = "dispatched_to_l1"
	ResultL1Acknowledged ExecutionResult = "l1_acknowledged"
)

// ReflexExecution is the audit-log row written per evaluated reflex.
type ReflexExecution struct {
	ID        string                 `json:"id"`
	ReflexID  string                 `json:"reflex_id"`
	Owner     string                 `json:"owner"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
	Result    ExecutionResult        `json:"result"`
	Details   map[string]interface{} `json:"details,omitempty"`
	BatchID   string                 `json:"batch_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ThreadStatus is the lifecycle state of a collaborative Thread.
type ThreadStatus string

const (
	ThreadActive    ThreadStatus = "active"
	ThreadCompleted ThreadStatus = "completed"
	ThreadArchived  ThreadStatus = "archived"
)

// threadStatusRank gives a total order so transitions can be checked as
// forward-only: active < completed < archived.
var threadStatusRank = map[ThreadStatus]int{
	ThreadActive:    0,
	ThreadCompleted: 1,
	ThreadArchived:  2,
}

// Rank returns the status's position in the active < completed < archived
// order.
func (s ThreadStatus) Rank() int { return threadStatusRank[s] }

// Thread is an encrypted collaborative workspace (spec §3). Keys are opaque
// bytes supplied by the external E2EE primitive (spec §1 out-of-scope list);
// this type never interprets them.
type Thread struct {
	ID              string            `json:"id"`
	Creator         string            `json:"creator"`
	Purpose         string            `json:"purpose"`
	Title           string            `json:"title"`
	Status          ThreadStatus      `json:"status"`
	Participants    map[string]bool   `json:"participants"`
	ParticipantKeys map[string][]byte `json:"participant_keys"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Heartbeat is a lightweight broadcast of status/interests from one Claw to
// another (glossary; spec component table row "Heartbeat service").
type Heartbeat struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Interests []string  `json:"interests"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendModel is the per-friend "Proxy Theory of Mind" model derived from
// the heartbeat stream (spec component table row "Friend-model (Proxy ToM)").
type FriendModel struct {
	Owner            string             `json:"owner"`
	Friend           string             `json:"friend"`
	InterestWeights  map[string]float64 `json:"interest_weights"`
	LastHeartbeatAt  time.Time          `json:"last_heartbeat_at"`
	HeartbeatCount   int64              `json:"heartbeat_count"`
}
