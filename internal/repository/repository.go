// Package repository defines the storage façade every service programs
// against (spec §6.3), with interchangeable backends: an in-memory
// reference implementation (repository/memory), a SQLite-backed
// implementation (repository/sqlite), and a hosted-Postgres implementation
// over Supabase (repository/supabase).
package repository

import (
	"context"
	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
)

// Claws stores Claw identities.
type Claws interface {
	Create(ctx context.Context, c *core.Claw) error
	Get(ctx context.Context, id string) (*core.Claw, error)
	UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error
	List(ctx context.Context) ([]*core.Claw, error)
}

// Friendships stores Friendship edges.
type Friendships interface {
	Create(ctx context.Context, f *core.Friendship) error
	Get(ctx context.Context, id string) (*core.Friendship, error)
	GetByPair(ctx context.Context, a, b string) (*core.Friendship, error)
	UpdateStatus(ctx context.Context, id string, status core.FriendshipStatus) error
	ListByClaw(ctx context.Context, clawID string, status core.FriendshipStatus) ([]*core.Friendship, error)
}

// RelationshipStrengths stores the directed per-pair strength scalar.
type RelationshipStrengths interface {
	Get(ctx context.Context, from, to string) (*core.RelationshipStrength, error)
	Upsert(ctx context.Context, r *core.RelationshipStrength) error
	ListFrom(ctx context.Context, from string) ([]*core.RelationshipStrength, error)
}

// TrustScores stores the per-pair, per-domain trust five-tuple.
type TrustScores interface {
	Get(ctx context.Context, from, to, domain string) (*core.TrustScore, error)
	Upsert(ctx context.Context, t *core.TrustScore) error
	ListFrom(ctx context.Context, from string) ([]*core.TrustScore, error)
	ListTo(ctx context.Context, to string) ([]*core.TrustScore, error)
	ListAll(ctx context.Context) ([]*core.TrustScore, error)
}

// Pearls stores pearl artifacts and their endorsements.
type Pearls interface {
	Create(ctx context.Context, p *core.Pearl) error
	Get(ctx context.Context, id string) (*core.Pearl, error)
	Update(ctx context.Context, p *core.Pearl) error
	ListByOwner(ctx context.Context, owner string) ([]*core.Pearl, error)
	ListByDomainTag(ctx context.Context, tag string) ([]*core.Pearl, error)

	AddEndorsement(ctx context.Context, e *core.Endorsement) error
	GetEndorsement(ctx context.Context, pearlID, endorser string) (*core.Endorsement, error)
	ListEndorsements(ctx context.Context, pearlID string) ([]*core.Endorsement, error)

	// CountSharedSince counts pearls routed from `from` to `to` whose share
	// time is at or after sinceUnixMs, for the frequency cap (spec §4.4).
	CountSharedSince(ctx context.Context, from, to string, sinceUnixMs int64) (int, error)
	RecordShare(ctx context.Context, from, to, pearlID string, atUnixMs int64) error

	// HasSharedWith reports whether pearlID has ever been routed to friend,
	// for excluding already-shared pearls from the routing candidate set
	// (spec §4.4 step 1).
	HasSharedWith(ctx context.Context, pearlID, friend string) (bool, error)
}

// Messages stores messages and per-recipient inbox entries.
type Messages interface {
	Create(ctx context.Context, m *core.Message) error
	Get(ctx context.Context, id string) (*core.Message, error)
	Update(ctx context.Context, m *core.Message) error
	Delete(ctx context.Context, id string) error
	ListByThread(ctx context.Context, threadID string) ([]*core.Message, error)

	// FanOut atomically inserts the message and one inbox entry per
	// recipient, assigning each its next per-recipient sequence number
	// (spec §4.5). It must be all-or-nothing.
	FanOut(ctx context.Context, m *core.Message, recipients []string) ([]*core.InboxEntry, error)

	NextSeq(ctx context.Context, recipient string) (int64, error)
	ListInbox(ctx context.Context, recipient string, sinceSeq int64, limit int) ([]*core.InboxEntry, error)
	MarkRead(ctx context.Context, inboxEntryID string) error

	// ListRecipients returns every recipient that FanOut delivered messageID
	// to, for emitting per-recipient events on edit/delete (spec §4.5).
	ListRecipients(ctx context.Context, messageID string) ([]string, error)
}

// Reflexes stores reflex rules and their execution audit log.
type Reflexes interface {
	Create(ctx context.Context, r *core.Reflex) error
	Get(ctx context.Context, id string) (*core.Reflex, error)
	GetByOwnerAndName(ctx context.Context, owner, name string) (*core.Reflex, error)
	Update(ctx context.Context, r *core.Reflex) error
	ListByOwner(ctx context.Context, owner string) ([]*core.Reflex, error)
	ListEnabledByLayer(ctx context.Context, layer core.TriggerLayer) ([]*core.Reflex, error)

	RecordExecution(ctx context.Context, e *core.ReflexExecution) error
	UpdateExecutionResult(ctx context.Context, executionID string, result core.ExecutionResult) error
	ListExecutions(ctx context.Context, owner string, limit int) ([]*core.ReflexExecution, error)
	ListExecutionsByBatch(ctx context.Context, batchID string) ([]*core.ReflexExecution, error)

	// CountExecutionsSince counts owner's executions with result executed
	// recorded at or after sinceUnixMs. The reflex engine's hourly hard
	// constraint keeps its own in-memory counter and does not call it.
	CountExecutionsSince(ctx context.Context, owner string, sinceUnixMs int64) (int, error)
}

// Heartbeats stores heartbeat broadcasts and the derived friend models.
type Heartbeats interface {
	Record(ctx context.Context, h *core.Heartbeat) error
	GetFriendModel(ctx context.Context, owner, friend string) (*core.FriendModel, error)
	UpsertFriendModel(ctx context.Context, m *core.FriendModel) error
}

// Threads stores collaborative thread workspaces.
type Threads interface {
	Create(ctx context.Context, t *core.Thread) error
	Get(ctx context.Context, id string) (*core.Thread, error)
	Update(ctx context.Context, t *core.Thread) error
	ListByParticipant(ctx context.Context, clawID string) ([]*core.Thread, error)
}

// Repository aggregates every storage interface a service may need. Each
// backend package exposes a constructor returning a Repository.
type Repository interface {
	Claws() Claws
	Friendships() Friendships
	RelationshipStrengths() RelationshipStrengths
	TrustScores() TrustScores
	Pearls() Pearls
	Messages() Messages
	Reflexes() Reflexes
	Heartbeats() Heartbeats
	Threads() Threads
	Close() error
}
