// Package memory is the in-memory reference Repository implementation: a
// set of mutex-guarded maps with no persistence. It is the backend unit
// tests run against, in the shape of the teacher's pattern of small,
// dependency-free structs guarded by a single sync.Mutex per store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// Repository is the in-memory aggregate of every store.
type Repository struct {
	claws        *clawStore
	friendships  *friendshipStore
	strengths    *strengthStore
	trust        *trustStore
	pearls       *pearlStore
	messages     *messageStore
	reflexes     *reflexStore
	heartbeats   *heartbeatStore
	threads      *threadStore
}

// New returns an empty in-memory Repository.
func New() *Repository {
	return &Repository{
		claws:       &clawStore{byID: make(map[string]*core.Claw)},
		friendships: &friendshipStore{byID: make(map[string]*core.Friendship)},
		strengths:   &strengthStore{byPair: make(map[string]*core.RelationshipStrength)},
		trust:       &trustStore{byKey: make(map[string]*core.TrustScore)},
		pearls: &pearlStore{
			byID:         make(map[string]*core.Pearl),
			endorsements: make(map[string]map[string]*core.Endorsement),
			shares:       make(map[string][]share),
		},
		messages: &messageStore{
			byID:  make(map[string]*core.Message),
			inbox: make(map[string][]*core.InboxEntry),
			seq:   make(map[string]int64),
		},
		reflexes: &reflexStore{
			byID:       make(map[string]*core.Reflex),
			byOwnerName: make(map[string]*core.Reflex),
			executions: make(map[string][]*core.ReflexExecution),
		},
		heartbeats: &heartbeatStore{
			models: make(map[string]*core.FriendModel),
		},
		threads: &threadStore{byID: make(map[string]*core.Thread)},
	}
}

func (r *Repository) Claws() repository.Claws                               { return r.claws }
func (r *Repository) Friendships() repository.Friendships                   { return r.friendships }
func (r *Repository) RelationshipStrengths() repository.RelationshipStrengths { return r.strengths }
func (r *Repository) TrustScores() repository.TrustScores                   { return r.trust }
func (r *Repository) Pearls() repository.Pearls                             { return r.pearls }
func (r *Repository) Messages() repository.Messages                         { return r.messages }
func (r *Repository) Reflexes() repository.Reflexes                         { return r.reflexes }
func (r *Repository) Heartbeats() repository.Heartbeats                     { return r.heartbeats }
func (r *Repository) Threads() repository.Threads                           { return r.threads }
func (r *Repository) Close() error                                          { return nil }

// --- claws ---

type clawStore struct {
	mu   sync.Mutex
	byID map[string]*core.Claw
}

func (s *clawStore) Create(_ context.Context, c *core.Claw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; ok {
		return errs.New(errs.Duplicate, "claw already exists")
	}
	cp := *c
	s.byID[c.ID] = &cp
	return nil
}

func (s *clawStore) Get(_ context.Context, id string) (*core.Claw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "claw not found")
	}
	cp := *c
	return &cp, nil
}

func (s *clawStore) UpdateLastSeen(_ context.Context, id string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return errs.New(errs.NotFound, "claw not found")
	}
	c.LastSeenAt = seenAt
	return nil
}

func (s *clawStore) List(_ context.Context) ([]*core.Claw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Claw, 0, len(s.byID))
	for _, c := range s.byID {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- friendships ---

type friendshipStore struct {
	mu   sync.Mutex
	byID map[string]*core.Friendship
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *friendshipStore) Create(_ context.Context, f *core.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Status == core.FriendshipRejected {
			continue
		}
		if pairKey(existing.Requester, existing.Accepter) == pairKey(f.Requester, f.Accepter) {
			return errs.New(errs.Duplicate, "friendship already exists for this pair")
		}
	}
	cp := *f
	s.byID[f.ID] = &cp
	return nil
}

func (s *friendshipStore) Get(_ context.Context, id string) (*core.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "friendship not found")
	}
	cp := *f
	return &cp, nil
}

func (s *friendshipStore) GetByPair(_ context.Context, a, b string) (*core.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.byID {
		if pairKey(f.Requester, f.Accepter) == pairKey(a, b) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, errs.New(errs.NotFound, "friendship not found")
}

func (s *friendshipStore) UpdateStatus(_ context.Context, id string, status core.FriendshipStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok {
		return errs.New(errs.NotFound, "friendship not found")
	}
	f.Status = status
	if status == core.FriendshipAccepted {
		now := time.Now().UTC()
		f.AcceptedAt = &now
	}
	return nil
}

func (s *friendshipStore) ListByClaw(_ context.Context, clawID string, status core.FriendshipStatus) ([]*core.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Friendship
	for _, f := range s.byID {
		if f.Requester != clawID && f.Accepter != clawID {
			continue
		}
		if status != "" && f.Status != status {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- relationship strengths ---

type strengthStore struct {
	mu     sync.Mutex
	byPair map[string]*core.RelationshipStrength
}

func (s *strengthStore) Get(_ context.Context, from, to string) (*core.RelationshipStrength, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byPair[from+">"+to]
	if !ok {
		return nil, errs.New(errs.NotFound, "relationship strength not found")
	}
	cp := *r
	return &cp, nil
}

func (s *strengthStore) Upsert(_ context.Context, r *core.RelationshipStrength) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.byPair[r.FromClaw+">"+r.ToClaw] = &cp
	return nil
}

func (s *strengthStore) ListFrom(_ context.Context, from string) ([]*core.RelationshipStrength, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.RelationshipStrength
	for _, r := range s.byPair {
		if r.FromClaw == from {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToClaw < out[j].ToClaw })
	return out, nil
}

// --- trust scores ---

type trustStore struct {
	mu    sync.Mutex
	byKey map[string]*core.TrustScore
}

func trustKey(from, to, domain string) string { return from + ">" + to + "#" + domain }

func (s *trustStore) Get(_ context.Context, from, to, domain string) (*core.TrustScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byKey[trustKey(from, to, domain)]
	if !ok {
		return nil, errs.New(errs.NotFound, "trust score not found")
	}
	cp := *t
	return &cp, nil
}

func (s *trustStore) Upsert(_ context.Context, t *core.TrustScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.byKey[trustKey(t.From, t.To, t.Domain)] = &cp
	return nil
}

func (s *trustStore) ListFrom(_ context.Context, from string) ([]*core.TrustScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.TrustScore
	for _, t := range s.byKey {
		if t.From == from {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

func (s *trustStore) ListTo(_ context.Context, to string) ([]*core.TrustScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.TrustScore
	for _, t := range s.byKey {
		if t.To == to {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

func (s *trustStore) ListAll(_ context.Context) ([]*core.TrustScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.TrustScore, 0, len(s.byKey))
	for _, t := range s.byKey {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return trustKey(out[i].From, out[i].To, out[i].Domain) < trustKey(out[j].From, out[j].To, out[j].Domain) })
	return out, nil
}

// --- pearls ---

type share struct {
	pearlID  string
	atUnixMs int64
}

type pearlStore struct {
	mu           sync.Mutex
	byID         map[string]*core.Pearl
	endorsements map[string]map[string]*core.Endorsement // pearlID -> endorser -> endorsement
	shares       map[string][]share                      // "from>to" -> shares
}

func (s *pearlStore) Create(_ context.Context, p *core.Pearl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return errs.New(errs.Duplicate, "pearl already exists")
	}
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *pearlStore) Get(_ context.Context, id string) (*core.Pearl, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "pearl not found")
	}
	cp := *p
	return &cp, nil
}

func (s *pearlStore) Update(_ context.Context, p *core.Pearl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		return errs.New(errs.NotFound, "pearl not found")
	}
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *pearlStore) ListByOwner(_ context.Context, owner string) ([]*core.Pearl, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Pearl
	for _, p := range s.byID {
		if p.Owner == owner {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *pearlStore) ListByDomainTag(_ context.Context, tag string) ([]*core.Pearl, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Pearl
	for _, p := range s.byID {
		for _, t := range p.DomainTags {
			if t == tag {
				cp := *p
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *pearlStore) AddEndorsement(_ context.Context, e *core.Endorsement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.PearlID]; !ok {
		return errs.New(errs.NotFound, "pearl not found")
	}
	if s.endorsements[e.PearlID] == nil {
		s.endorsements[e.PearlID] = make(map[string]*core.Endorsement)
	}
	cp := *e
	s.endorsements[e.PearlID][e.Endorser] = &cp
	return nil
}

func (s *pearlStore) GetEndorsement(_ context.Context, pearlID, endorser string) (*core.Endorsement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.endorsements[pearlID]
	if m == nil {
		return nil, errs.New(errs.NotFound, "endorsement not found")
	}
	e, ok := m[endorser]
	if !ok {
		return nil, errs.New(errs.NotFound, "endorsement not found")
	}
	cp := *e
	return &cp, nil
}

func (s *pearlStore) ListEndorsements(_ context.Context, pearlID string) ([]*core.Endorsement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Endorsement
	for _, e := range s.endorsements[pearlID] {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endorser < out[j].Endorser })
	return out, nil
}

func (s *pearlStore) CountSharedSince(_ context.Context, from, to string, sinceUnixMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sh := range s.shares[from+">"+to] {
		if sh.atUnixMs >= sinceUnixMs {
			n++
		}
	}
	return n, nil
}

func (s *pearlStore) RecordShare(_ context.Context, from, to, pearlID string, atUnixMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := from + ">" + to
	s.shares[key] = append(s.shares[key], share{pearlID: pearlID, atUnixMs: atUnixMs})
	return nil
}

func (s *pearlStore) HasSharedWith(_ context.Context, pearlID, friend string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	suffix := ">" + friend
	for key, shares := range s.shares {
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		for _, sh := range shares {
			if sh.pearlID == pearlID {
				return true, nil
			}
		}
	}
	return false, nil
}

// --- messages ---

type messageStore struct {
	mu    sync.Mutex
	byID  map[string]*core.Message
	inbox map[string][]*core.InboxEntry // recipient -> entries, seq-ordered
	seq   map[string]int64
}

func (s *messageStore) Create(_ context.Context, m *core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; ok {
		return errs.New(errs.Duplicate, "message already exists")
	}
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *messageStore) Get(_ context.Context, id string) (*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "message not found")
	}
	cp := *m
	return &cp, nil
}

func (s *messageStore) Update(_ context.Context, m *core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; !ok {
		return errs.New(errs.NotFound, "message not found")
	}
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *messageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *messageStore) ListByThread(_ context.Context, threadID string) ([]*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Message
	for _, m := range s.byID {
		if m.ThreadID == threadID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *messageStore) FanOut(_ context.Context, m *core.Message, recipients []string) ([]*core.InboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[m.ID]; ok {
		return nil, errs.New(errs.Duplicate, "message already exists")
	}
	cp := *m
	s.byID[m.ID] = &cp

	entries := make([]*core.InboxEntry, 0, len(recipients))
	for _, rcpt := range recipients {
		s.seq[rcpt]++
		entry := &core.InboxEntry{
			ID:        m.ID + ":" + rcpt,
			Recipient: rcpt,
			MessageID: m.ID,
			Seq:       s.seq[rcpt],
			CreatedAt: m.CreatedAt,
		}
		s.inbox[rcpt] = append(s.inbox[rcpt], entry)
		ecp := *entry
		entries = append(entries, &ecp)
	}
	return entries, nil
}

func (s *messageStore) NextSeq(_ context.Context, recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq[recipient] + 1, nil
}

func (s *messageStore) ListInbox(_ context.Context, recipient string, sinceSeq int64, limit int) ([]*core.InboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.InboxEntry
	for _, e := range s.inbox[recipient] {
		if e.Seq > sinceSeq {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *messageStore) MarkRead(_ context.Context, inboxEntryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entries := range s.inbox {
		for _, e := range entries {
			if e.ID == inboxEntryID {
				e.Read = true
				return nil
			}
		}
	}
	return errs.New(errs.NotFound, "inbox entry not found")
}

func (s *messageStore) ListRecipients(_ context.Context, messageID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for recipient, entries := range s.inbox {
		for _, e := range entries {
			if e.MessageID == messageID {
				out = append(out, recipient)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- reflexes ---

type reflexStore struct {
	mu          sync.Mutex
	byID        map[string]*core.Reflex
	byOwnerName map[string]*core.Reflex
	executions  map[string][]*core.ReflexExecution
}

func ownerNameKey(owner, name string) string { return owner + "/" + name }

func (s *reflexStore) Create(_ context.Context, r *core.Reflex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerNameKey(r.Owner, r.Name)
	if _, ok := s.byOwnerName[key]; ok {
		return errs.New(errs.DuplicateName, "reflex name already in use for this owner")
	}
	cp := *r
	s.byID[r.ID] = &cp
	s.byOwnerName[key] = &cp
	return nil
}

func (s *reflexStore) Get(_ context.Context, id string) (*core.Reflex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "reflex not found")
	}
	cp := *r
	return &cp, nil
}

func (s *reflexStore) GetByOwnerAndName(_ context.Context, owner, name string) (*core.Reflex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byOwnerName[ownerNameKey(owner, name)]
	if !ok {
		return nil, errs.New(errs.NotFound, "reflex not found")
	}
	cp := *r
	return &cp, nil
}

func (s *reflexStore) Update(_ context.Context, r *core.Reflex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; !ok {
		return errs.New(errs.NotFound, "reflex not found")
	}
	cp := *r
	s.byID[r.ID] = &cp
	s.byOwnerName[ownerNameKey(r.Owner, r.Name)] = &cp
	return nil
}

func (s *reflexStore) ListByOwner(_ context.Context, owner string) ([]*core.Reflex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Reflex
	for _, r := range s.byID {
		if r.Owner == owner {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *reflexStore) ListEnabledByLayer(_ context.Context, layer core.TriggerLayer) ([]*core.Reflex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Reflex
	for _, r := range s.byID {
		if r.Enabled && r.TriggerLayer == layer {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *reflexStore) RecordExecution(_ context.Context, e *core.ReflexExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.executions[e.Owner] = append(s.executions[e.Owner], &cp)
	return nil
}

func (s *reflexStore) ListExecutions(_ context.Context, owner string, limit int) ([]*core.ReflexExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.executions[owner]
	out := make([]*core.ReflexExecution, len(all))
	copy(out, all)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *reflexStore) UpdateExecutionResult(_ context.Context, executionID string, result core.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, execs := range s.executions {
		for _, e := range execs {
			if e.ID == executionID {
				e.Result = result
				return nil
			}
		}
	}
	return errs.New(errs.NotFound, "execution not found")
}

func (s *reflexStore) ListExecutionsByBatch(_ context.Context, batchID string) ([]*core.ReflexExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.ReflexExecution
	for _, execs := range s.executions {
		for _, e := range execs {
			if e.BatchID == batchID {
				cp := *e
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *reflexStore) CountExecutionsSince(_ context.Context, owner string, sinceUnixMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.executions[owner] {
		if e.CreatedAt.UnixMilli() >= sinceUnixMs && e.Result == core.ResultExecuted {
			n++
		}
	}
	return n, nil
}

// --- heartbeats ---

type heartbeatStore struct {
	mu     sync.Mutex
	models map[string]*core.FriendModel
}

func friendModelKey(owner, friend string) string { return owner + ">" + friend }

func (s *heartbeatStore) Record(_ context.Context, h *core.Heartbeat) error {
	return nil // raw heartbeat events are not retained; only the derived model is.
}

func (s *heartbeatStore) GetFriendModel(_ context.Context, owner, friend string) (*core.FriendModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[friendModelKey(owner, friend)]
	if !ok {
		return nil, errs.New(errs.NotFound, "friend model not found")
	}
	cp := *m
	return &cp, nil
}

func (s *heartbeatStore) UpsertFriendModel(_ context.Context, m *core.FriendModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.models[friendModelKey(m.Owner, m.Friend)] = &cp
	return nil
}

// --- threads ---

type threadStore struct {
	mu   sync.Mutex
	byID map[string]*core.Thread
}

func (s *threadStore) Create(_ context.Context, t *core.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; ok {
		return errs.New(errs.Duplicate, "thread already exists")
	}
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

func (s *threadStore) Get(_ context.Context, id string) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "thread not found")
	}
	cp := *t
	return &cp, nil
}

func (s *threadStore) Update(_ context.Context, t *core.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; !ok {
		return errs.New(errs.NotFound, "thread not found")
	}
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

func (s *threadStore) ListByParticipant(_ context.Context, clawID string) ([]*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Thread
	for _, t := range s.byID {
		if t.Participants[clawID] {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
