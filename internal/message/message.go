// Package message implements recipient resolution, time-ordered message
// ids, atomic fan-out, and thread resolution (spec §4.5), grounded on the
// teacher's internal/core plain-struct shape and internal/events emission
// pattern after a repository commit.
package message

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// randomSuffixBytes produces >= 20 hex chars (10 bytes -> 20 hex chars).
const randomSuffixBytes = 10

// Service implements message send/view/edit/delete/thread-read.
type Service struct {
	messages    repository.Messages
	friendships repository.Friendships
	claws       repository.Claws
	bus         *events.Bus
	clock       clock.Clock
	circles     CircleResolver
}

// CircleResolver resolves a Claw's named circles to friend-id lists. Circle
// membership management is out of this package's scope (spec treats it as
// an adjacent concern); callers supply an implementation.
type CircleResolver interface {
	ResolveCircles(ctx context.Context, owner string, circleNames []string) ([]string, error)
}

// New constructs a message Service.
func New(messages repository.Messages, friendships repository.Friendships, claws repository.Claws, bus *events.Bus, clk clock.Clock, circles CircleResolver) *Service {
	return &Service{messages: messages, friendships: friendships, claws: claws, bus: bus, clock: clk, circles: circles}
}

// clawTags returns id's declared profile tags, or nil if the claw cannot be
// loaded — a best-effort lookup, never fatal to the send path.
func (s *Service) clawTags(ctx context.Context, id string) []string {
	c, err := s.claws.Get(ctx, id)
	if err != nil {
		return nil
	}
	return c.Tags
}

// NewID generates a time-ordered lowercase hex message id: a 12-char
// big-endian millisecond timestamp followed by randomSuffixBytes*2 random
// hex characters (spec §4.5 identifier format).
func NewID(now interface{ UnixMilli() int64 }) (string, error) {
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(now.UnixMilli()))
	// Big-endian uint64 hex-encodes to 16 chars; take the low 12 (6 bytes),
	// which still preserves ordering for any timestamp within range.
	tsHex := hex.EncodeToString(tsBuf[2:])

	suffix := make([]byte, randomSuffixBytes)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return tsHex + hex.EncodeToString(suffix), nil
}

// SendRequest is the input to Send.
type SendRequest struct {
	Sender         string
	Blocks         []core.Block
	Visibility     core.Visibility
	Circles        []string
	ContentWarning string
	ReplyToID      string
	DirectTo       []string
}

// Send resolves recipients, resolves the thread, assembles the message, and
// commits the atomic fan-out, emitting message.new per recipient after
// commit (spec §4.5 send algorithm).
func (s *Service) Send(ctx context.Context, req SendRequest) (*core.Message, []*core.InboxEntry, error) {
	recipients, err := s.resolveRecipients(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	id, err := NewID(now)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Internal, "failed to generate message id", err)
	}

	m := &core.Message{
		ID:             id,
		Sender:         req.Sender,
		Blocks:         req.Blocks,
		Visibility:     req.Visibility,
		Circles:        req.Circles,
		ContentWarning: req.ContentWarning,
		CreatedAt:      now,
	}

	if req.ReplyToID != "" {
		parent, err := s.Get(ctx, req.Sender, req.ReplyToID)
		if err != nil {
			return nil, nil, err
		}
		m.ReplyToID = parent.ID
		if parent.ThreadID != "" {
			m.ThreadID = parent.ThreadID
		} else {
			m.ThreadID = parent.ID
		}
	}

	entries, err := s.messages.FanOut(ctx, m, recipients)
	if err != nil {
		return nil, nil, err
	}

	senderTags := s.clawTags(ctx, m.Sender)
	for _, e := range entries {
		s.bus.Emit("message.new", e.Recipient, map[string]interface{}{
			"recipientId":     e.Recipient,
			"messageId":       m.ID,
			"fromClawId":      m.Sender,
			"seq":             e.Seq,
			"blocks":          m.Blocks,
			"domainTags":      senderTags,
			"senderInterests": s.clawTags(ctx, e.Recipient),
		})
	}
	return m, entries, nil
}

func (s *Service) resolveRecipients(ctx context.Context, req SendRequest) ([]string, error) {
	switch req.Visibility {
	case core.VisibilityDirect:
		if len(req.DirectTo) == 0 {
			return nil, errs.New(errs.MissingRecipients, "direct message requires at least one recipient")
		}
		seen := make(map[string]bool)
		var out []string
		for _, r := range req.DirectTo {
			if r == req.Sender {
				return nil, errs.New(errs.InvalidRecipient, "sender cannot address a direct message to themselves")
			}
			if seen[r] {
				continue
			}
			seen[r] = true
			friends, err := s.areFriends(ctx, req.Sender, r)
			if err != nil {
				return nil, err
			}
			if !friends {
				return nil, errs.New(errs.InvalidRecipient, fmt.Sprintf("%s is not an accepted friend", r))
			}
			out = append(out, r)
		}
		return out, nil

	case core.VisibilityPublic:
		friends, err := s.friendships.ListByClaw(ctx, req.Sender, core.FriendshipAccepted)
		if err != nil {
			return nil, err
		}
		return otherParties(friends, req.Sender), nil

	case core.VisibilityCircles:
		if len(req.Circles) == 0 {
			return nil, errs.New(errs.MissingCircles, "circles visibility requires at least one circle")
		}
		if s.circles == nil {
			return nil, errs.New(errs.MissingCircles, "no circle resolver configured")
		}
		members, err := s.circles.ResolveCircles(ctx, req.Sender, req.Circles)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, errs.New(errs.MissingCircles, "resolved circles contain no members")
		}
		return dedupe(members), nil

	default:
		return nil, errs.New(errs.ValidationError, "unknown visibility")
	}
}

func (s *Service) areFriends(ctx context.Context, a, b string) (bool, error) {
	f, err := s.friendships.GetByPair(ctx, a, b)
	if errs.Is(err, errs.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == core.FriendshipAccepted, nil
}

func otherParties(friendships []*core.Friendship, self string) []string {
	var out []string
	for _, f := range friendships {
		if f.Requester == self {
			out = append(out, f.Accepter)
		} else {
			out = append(out, f.Requester)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Get loads a message and enforces the §4.5 visibility rule for viewer.
func (s *Service) Get(ctx context.Context, viewer, id string) (*core.Message, error) {
	m, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.canView(ctx, viewer, m)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, errs.New(errs.NotFound, "message not found")
	}
	return m, nil
}

func (s *Service) canView(ctx context.Context, viewer string, m *core.Message) (bool, error) {
	if viewer == m.Sender {
		return true, nil
	}
	switch m.Visibility {
	case core.VisibilityPublic:
		return s.areFriends(ctx, m.Sender, viewer)
	case core.VisibilityDirect:
		// Direct recipient rows are the inbox entries; presence of an
		// inbox entry for viewer implies visibility.
		entries, err := s.messages.ListInbox(ctx, viewer, 0, 0)
		if err != nil {
			return false, err
		}
		for _, e := range entries {
			if e.MessageID == m.ID {
				return true, nil
			}
		}
		return false, nil
	case core.VisibilityCircles:
		if s.circles == nil {
			return false, nil
		}
		members, err := s.circles.ResolveCircles(ctx, m.Sender, m.Circles)
		if err != nil {
			return false, err
		}
		for _, mem := range members {
			if mem == viewer {
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

// Edit updates blocks for a message the caller sent, setting edited=true.
func (s *Service) Edit(ctx context.Context, sender, id string, blocks []core.Block) (*core.Message, error) {
	m, err := s.messages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Sender != sender {
		return nil, errs.New(errs.Forbidden, "only the sender may edit a message")
	}
	now := s.clock.Now()
	m.Blocks = blocks
	m.Edited = true
	m.EditedAt = &now
	if err := s.messages.Update(ctx, m); err != nil {
		return nil, err
	}
	recipients, err := s.messages.ListRecipients(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range recipients {
		s.bus.Emit("message.edited", r, map[string]interface{}{"recipientId": r, "messageId": m.ID})
	}
	return m, nil
}

// Delete removes a message the caller sent and emits message.deleted to each
// recipient. The message's inbox entries are not removed.
func (s *Service) Delete(ctx context.Context, sender, id string) error {
	m, err := s.messages.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Sender != sender {
		return errs.New(errs.Forbidden, "only the sender may delete a message")
	}
	recipients, err := s.messages.ListRecipients(ctx, id)
	if err != nil {
		return err
	}
	if err := s.messages.Delete(ctx, id); err != nil {
		return err
	}
	for _, r := range recipients {
		s.bus.Emit("message.deleted", r, map[string]interface{}{"recipientId": r, "messageId": id})
	}
	return nil
}

// Thread returns the root message and every message sharing its threadId,
// in ascending creation order (spec §4.5 thread read).
func (s *Service) Thread(ctx context.Context, viewer, rootID string) ([]*core.Message, error) {
	root, err := s.Get(ctx, viewer, rootID)
	if err != nil {
		return nil, err
	}
	replies, err := s.messages.ListByThread(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(replies, func(i, j int) bool { return replies[i].CreatedAt.Before(replies[j].CreatedAt) })
	out := append([]*core.Message{root}, replies...)
	return out, nil
}
