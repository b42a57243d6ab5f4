// Package thread implements the encrypted collaborative workspace (spec
// §3 Thread; supplemented component not named by the distilled spec's §4
// headings but present in its data model — see SPEC_FULL.md §3.1),
// grounded on the teacher's internal/core plain-struct style with
// participant-set gating analogous to friendship/circle checks elsewhere
// in this module.
package thread

import (
	"context"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// Service manages collaborative thread workspaces. Key material is opaque
// bytes supplied by an external E2EE primitive (out of scope); this
// package never interprets or generates keys itself.
type Service struct {
	threads repository.Threads
	bus     *events.Bus
	clock   clock.Clock
}

// New constructs a thread Service.
func New(threads repository.Threads, bus *events.Bus, clk clock.Clock) *Service {
	return &Service{threads: threads, bus: bus, clock: clk}
}

// Create starts a new thread with creator plus participantKeys as its
// initial participants. participantKeys maps each additional participant to
// their wrapped key and must name at least one claw beyond the creator.
func (s *Service) Create(ctx context.Context, id, creator, purpose, title string, creatorKey []byte, participantKeys map[string][]byte) (*core.Thread, error) {
	others := 0
	for clawID := range participantKeys {
		if clawID != creator {
			others++
		}
	}
	if others == 0 {
		return nil, errs.New(errs.ValidationError, "thread requires at least one participant beyond the creator")
	}
	now := s.clock.Now()
	participants := map[string]bool{creator: true}
	keys := map[string][]byte{creator: creatorKey}
	for clawID, key := range participantKeys {
		if clawID == creator {
			continue
		}
		participants[clawID] = true
		keys[clawID] = key
	}
	t := &core.Thread{
		ID:              id,
		Creator:         creator,
		Purpose:         purpose,
		Title:           title,
		Status:          core.ThreadActive,
		Participants:    participants,
		ParticipantKeys: keys,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.threads.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) requireParticipant(t *core.Thread, clawID string) error {
	if !t.Participants[clawID] {
		return errs.New(errs.Forbidden, "caller is not a participant of this thread")
	}
	return nil
}

func (s *Service) requireCreator(t *core.Thread, clawID string) error {
	if clawID != t.Creator {
		return errs.New(errs.Forbidden, "only the thread creator may perform this action")
	}
	return nil
}

// AddParticipant adds a new participant with their wrapped key. Only the
// creator may mutate membership.
func (s *Service) AddParticipant(ctx context.Context, actor, threadID, newParticipant string, key []byte) error {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if err := s.requireCreator(t, actor); err != nil {
		return err
	}
	t.Participants[newParticipant] = true
	t.ParticipantKeys[newParticipant] = key
	t.UpdatedAt = s.clock.Now()
	return s.threads.Update(ctx, t)
}

// RemoveParticipant removes a participant. Only the creator may mutate
// membership; the creator themselves can never be removed.
func (s *Service) RemoveParticipant(ctx context.Context, actor, threadID, target string) error {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if err := s.requireCreator(t, actor); err != nil {
		return err
	}
	if target == t.Creator {
		return errs.New(errs.Forbidden, "creator cannot be removed from their own thread")
	}
	delete(t.Participants, target)
	delete(t.ParticipantKeys, target)
	t.UpdatedAt = s.clock.Now()
	return s.threads.Update(ctx, t)
}

// Contribute emits thread.contribution_added for the reflex engine's
// track_thread_progress action. Rejects non-participants and contributions
// to a non-active thread. No contribution content is stored.
func (s *Service) Contribute(ctx context.Context, contributor, threadID string) error {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(t, contributor); err != nil {
		return err
	}
	if t.Status != core.ThreadActive {
		return errs.New(errs.ValidationError, "cannot contribute to a thread that is not active")
	}
	s.bus.Emit("thread.contribution_added", contributor, map[string]interface{}{
		"contributorId": contributor,
		"threadId":      threadID,
	})
	return nil
}

// SetStatus transitions the thread's lifecycle status. Only the creator may
// change status, and only forward: active -> completed -> archived.
// Backward transitions are rejected.
func (s *Service) SetStatus(ctx context.Context, actor, threadID string, status core.ThreadStatus) error {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if err := s.requireCreator(t, actor); err != nil {
		return err
	}
	if status.Rank() <= t.Status.Rank() {
		return errs.New(errs.ValidationError, "thread status can only move forward")
	}
	t.Status = status
	t.UpdatedAt = s.clock.Now()
	return s.threads.Update(ctx, t)
}
