// Package heartbeat implements broadcast/receive of lightweight status
// pings and the per-friend "Proxy Theory of Mind" model derived from them
// (spec component table rows "Heartbeat service" / "Friend-model (Proxy
// ToM)"), grounded on the teacher's reputation_manager.go pattern of an
// incrementally-updated weighted map keyed by subject.
package heartbeat

import (
	"context"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/pearl"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// interestBoost is how much a single heartbeat nudges an interest weight
// toward 1, via exponential moving average.
const interestBoost = 0.2

// Service manages heartbeat broadcasts and friend models.
type Service struct {
	repo   repository.Heartbeats
	pearls *pearl.Service
	bus    *events.Bus
	clock  clock.Clock
}

// New constructs a heartbeat Service. pearls supplies the recipient's
// shareable domain tags for the heartbeat.received payload, so the
// route_pearl_by_interest reflex has something to prefilter against.
func New(repo repository.Heartbeats, pearls *pearl.Service, bus *events.Bus, clk clock.Clock) *Service {
	return &Service{repo: repo, pearls: pearls, bus: bus, clock: clk}
}

// Send records a heartbeat from "from" to "to" declaring interests, updates
// the recipient's friend model of the sender by EMA, and emits
// heartbeat.received.
func (s *Service) Send(ctx context.Context, from, to string, interests []string, status string) (*core.Heartbeat, error) {
	if from == to {
		return nil, errs.New(errs.ValidationError, "cannot heartbeat yourself")
	}
	now := s.clock.Now()
	hb := &core.Heartbeat{
		ID:        from + ">" + to + "@" + now.Format("20060102150405.000000000"),
		From:      from,
		To:        to,
		Interests: interests,
		Status:    status,
		CreatedAt: now,
	}
	if err := s.repo.Record(ctx, hb); err != nil {
		return nil, err
	}

	model, err := s.repo.GetFriendModel(ctx, to, from)
	if err != nil {
		model = &core.FriendModel{Owner: to, Friend: from, InterestWeights: make(map[string]float64)}
	}
	if model.InterestWeights == nil {
		model.InterestWeights = make(map[string]float64)
	}
	seen := make(map[string]bool, len(interests))
	for _, tag := range interests {
		seen[tag] = true
		cur := model.InterestWeights[tag]
		model.InterestWeights[tag] = cur + interestBoost*(1-cur)
	}
	for tag, w := range model.InterestWeights {
		if !seen[tag] {
			model.InterestWeights[tag] = w * (1 - interestBoost)
		}
	}
	model.LastHeartbeatAt = now
	model.HeartbeatCount++
	if err := s.repo.UpsertFriendModel(ctx, model); err != nil {
		return nil, err
	}

	domainTags, err := s.pearls.DomainTags(ctx, to)
	if err != nil {
		return nil, err
	}
	s.bus.Emit("heartbeat.received", to, map[string]interface{}{
		"fromClawId":      from,
		"toClaw":          to,
		"senderInterests": interests,
		"domainTags":      domainTags,
		"status":          status,
	})
	return hb, nil
}

// FriendModel returns owner's current model of friend, or an empty model if
// none has been recorded yet.
func (s *Service) FriendModel(ctx context.Context, owner, friend string) (*core.FriendModel, error) {
	m, err := s.repo.GetFriendModel(ctx, owner, friend)
	if errs.Is(err, errs.NotFound) {
		return &core.FriendModel{Owner: owner, Friend: friend, InterestWeights: map[string]float64{}}, nil
	}
	return m, err
}

// TopInterests returns the friend's interests whose weight is at least
// minWeight, in no particular order.
func TopInterests(model *core.FriendModel, minWeight float64) []string {
	var out []string
	for tag, w := range model.InterestWeights {
		if w >= minWeight {
			out = append(out, tag)
		}
	}
	return out
}
