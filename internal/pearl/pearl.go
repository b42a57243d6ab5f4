// Package pearl implements pearl lifecycle, endorsement, luster recompute,
// and the two-stage routing filter with frequency cap (spec §4.4), grounded
// on the teacher's reputation_manager.go weighted-score shape, generalized
// from a single trust scalar to the luster formula's baseline-vote blend.
package pearl

import (
	"context"

	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
	"github.com/chitinlabs/clawbuds-sub000/internal/trust"
)

// BaselineWeight is the weight given to the implicit 0.5 vote every pearl
// starts with (spec §4.4 luster formula).
const BaselineWeight = 1.0

// citationBoostFactor, citationBoostDivisor and citationBoostCap implement
// min(citations/5 * 0.04, 0.20).
const (
	citationBoostFactor = 0.04
	citationBoostDivisor = 5.0
	citationBoostCap     = 0.20
)

// FrequencyCapWindowHours is the rolling window for the per-friend routing
// frequency cap (spec §4.4).
const FrequencyCapWindowHours = 24

// FrequencyCapMax is the maximum routed shares to a single friend within
// the window before further routing is dropped.
const FrequencyCapMax = 3

// Service manages pearls, endorsements, luster, and routing.
type Service struct {
	pearls repository.Pearls
	trust  *trust.Service
	bus    *events.Bus
	clock  clock.Clock
}

// New constructs a pearl Service.
func New(pearls repository.Pearls, trustSvc *trust.Service, bus *events.Bus, clk clock.Clock) *Service {
	return &Service{pearls: pearls, trust: trustSvc, bus: bus, clock: clk}
}

// Create persists a new manually-authored pearl.
func (s *Service) Create(ctx context.Context, p *core.Pearl) error {
	now := s.clock.Now()
	p.Origin = core.PearlManual
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Luster = 0.5
	if err := s.pearls.Create(ctx, p); err != nil {
		return err
	}
	s.bus.Emit("pearl.created", p.Owner, map[string]interface{}{"pearlId": p.ID, "ownerId": p.Owner})
	return nil
}

// Endorse records or replaces an endorsement and recomputes luster. An
// owner endorsing their own pearl fails with SELF_ENDORSE.
func (s *Service) Endorse(ctx context.Context, pearlID, endorser string, score float64, comment string) error {
	p, err := s.pearls.Get(ctx, pearlID)
	if err != nil {
		return err
	}
	if p.Owner == endorser {
		return errs.New(errs.SelfEndorse, "owner cannot endorse their own pearl")
	}

	e := &core.Endorsement{PearlID: pearlID, Endorser: endorser, Score: clamp01(score), Comment: comment, CreatedAt: s.clock.Now()}
	if err := s.pearls.AddEndorsement(ctx, e); err != nil {
		return err
	}

	if err := s.recomputeLuster(ctx, p); err != nil {
		return err
	}
	s.bus.Emit("pearl.endorsed", p.Owner, map[string]interface{}{"pearlId": p.ID, "endorser": endorser, "score": e.Score})
	return nil
}

// recomputeLuster recomputes luster from the current endorsement list.
// Citations are not tracked, so the citation count is always 0 and the
// citation boost never applies here.
func (s *Service) recomputeLuster(ctx context.Context, p *core.Pearl) error {
	endorsements, err := s.pearls.ListEndorsements(ctx, p.ID)
	if err != nil {
		return err
	}
	luster, err := s.computeLuster(ctx, p.Owner, endorsements, 0)
	if err != nil {
		return err
	}
	p.Luster = luster
	p.UpdatedAt = s.clock.Now()
	return s.pearls.Update(ctx, p)
}

// computeLuster implements the §4.4 luster formula. If trust is
// unavailable for an endorser the contribution falls back to unit weight.
func (s *Service) computeLuster(ctx context.Context, owner string, endorsements []*core.Endorsement, citations int) (float64, error) {
	weightedSum := BaselineWeight * 0.5
	trustSum := BaselineWeight

	for _, e := range endorsements {
		w := 1.0
		if s.trust != nil {
			t, err := s.trust.Get(ctx, owner, e.Endorser, core.OverallDomain)
			if err == nil {
				w = t.Composite
			}
		}
		weightedSum += e.Score * w
		trustSum += w
	}

	lusterRaw := weightedSum / trustSum
	citationBoost := minFloat(float64(citations)/citationBoostDivisor*citationBoostFactor, citationBoostCap)
	return clampRange(lusterRaw+citationBoost, 0.1, 1.0), nil
}

func clamp01(v float64) float64 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// DomainTags returns the distinct domain tags across owner's shareable
// (non-private) pearls. It is used as a cheap trigger-level prefilter
// ahead of the full BuildRoutingContext match (spec §4.4, §4.6).
func (s *Service) DomainTags(ctx context.Context, owner string) ([]string, error) {
	pearls, err := s.pearls.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range pearls {
		if p.Shareability == core.SharePrivate {
			continue
		}
		for _, t := range p.DomainTags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// RoutingContext is the result of a successful two-stage routing match.
type RoutingContext struct {
	PearlID string
	Domain  string
}

// BuildRoutingContext runs the §4.4 two-stage filter: a tag prefilter
// against the friend's declared interests, then a trust-threshold filter
// against the pearl's share conditions. It returns nil with no error if no
// candidate survives.
func (s *Service) BuildRoutingContext(ctx context.Context, owner, friend string, friendInterests []string) (*RoutingContext, error) {
	candidates, err := s.pearls.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	interestSet := make(map[string]bool, len(friendInterests))
	for _, i := range friendInterests {
		interestSet[i] = true
	}

	for _, p := range candidates {
		if p.Shareability == core.SharePrivate {
			continue
		}
		if !tagsIntersect(p.DomainTags, interestSet) {
			continue
		}
		shared, err := s.pearls.HasSharedWith(ctx, p.ID, friend)
		if err != nil {
			return nil, err
		}
		if shared {
			continue
		}

		domain := p.PrimaryDomain()
		if p.ShareConditions != nil && p.ShareConditions.TrustThreshold != nil {
			t, err := s.trust.Get(ctx, owner, friend, domain)
			if err != nil {
				return nil, err
			}
			if t.Composite < *p.ShareConditions.TrustThreshold {
				continue
			}
		}
		return &RoutingContext{PearlID: p.ID, Domain: domain}, nil
	}
	return nil, nil
}

func tagsIntersect(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}

// UnderFrequencyCap reports whether owner may route another pearl to
// friend right now, per the rolling 24h cap of 3 (spec §4.4).
func (s *Service) UnderFrequencyCap(ctx context.Context, owner, friend string) (bool, error) {
	since := s.clock.Now().Add(-FrequencyCapWindowHours * time.Hour).UnixMilli()
	n, err := s.pearls.CountSharedSince(ctx, owner, friend, since)
	if err != nil {
		return false, err
	}
	return n < FrequencyCapMax, nil
}

// Share performs a routed or manual share. When routingContext is non-nil
// (a routed share) and the pearl's ShareConditions.DomainMatch is true, the
// primary domain tag must intersect friendInterests or the share fails with
// DOMAIN_MISMATCH; manual shares (routingContext == nil) skip this guard.
func (s *Service) Share(ctx context.Context, pearlID, owner, friend string, friendInterests []string, routingContext *RoutingContext) error {
	p, err := s.pearls.Get(ctx, pearlID)
	if err != nil {
		return err
	}
	if p.Shareability == core.SharePrivate {
		return errs.New(errs.Private, "pearl is private")
	}

	if routingContext != nil && p.ShareConditions != nil && p.ShareConditions.DomainMatch {
		interestSet := make(map[string]bool, len(friendInterests))
		for _, i := range friendInterests {
			interestSet[i] = true
		}
		if !tagsIntersect(p.DomainTags, interestSet) {
			return errs.New(errs.DomainMismatch, "pearl domain tags do not match friend interests")
		}
	}

	now := s.clock.Now()
	if err := s.pearls.RecordShare(ctx, owner, friend, pearlID, now.UnixMilli()); err != nil {
		return err
	}
	s.bus.Emit("pearl.shared", owner, map[string]interface{}{"pearlId": pearlID, "ownerId": owner, "friendId": friend})
	return nil
}
