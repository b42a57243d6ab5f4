// Package trust implements the five-dimensional per-pair, per-domain trust
// model (spec §4.3), grounded on the teacher's internal/reputation's
// weighted-composite formula and internal/federation/trust_ledger.go's
// decay/EMA shape, generalized to the Q/H/N/W dimensions named by the spec.
package trust

import (
	"context"
	"math"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// Weights are the fixed composite coefficients (spec §4.3 / Scenario E).
// WH is the largest, as required.
const (
	WQ = 0.25
	WH = 0.40
	WN = 0.20
	WW = 0.15
)

// Dampening applied to each mutual-friend witness contribution in W
// recompute (spec §4.3: "dampening < 1").
const WitnessDampening = 0.85

// defaultQ/N/W/Composite and "H unset" are the values assigned to a
// newly-created row.
const (
	defaultQ         = 0.5
	defaultN         = 0.5
	defaultW         = 0.0
	defaultComposite = 0.5
)

// layerScore is the fixed table keyed by Dunbar layer for N recompute.
var layerScore = map[core.DunbarLayer]float64{
	core.LayerCore:     1.0,
	core.LayerSympathy: 0.66,
	core.LayerActive:   0.33,
	core.LayerCasual:   0.0,
}

// Signal is a recognized Q-update signal; deltas are fixed per signal.
type Signal string

const (
	SignalHelpfulReply   Signal = "helpful_reply"
	SignalPearlEndorsed  Signal = "pearl_endorsed"
	SignalPearlShared    Signal = "pearl_shared"
	SignalMessageIgnored Signal = "message_ignored"
	SignalReported       Signal = "reported"
)

var signalDeltas = map[Signal]float64{
	SignalHelpfulReply:   0.03,
	SignalPearlEndorsed:  0.05,
	SignalPearlShared:    0.02,
	SignalMessageIgnored: -0.01,
	SignalReported:       -0.20,
}

// Composite applies the §4.3 composition rule to a Q/H/N/W tuple.
func Composite(q, h float64, hSet bool, n, w float64) float64 {
	var raw float64
	if hSet {
		raw = WQ*q + WH*h + WN*n + WW*w
	} else {
		denom := WQ + WN + WW
		raw = (WQ*q + WN*n + WW*w) / denom
	}
	return clamp01(raw)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Service manages trust scores.
type Service struct {
	repo  repository.TrustScores
	clock clock.Clock
}

// New constructs a trust Service.
func New(repo repository.TrustScores, clk clock.Clock) *Service {
	return &Service{repo: repo, clock: clk}
}

// defaultRow builds a new row at the spec-mandated defaults: Q=N=0.5,
// H=unset, W=0, composite=0.5. The composite is set directly rather than
// computed from the tuple; every caller that stores a row recomputes it first.
func (s *Service) defaultRow(from, to, domain string) *core.TrustScore {
	now := s.clock.Now()
	t := &core.TrustScore{From: from, To: to, Domain: domain, Q: defaultQ, N: defaultN, W: defaultW, HSet: false}
	t.Composite = defaultComposite
	t.UpdatedAt = now
	return t
}

// Get returns the (from, to, domain) row, falling back to `_overall` if the
// domain-specific row does not exist, and to a default row if even the
// overall row is absent.
func (s *Service) Get(ctx context.Context, from, to, domain string) (*core.TrustScore, error) {
	if domain != "" && domain != core.OverallDomain {
		t, err := s.repo.Get(ctx, from, to, domain)
		if err == nil {
			return t, nil
		}
	}
	t, err := s.repo.Get(ctx, from, to, core.OverallDomain)
	if err == nil {
		return t, nil
	}
	return s.defaultRow(from, to, core.OverallDomain), nil
}

func (s *Service) getOrDefault(ctx context.Context, from, to, domain string) (*core.TrustScore, error) {
	t, err := s.repo.Get(ctx, from, to, domain)
	if err == nil {
		return t, nil
	}
	return s.defaultRow(from, to, domain), nil
}

// ApplySignal applies a Q-update signal to both the domain row and the
// `_overall` row (spec §4.3 Q updates), creating missing rows at defaults.
func (s *Service) ApplySignal(ctx context.Context, from, to, domain string, signal Signal) error {
	delta := signalDeltas[signal]
	domains := []string{core.OverallDomain}
	if domain != "" && domain != core.OverallDomain {
		domains = append(domains, domain)
	}
	for _, d := range domains {
		t, err := s.getOrDefault(ctx, from, to, d)
		if err != nil {
			return err
		}
		t.Q = clamp01(t.Q + delta)
		t.Composite = Composite(t.Q, t.H, t.HSet, t.N, t.W)
		t.UpdatedAt = s.clock.Now()
		if err := s.repo.Upsert(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// SetEndorsement replaces H for (from, to, domain) and recomputes composite
// (spec §4.3 H updates, manual endorsement).
func (s *Service) SetEndorsement(ctx context.Context, from, to, domain string, h float64) error {
	t, err := s.getOrDefault(ctx, from, to, domain)
	if err != nil {
		return err
	}
	t.H = clamp01(h)
	t.HSet = true
	t.Composite = Composite(t.Q, t.H, t.HSet, t.N, t.W)
	t.UpdatedAt = s.clock.Now()
	return s.repo.Upsert(ctx, t)
}

// RecomputeN is triggered by relationship.layer_changed (spec §4.3 N
// recompute). mutualCount is the number of mutual friends between from and
// to (promoted per DESIGN.md's Open Question resolution rather than left
// at 0); pass 0 if unavailable.
func (s *Service) RecomputeN(ctx context.Context, from, to string, layer core.DunbarLayer, strength float64, mutualCount, totalFriendsConsidered int) error {
	mutualScore := 0.0
	if totalFriendsConsidered > 0 {
		mutualScore = clamp01(float64(mutualCount) / float64(totalFriendsConsidered))
	}
	n := (layerScore[layer] + clamp01(strength) + mutualScore) / 3

	rows, err := s.repo.ListFrom(ctx, from)
	if err != nil {
		return err
	}
	touched := false
	for _, t := range rows {
		if t.To != to {
			continue
		}
		t.N = clamp01(n)
		t.Composite = Composite(t.Q, t.H, t.HSet, t.N, t.W)
		t.UpdatedAt = s.clock.Now()
		if err := s.repo.Upsert(ctx, t); err != nil {
			return err
		}
		touched = true
	}
	if !touched {
		t := s.defaultRow(from, to, core.OverallDomain)
		t.N = clamp01(n)
		t.Composite = Composite(t.Q, t.H, t.HSet, t.N, t.W)
		if err := s.repo.Upsert(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeW recomputes W for (from, to, domain) as the average, over each
// mutual friend M, of trust(from,M,_overall).composite *
// trust(M,to,domain).composite * WitnessDampening (spec §4.3 W recompute).
func (s *Service) RecomputeW(ctx context.Context, from, to, domain string, mutualFriends []string) error {
	t, err := s.getOrDefault(ctx, from, to, domain)
	if err != nil {
		return err
	}

	if len(mutualFriends) == 0 {
		t.W = 0
	} else {
		sum := 0.0
		for _, m := range mutualFriends {
			fm, err := s.Get(ctx, from, m, core.OverallDomain)
			if err != nil {
				return err
			}
			mt, err := s.Get(ctx, m, to, domain)
			if err != nil {
				return err
			}
			sum += fm.Composite * mt.Composite * WitnessDampening
		}
		t.W = clamp01(sum / float64(len(mutualFriends)))
	}

	t.Composite = Composite(t.Q, t.H, t.HSet, t.N, t.W)
	t.UpdatedAt = s.clock.Now()
	return s.repo.Upsert(ctx, t)
}

// ApplyMonthlyDecay multiplies every stored Q by decayFactor (default 0.99)
// and recomputes composite; H is never decayed (spec §4.3 Monthly decay).
func (s *Service) ApplyMonthlyDecay(ctx context.Context, decayFactor float64) error {
	if decayFactor <= 0 {
		decayFactor = 0.99
	}
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for _, t := range rows {
		t.Q = clamp01(t.Q * decayFactor)
		t.Composite = Composite(t.Q, t.H, t.HSet, t.N, t.W)
		t.UpdatedAt = now
		if err := s.repo.Upsert(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// roundTo6 rounds v to six decimal places, for Scenario E style
// comparisons; nothing in the module calls it.
func roundTo6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
