// Package relationship implements the per-pair strength model and its
// projection onto the four Dunbar layers (spec §4.2), grounded on the
// teacher's federation/trust_ledger.go exponential decay shape
// (math.Pow(2, -elapsed/halflife)) generalized from trust to strength.
package relationship

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// InteractionKind is a recognized boost-producing interaction.
type InteractionKind string

const (
	InteractionMessage     InteractionKind = "message"
	InteractionReaction    InteractionKind = "reaction"
	InteractionEndorsement InteractionKind = "endorsement"
	InteractionHeartbeat   InteractionKind = "heartbeat"
	InteractionShare       InteractionKind = "pearl_share"
)

// boostDeltas maps an interaction kind to its strength delta.
var boostDeltas = map[InteractionKind]float64{
	InteractionMessage:     0.05,
	InteractionReaction:    0.02,
	InteractionEndorsement: 0.08,
	InteractionHeartbeat:   0.01,
	InteractionShare:       0.04,
}

// InitialStrength is the strength assigned to both directions when a
// friendship is accepted (spec §4.2 lifecycle hooks).
const InitialStrength = 0.5

const halflifeDefaultDays = 7.0

// Service manages relationship-strength edges.
type Service struct {
	repo         repository.RelationshipStrengths
	bus          *events.Bus
	clock        clock.Clock
	halflifeDays float64
	logger       *log.Logger
}

// New constructs a Service with the configured decay half-life in days.
func New(repo repository.RelationshipStrengths, bus *events.Bus, clk clock.Clock, halflifeDays float64, logger *log.Logger) *Service {
	if halflifeDays <= 0 {
		halflifeDays = halflifeDefaultDays
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, bus: bus, clock: clk, halflifeDays: halflifeDays, logger: logger}
}

// lambda is the decay rate such that exp(-lambda*halflifeDays) == 0.5.
func (s *Service) lambda() float64 {
	return math.Ln2 / s.halflifeDays
}

// decay applies exponential decay from lastBoost to now and clamps to
// [0, 1]. Pure given its inputs; precisely reproducible.
func (s *Service) decay(strength float64, lastBoost, now time.Time) float64 {
	deltaDays := now.Sub(lastBoost).Hours() / 24
	if deltaDays <= 0 {
		return clamp01(strength)
	}
	return clamp01(strength * math.Exp(-s.lambda()*deltaDays))
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

// Layer projects a strength value onto its Dunbar layer band (spec §4.2,
// inclusive upper bound).
func Layer(strength float64) core.DunbarLayer {
	switch {
	case strength >= 0.75:
		return core.LayerCore
	case strength >= 0.50:
		return core.LayerSympathy
	case strength >= 0.25:
		return core.LayerActive
	default:
		return core.LayerCasual
	}
}

// Get returns the current (decayed) strength for (from, to), without
// persisting the decay. Returns the repository's NOT_FOUND error if no edge
// exists.
func (s *Service) Get(ctx context.Context, from, to string) (*core.RelationshipStrength, error) {
	r, err := s.repo.Get(ctx, from, to)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	r.Strength = s.decay(r.Strength, r.LastBoostAt, now)
	r.CurrentLayer = Layer(r.Strength)
	return r, nil
}

// Boost applies decay up to now, adds the kind-dependent delta, clamps, and
// persists with a fresh timestamp. Emits relationship.layer_changed if the
// update crosses a band boundary.
func (s *Service) Boost(ctx context.Context, from, to string, kind InteractionKind) (*core.RelationshipStrength, error) {
	now := s.clock.Now()

	r, err := s.repo.Get(ctx, from, to)
	if err != nil {
		return nil, err
	}

	oldLayer := Layer(s.decay(r.Strength, r.LastBoostAt, now))
	decayed := s.decay(r.Strength, r.LastBoostAt, now)
	delta := boostDeltas[kind]
	updated := clamp01(decayed + delta)
	newLayer := Layer(updated)

	r.Strength = updated
	r.LastBoostAt = now
	r.CurrentLayer = newLayer

	if err := s.repo.Upsert(ctx, r); err != nil {
		return nil, err
	}

	if oldLayer != newLayer {
		s.emitLayerChanged(from, to, oldLayer, newLayer, updated)
	}
	return r, nil
}

// ApplyPendingDecay reads the stored edge, applies decay to now, and
// persists the decayed value stamped with now whenever it differs from the
// stored one, emitting relationship.layer_changed if it crosses a band
// boundary. Read paths (Get) apply decay lazily without a write.
func (s *Service) ApplyPendingDecay(ctx context.Context, from, to string) (*core.RelationshipStrength, error) {
	now := s.clock.Now()
	r, err := s.repo.Get(ctx, from, to)
	if err != nil {
		return nil, err
	}
	oldLayer := r.CurrentLayer
	decayed := s.decay(r.Strength, r.LastBoostAt, now)
	newLayer := Layer(decayed)

	if newLayer == oldLayer && decayed == r.Strength {
		return r, nil
	}

	r.Strength = decayed
	r.LastBoostAt = now
	r.CurrentLayer = newLayer
	if err := s.repo.Upsert(ctx, r); err != nil {
		return nil, err
	}
	if oldLayer != newLayer {
		s.emitLayerChanged(from, to, oldLayer, newLayer, decayed)
	}
	return r, nil
}

func (s *Service) emitLayerChanged(from, to string, oldLayer, newLayer core.DunbarLayer, strength float64) {
	s.bus.Emit("relationship.layer_changed", from, map[string]interface{}{
		"fromClaw": from,
		"toClaw":   to,
		"oldLayer": string(oldLayer),
		"newLayer": string(newLayer),
		"strength": strength,
	})
}

// OnFriendAccepted is the friend.accepted lifecycle hook: initializes two
// directed rows at InitialStrength (sympathy layer).
func (s *Service) OnFriendAccepted(ctx context.Context, a, b string) error {
	now := s.clock.Now()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		r := &core.RelationshipStrength{
			FromClaw:     pair[0],
			ToClaw:       pair[1],
			Strength:     InitialStrength,
			LastBoostAt:  now,
			CurrentLayer: Layer(InitialStrength),
		}
		if err := s.repo.Upsert(ctx, r); err != nil {
			return errs.Wrap(errs.Internal, "failed to initialize relationship strength", err)
		}
	}
	return nil
}

// MutualFriends returns the set of claws that from and to both list as
// accepted friends (promoted per DESIGN.md Open Question resolution), used
// by the trust service's N recomputation.
func MutualFriends(fromFriends, toFriends []string) []string {
	toSet := make(map[string]bool, len(toFriends))
	for _, f := range toFriends {
		toSet[f] = true
	}
	var out []string
	for _, f := range fromFriends {
		if toSet[f] {
			out = append(out, f)
		}
	}
	return out
}
