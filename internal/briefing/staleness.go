// Package briefing implements the pattern staleness detector, health score,
// and micro-molt suggestion synthesis (spec §4.8), grounded on the
// teacher's reputation/decay_scheduler.go pattern of a periodic read over
// accumulated history feeding a derived score.
package briefing

import (
	"context"
	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// Thresholds bundles the configurable staleness detector cutoffs (spec
// §6.4).
type Thresholds struct {
	CarapaceStaleDays        int
	MonotonyThreshold        float64
	GroomRepetitionThreshold float64
}

// DefaultThresholds returns the spec §4.8 defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{CarapaceStaleDays: 60, MonotonyThreshold: 0.90, GroomRepetitionThreshold: 0.85}
}

// CarapaceHistory supplies the external configuration-change history table
// the carapace_stale check reads (spec §4.8: "external history table").
type CarapaceHistory interface {
	LastConfigChangeAt(ctx context.Context, owner string) (time.Time, bool, error)
}

// StalenessReport is the result of a single detector pass.
type StalenessReport struct {
	ReflexRepetition      bool
	EmojiMonotony         bool
	CarapaceStale         bool
	GroomPhraseRepetition bool
	HealthScore           float64
}

// Detector runs the four staleness checks from a single shared read of
// execution history (spec §4.8: "A single read of execution+history data is
// shared across the four checks").
type Detector struct {
	reflexes   repository.Reflexes
	carapace   CarapaceHistory
	clock      clock.Clock
	thresholds Thresholds
}

// New constructs a Detector.
func New(reflexes repository.Reflexes, carapace CarapaceHistory, clk clock.Clock, thresholds Thresholds) *Detector {
	return &Detector{reflexes: reflexes, carapace: carapace, clock: clk, thresholds: thresholds}
}

const analysisWindowDays = 30

// Analyze runs all four checks and the health score for owner.
func (d *Detector) Analyze(ctx context.Context, owner string) (*StalenessReport, error) {
	execs, err := d.reflexes.ListExecutions(ctx, owner, 0)
	if err != nil {
		return nil, err
	}

	cutoff := d.clock.Now().AddDate(0, 0, -analysisWindowDays)
	var windowed []*core.ReflexExecution
	for _, e := range execs {
		if e.CreatedAt.After(cutoff) {
			windowed = append(windowed, e)
		}
	}

	reflexRepetition, reflexDiversity := d.checkReflexRepetition(windowed)
	emojiMonotony, maxEmojiRate := d.checkEmojiMonotony(windowed)
	groomRepetition := d.checkGroomPhraseRepetition(windowed)
	carapaceStale, daysSinceChange := d.checkCarapaceStale(ctx, owner)

	report := &StalenessReport{
		ReflexRepetition:      reflexRepetition,
		EmojiMonotony:         emojiMonotony,
		CarapaceStale:         carapaceStale,
		GroomPhraseRepetition: groomRepetition,
	}
	report.HealthScore = healthScore(reflexDiversity, maxEmojiRate, daysSinceChange, d.thresholds.CarapaceStaleDays)
	return report, nil
}

// checkReflexRepetition reports true if one reflex accounts for > 80% of
// >= 10 total executed records, and returns the diversity ratio used by the
// health score.
func (d *Detector) checkReflexRepetition(execs []*core.ReflexExecution) (bool, float64) {
	counts := make(map[string]int)
	total := 0
	for _, e := range execs {
		if e.Result != core.ResultExecuted {
			continue
		}
		counts[e.ReflexID]++
		total++
	}
	if total < 10 {
		return false, diversityRatio(len(counts), total)
	}
	for _, c := range counts {
		if float64(c)/float64(total) > 0.80 {
			return true, diversityRatio(len(counts), total)
		}
	}
	return false, diversityRatio(len(counts), total)
}

func diversityRatio(unique, total int) float64 {
	if total == 0 {
		return 1
	}
	ratio := float64(unique) / (0.3 * float64(total))
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func (d *Detector) checkEmojiMonotony(execs []*core.ReflexExecution) (bool, float64) {
	counts := make(map[string]int)
	total := 0
	for _, e := range execs {
		if e.Details == nil {
			continue
		}
		emoji, ok := e.Details["emoji"].(string)
		if !ok || emoji == "" {
			continue
		}
		counts[emoji]++
		total++
	}
	if total == 0 {
		return false, 0
	}
	maxRate := 0.0
	for _, c := range counts {
		rate := float64(c) / float64(total)
		if rate > maxRate {
			maxRate = rate
		}
	}
	return total >= 10 && maxRate >= d.thresholds.MonotonyThreshold, maxRate
}

func (d *Detector) checkGroomPhraseRepetition(execs []*core.ReflexExecution) bool {
	counts := make(map[string]int)
	total := 0
	for _, e := range execs {
		if e.Details == nil {
			continue
		}
		phrase, ok := e.Details["groomPhrase"].(string)
		if !ok || phrase == "" {
			continue
		}
		counts[phrase]++
		total++
	}
	if total < 5 {
		return false
	}
	for _, c := range counts {
		if float64(c)/float64(total) >= d.thresholds.GroomRepetitionThreshold {
			return true
		}
	}
	return false
}

func (d *Detector) checkCarapaceStale(ctx context.Context, owner string) (bool, float64) {
	if d.carapace == nil {
		return false, 0
	}
	lastChange, ok, err := d.carapace.LastConfigChangeAt(ctx, owner)
	if err != nil || !ok {
		return false, 0
	}
	days := d.clock.Now().Sub(lastChange).Hours() / 24
	return days > float64(d.thresholds.CarapaceStaleDays), days
}

// healthScore averages three sub-scores, each in [0, 1] (spec §4.8 Health
// score).
func healthScore(reflexDiversity, maxEmojiRate, daysSinceChange float64, staleDays int) float64 {
	templateDiversity := 1 - maxEmojiRate
	carapaceFreshness := 1 - daysSinceChange/float64(staleDays)
	if carapaceFreshness < 0 {
		carapaceFreshness = 0
	}
	avg := (reflexDiversity + templateDiversity + carapaceFreshness) / 3
	return clamp01(avg)
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
