package briefing

import (
	"context"
	"fmt"
	"sort"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// SuggestionType enumerates the six analytical dimensions micro-molt
// analysis draws suggestions from (spec §4.8).
type SuggestionType string

const (
	SuggestReflexEffectiveness SuggestionType = "reflex_effectiveness"
	SuggestGroomingReplyRate  SuggestionType = "grooming_reply_rate"
	SuggestPearlEndorsement   SuggestionType = "pearl_routing_endorsement_rate"
	SuggestDunbarStrategy     SuggestionType = "dunbar_layer_strategy"
	SuggestMonotonyAlert      SuggestionType = "monotony_alert"
	SuggestCarapaceStaleness  SuggestionType = "carapace_staleness"
)

// Suggestion is one micro-molt recommendation.
type Suggestion struct {
	Type        SuggestionType `json:"type"`
	Description string         `json:"description"`
	CLICommand  string         `json:"cliCommand"`
	Confidence  float64        `json:"confidence"`
}

// Editor applies a suggestion to a Claw's live configuration. The core
// depends only on this interface; no implementation ships with it (spec
// §4.8 applySuggestion: "if no editor is attached it fails with
// NOT_CONFIGURED").
type Editor interface {
	Apply(ctx context.Context, owner string, s Suggestion) error
}

// Molter synthesizes micro-molt suggestions from a staleness report and
// reflex execution history.
type Molter struct {
	reflexes repository.Reflexes
	pearls   repository.Pearls
	editor   Editor
}

// NewMolter constructs a Molter. editor may be nil; ApplySuggestion then
// always fails with NOT_CONFIGURED.
func NewMolter(reflexes repository.Reflexes, pearls repository.Pearls, editor Editor) *Molter {
	return &Molter{reflexes: reflexes, pearls: pearls, editor: editor}
}

// AttachEditor wires the external editor after construction (Design Notes
// "Cyclic injection").
func (m *Molter) AttachEditor(e Editor) { m.editor = e }

// Suggest produces up to three suggestions, highest confidence first, over
// the six analytical dimensions (spec §4.8 Micro-molt suggestions).
func (m *Molter) Suggest(ctx context.Context, owner string, report *StalenessReport) ([]Suggestion, error) {
	var candidates []Suggestion

	if report.ReflexRepetition {
		candidates = append(candidates, Suggestion{
			Type:        SuggestReflexEffectiveness,
			Description: "One reflex dominates recent activity; consider diversifying or disabling low-value repeats.",
			CLICommand:  "clawbuds reflex list --owner " + owner,
			Confidence:  0.8,
		})
	}

	if report.EmojiMonotony {
		candidates = append(candidates, Suggestion{
			Type:        SuggestMonotonyAlert,
			Description: "Reactions are converging on a single emoji; widen the reaction template set.",
			CLICommand:  "clawbuds reflex tune phatic_micro_reaction --owner " + owner,
			Confidence:  0.7,
		})
	}

	if report.CarapaceStale {
		candidates = append(candidates, Suggestion{
			Type:        SuggestCarapaceStaleness,
			Description: "Carapace configuration has not changed in a long while; review it for drift.",
			CLICommand:  "clawbuds carapace review --owner " + owner,
			Confidence:  0.6,
		})
	}

	if report.GroomPhraseRepetition {
		candidates = append(candidates, Suggestion{
			Type:        SuggestGroomingReplyRate,
			Description: "Grooming replies are repeating the same phrase; broaden the reply pool.",
			CLICommand:  "clawbuds reflex tune groom_request --owner " + owner,
			Confidence:  0.65,
		})
	}

	endorseRate, err := m.pearlEndorsementRate(ctx, owner)
	if err == nil && endorseRate < 0.2 {
		candidates = append(candidates, Suggestion{
			Type:        SuggestPearlEndorsement,
			Description: fmt.Sprintf("Only %.0f%% of routed pearls receive endorsements; tighten routing targets.", endorseRate*100),
			CLICommand:  "clawbuds pearl routing-report --owner " + owner,
			Confidence:  0.55,
		})
	}

	candidates = append(candidates, Suggestion{
		Type:        SuggestDunbarStrategy,
		Description: "Review Dunbar-layer distribution to ensure core relationships are getting proportionate attention.",
		CLICommand:  "clawbuds relationship layers --owner " + owner,
		Confidence:  0.4,
	})

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Confidence > candidates[j].Confidence })
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates, nil
}

func (m *Molter) pearlEndorsementRate(ctx context.Context, owner string) (float64, error) {
	pearls, err := m.pearls.ListByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	if len(pearls) == 0 {
		return 1, nil
	}
	routed, endorsed := 0, 0
	for _, p := range pearls {
		if p.Origin != core.PearlRouted {
			continue
		}
		routed++
		endorsements, err := m.pearls.ListEndorsements(ctx, p.ID)
		if err != nil {
			return 0, err
		}
		if len(endorsements) > 0 {
			endorsed++
		}
	}
	if routed == 0 {
		return 1, nil
	}
	return float64(endorsed) / float64(routed), nil
}

// ApplySuggestion delegates to the external editor interface. If none is
// attached it fails with NOT_CONFIGURED (spec §4.8 applySuggestion).
func (m *Molter) ApplySuggestion(ctx context.Context, owner string, s Suggestion) error {
	if m.editor == nil {
		return errs.New(errs.NotConfigured, "no editor attached for micro-molt application")
	}
	return m.editor.Apply(ctx, owner, s)
}
