package briefing

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
)

func recordExecutions(t *testing.T, repo *memory.Repository, owner, reflexID string, n int, now time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		e := &core.ReflexExecution{
			ID: reflexID + "-" + strconv.Itoa(i), ReflexID: reflexID, Owner: owner,
			EventType: "message.new", Result: core.ResultExecuted, CreatedAt: now,
		}
		require.NoError(t, repo.Reflexes().RecordExecution(ctx, e))
	}
}

func TestAnalyzeDetectsReflexRepetition(t *testing.T) {
	fake := clock.NewFake(time.Now())
	repo := memory.New()
	recordExecutions(t, repo, "a", "dominant", 9, fake.Now())
	recordExecutions(t, repo, "a", "other", 1, fake.Now())

	d := New(repo.Reflexes(), nil, fake, DefaultThresholds())
	report, err := d.Analyze(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, report.ReflexRepetition)
}

func TestAnalyzeIgnoresExecutionsOutsideWindow(t *testing.T) {
	fake := clock.NewFake(time.Now())
	repo := memory.New()
	old := fake.Now().AddDate(0, 0, -90)
	recordExecutions(t, repo, "a", "dominant", 9, old)
	recordExecutions(t, repo, "a", "other", 1, old)

	d := New(repo.Reflexes(), nil, fake, DefaultThresholds())
	report, err := d.Analyze(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, report.ReflexRepetition)
}

type fakeCarapace struct {
	at  time.Time
	ok  bool
}

func (f fakeCarapace) LastConfigChangeAt(ctx context.Context, owner string) (time.Time, bool, error) {
	return f.at, f.ok, nil
}

func TestAnalyzeDetectsCarapaceStaleness(t *testing.T) {
	fake := clock.NewFake(time.Now())
	repo := memory.New()
	carapace := fakeCarapace{at: fake.Now().AddDate(0, 0, -90), ok: true}

	d := New(repo.Reflexes(), carapace, fake, DefaultThresholds())
	report, err := d.Analyze(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, report.CarapaceStale)
}

func TestSuggestReturnsAtMostThreeHighestConfidenceFirst(t *testing.T) {
	repo := memory.New()
	m := NewMolter(repo.Reflexes(), repo.Pearls(), nil)

	report := &StalenessReport{ReflexRepetition: true, EmojiMonotony: true, CarapaceStale: true, GroomPhraseRepetition: true}
	suggestions, err := m.Suggest(context.Background(), "a", report)
	require.NoError(t, err)
	require.Len(t, suggestions, 3)
	for i := 1; i < len(suggestions); i++ {
		assert.GreaterOrEqual(t, suggestions[i-1].Confidence, suggestions[i].Confidence)
	}
}

func TestApplySuggestionFailsWithoutEditor(t *testing.T) {
	repo := memory.New()
	m := NewMolter(repo.Reflexes(), repo.Pearls(), nil)

	err := m.ApplySuggestion(context.Background(), "a", Suggestion{Type: SuggestMonotonyAlert})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotConfigured))
}
