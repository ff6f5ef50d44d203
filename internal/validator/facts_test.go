package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFactsSheet(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	payload, err := ParseHooks(validHooksJSON)
	require.NoError(t, err)
	hooks := Normalize(payload, "playful", now)

	t.Run("Shape", func(t *testing.T) {
		facts := BuildFactsSheet("Scaling Widgets With Kubernetes", "Acme Channel", hooks, "playful", now)

		assert.Equal(t, "Scaling Widgets With Kubernetes", facts.Topic)
		assert.Equal(t, "playful", facts.DraftTone)
		assert.Equal(t, "builders", facts.TargetAudience)

		_, perr := time.Parse(time.RFC3339, facts.GeneratedAtUTC)
		assert.NoError(t, perr)

		require.Len(t, facts.KeyPoints, 5)
		for _, p := range facts.KeyPoints {
			assert.True(t, strings.HasSuffix(p, "."), "key point %q must end in a period", p)
		}

		assert.LessOrEqual(t, len(facts.NotableTerms), 3)
	})

	t.Run("ExclamationsAndQuestionsBecomePeriods", func(t *testing.T) {
		loud := &HooksPayload{Hooks: []Hook{
			{Hook: "Is this real?", Who: "skeptics", Outcome: "It works!", Proof: "We measured it"},
		}}
		facts := BuildFactsSheet("Title", "", loud, "professional", now)
		for _, p := range facts.KeyPoints {
			assert.True(t, strings.HasSuffix(p, "."), "key point %q must end in a period", p)
			assert.False(t, strings.HasSuffix(p, "!."), "key point %q must not keep its bang", p)
		}
		assert.Contains(t, facts.KeyPoints, "It works.")
		assert.Contains(t, facts.KeyPoints, "Is this real.")
	})

	t.Run("EmptyInputsStillProduceFivePoints", func(t *testing.T) {
		facts := BuildFactsSheet("", "", &HooksPayload{}, "professional", now)
		assert.Equal(t, "This video", facts.Topic)
		assert.Equal(t, "general audience", facts.TargetAudience)
		assert.Len(t, facts.KeyPoints, 5)
	})

	t.Run("NotableTermsSkipStopWords", func(t *testing.T) {
		facts := BuildFactsSheet("The Truth About Kubernetes", "", &HooksPayload{}, "professional", now)
		assert.NotContains(t, facts.NotableTerms, "The")
		assert.Contains(t, facts.NotableTerms, "Kubernetes")
		assert.LessOrEqual(t, len(facts.NotableTerms), 3)
	})
}
