package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validHooksJSON = `{
	"hasTimestamps": true,
	"hooks": [
		{"rank": 1, "hook": "H1", "who": "builders", "outcome": "O1", "proof": "P1",
		 "supporting_moments": [{"quote": "Q1", "startSec": null, "endSec": null}, {"quote": "Q2", "startSec": null, "endSec": null}]},
		{"rank": 2, "hook": "H2", "who": "founders", "outcome": "O2", "proof": "P2",
		 "supporting_moments": [{"quote": "Q3", "startSec": null, "endSec": null}]},
		{"rank": 3, "hook": "H3", "who": "creators", "outcome": "O3", "proof": "P3",
		 "supporting_moments": []}
	]
}`

func TestParseHooks(t *testing.T) {
	t.Run("PlainJSON", func(t *testing.T) {
		payload, err := ParseHooks(validHooksJSON)
		require.NoError(t, err)
		assert.Len(t, payload.Hooks, 3)
		assert.Equal(t, "H1", payload.Hooks[0].Hook)
	})

	t.Run("FencedJSON", func(t *testing.T) {
		raw := "Here you go:\n```json\n" + validHooksJSON + "\n```\nHope that helps."
		payload, err := ParseHooks(raw)
		require.NoError(t, err)
		assert.Len(t, payload.Hooks, 3)
	})

	t.Run("FenceWithoutTag", func(t *testing.T) {
		raw := "```\n" + validHooksJSON + "\n```"
		payload, err := ParseHooks(raw)
		require.NoError(t, err)
		assert.Len(t, payload.Hooks, 3)
	})

	t.Run("BraceSubstring", func(t *testing.T) {
		raw := "The result is " + validHooksJSON + " as requested"
		payload, err := ParseHooks(raw)
		require.NoError(t, err)
		assert.Len(t, payload.Hooks, 3)
	})

	t.Run("NotJSON", func(t *testing.T) {
		_, err := ParseHooks("I could not produce hooks, sorry.")
		assert.ErrorIs(t, err, ErrInvalidHooksJSON)
	})

	t.Run("EmptyHooksArray", func(t *testing.T) {
		_, err := ParseHooks(`{"hasTimestamps": false, "hooks": []}`)
		assert.ErrorIs(t, err, ErrInvalidHooksJSON)
	})

	t.Run("TopLevelArray", func(t *testing.T) {
		_, err := ParseHooks(`[{"hook": "H1"}]`)
		assert.ErrorIs(t, err, ErrInvalidHooksJSON)
	})
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("FullPayload", func(t *testing.T) {
		payload, err := ParseHooks(validHooksJSON)
		require.NoError(t, err)

		norm := Normalize(payload, "professional", now)
		require.Len(t, norm.Hooks, 3)
		assert.False(t, norm.HasTimestamps)
		assert.Equal(t, "professional", norm.DraftTone)

		parsed, err := time.Parse(time.RFC3339, norm.GeneratedAtUTC)
		require.NoError(t, err)
		assert.Equal(t, now, parsed)

		for i, h := range norm.Hooks {
			assert.Equal(t, i+1, h.Rank)
			assert.NotEmpty(t, h.Hook)
			assert.NotEmpty(t, h.Who)
			assert.NotEmpty(t, h.Outcome)
			assert.NotEmpty(t, h.Proof)
			assert.GreaterOrEqual(t, len(h.SupportingMoments), 2)
			assert.LessOrEqual(t, len(h.SupportingMoments), 3)
		}
	})

	t.Run("BackfillsMissingFields", func(t *testing.T) {
		payload := &HooksPayload{Hooks: []Hook{{Hook: "only hook text"}}}
		norm := Normalize(payload, "direct", now)
		require.Len(t, norm.Hooks, 1)
		h := norm.Hooks[0]
		assert.Equal(t, "only hook text", h.Outcome)
		assert.Equal(t, "only hook text", h.Proof)
		assert.NotEmpty(t, h.Who)
		assert.Len(t, h.SupportingMoments, 2)
	})

	t.Run("DropsEmptyEntriesAndCapsAtThree", func(t *testing.T) {
		payload := &HooksPayload{Hooks: []Hook{
			{}, {Hook: "A"}, {Hook: "B"}, {Hook: "C"}, {Hook: "D"},
		}}
		norm := Normalize(payload, "playful", now)
		require.Len(t, norm.Hooks, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{norm.Hooks[0].Rank, norm.Hooks[1].Rank, norm.Hooks[2].Rank})
		assert.Equal(t, "A", norm.Hooks[0].Hook)
	})

	t.Run("MomentDedupIsCaseInsensitive", func(t *testing.T) {
		payload := &HooksPayload{Hooks: []Hook{{
			Hook: "H", Outcome: "O", Proof: "P",
			SupportingMoments: []SupportingMoment{{Quote: "Same Quote"}, {Quote: "same quote"}},
		}}}
		norm := Normalize(payload, "professional", now)
		h := norm.Hooks[0]
		require.GreaterOrEqual(t, len(h.SupportingMoments), 2)
		assert.Equal(t, "Same Quote", h.SupportingMoments[0].Quote)
		assert.NotEqual(t, strings.ToLower(h.SupportingMoments[0].Quote), strings.ToLower(h.SupportingMoments[1].Quote))
	})
}

func TestIsPlaceholder(t *testing.T) {
	now := time.Now()
	real := func() *HooksPayload {
		p, _ := ParseHooks(validHooksJSON)
		return Normalize(p, "professional", now)
	}

	t.Run("RealContentIsNotPlaceholder", func(t *testing.T) {
		assert.False(t, IsPlaceholder(real()))
	})

	t.Run("FewerThanThreeHooks", func(t *testing.T) {
		p := real()
		p.Hooks = p.Hooks[:2]
		assert.True(t, IsPlaceholder(p))
	})

	t.Run("TwoGenericEntries", func(t *testing.T) {
		p := real()
		p.Hooks[0].Hook = "Value hook 1"
		p.Hooks[1].Proof = "Generated fallback hook."
		assert.True(t, IsPlaceholder(p))
	})

	t.Run("OneGenericEntryIsTolerated", func(t *testing.T) {
		p := real()
		p.Hooks[2].Outcome = "Actionable takeaway identified."
		assert.False(t, IsPlaceholder(p))
	})
}

func TestDeriveFallbackHooks(t *testing.T) {
	now := time.Now()

	t.Run("SparseTranscript", func(t *testing.T) {
		_, ok := DeriveFallbackHooks("too short. nothing here.", "professional", now)
		assert.False(t, ok)
	})

	t.Run("RichTranscript", func(t *testing.T) {
		var b strings.Builder
		sentences := []string{
			"The biggest mistake most people make is shipping the secret feature before it is proven to work.",
			"We discovered a surprising strategy that never fails when the team commits to the result fully.",
			"The truth is that the fastest path to a proven result always starts with the worst prototype.",
			"Here is the warning everyone ignores because the best strategy looks boring at first glance.",
			"Our biggest reveal was that the proven approach scales because the strategy stays simple.",
			"The fastest teams always measure the result because the truth hides in the boring numbers.",
			"One more filler sentence that is long enough to qualify for candidate selection here.",
		}
		for _, s := range sentences {
			b.WriteString(s)
			b.WriteString(" ")
		}

		payload, ok := DeriveFallbackHooks(b.String(), "direct", now)
		require.True(t, ok)
		require.Len(t, payload.Hooks, 3)
		assert.False(t, payload.HasTimestamps)
		assert.Equal(t, "direct", payload.DraftTone)
		for i, h := range payload.Hooks {
			assert.Equal(t, i+1, h.Rank)
			assert.NotEmpty(t, h.Hook)
			assert.NotEmpty(t, h.Who)
			assert.Len(t, h.SupportingMoments, 2)
		}
	})
}
