// Package validator parses and normalizes model output under the hooks
// JSON schema and the three-section drafts format, with deterministic
// repair/fallback paths for when the model's output can't be trusted as-is.
package validator

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidHooksJSON is returned by ParseHooks when no candidate
// extraction yields a usable hooks JSON object.
var ErrInvalidHooksJSON = errors.New("validator: no candidate yielded a usable hooks JSON object")

// SupportingMoment is one quote cue backing a hook.
type SupportingMoment struct {
	Quote    string   `json:"quote"`
	StartSec *float64 `json:"startSec"`
	EndSec   *float64 `json:"endSec"`
}

// Hook is one of the exactly-three ranked hooks in a HooksPayload.
type Hook struct {
	Rank              int                `json:"rank"`
	Hook              string             `json:"hook"`
	Who               string             `json:"who"`
	Outcome           string             `json:"outcome"`
	Proof             string             `json:"proof"`
	SupportingMoments []SupportingMoment `json:"supporting_moments"`
}

// HooksPayload is the persisted hooks.json shape.
type HooksPayload struct {
	HasTimestamps  bool   `json:"hasTimestamps"`
	GeneratedAtUTC string `json:"generatedAtUtc"`
	DraftTone      string `json:"draftTone"`
	Hooks          []Hook `json:"hooks"`
}

type rawHook struct {
	Rank              json.Number        `json:"rank"`
	Hook              string             `json:"hook"`
	Who               string             `json:"who"`
	Outcome           string             `json:"outcome"`
	Proof             string             `json:"proof"`
	SupportingMoments []SupportingMoment `json:"supporting_moments"`
}

type rawPayload struct {
	HasTimestamps bool      `json:"hasTimestamps"`
	Hooks         []rawHook `json:"hooks"`
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractCandidates returns, in priority order, the full string, the
// contents of the outermost fenced code block (if any), and the
// first-brace-to-last-brace substring (if any).
func extractCandidates(raw string) []string {
	candidates := []string{raw}
	if m := fenceRe.FindStringSubmatch(raw); len(m) == 2 {
		candidates = append(candidates, m[1])
	}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			candidates = append(candidates, raw[start:end+1])
		}
	}
	return candidates
}

// ParseHooks parses raw model output into a rawPayload using the
// three-candidate extraction strategy, then converts it to a HooksPayload
// (Normalize is a separate step). Returns an error if no candidate yields a
// JSON object with a non-empty hooks array.
func ParseHooks(raw string) (*HooksPayload, error) {
	for _, candidate := range extractCandidates(raw) {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" || trimmed[0] != '{' {
			continue
		}
		var payload rawPayload
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			continue
		}
		if len(payload.Hooks) == 0 {
			continue
		}
		return toPayload(payload), nil
	}
	return nil, ErrInvalidHooksJSON
}

func toPayload(raw rawPayload) *HooksPayload {
	hooks := make([]Hook, 0, len(raw.Hooks))
	for _, h := range raw.Hooks {
		rank := 0
		if n, err := strconv.Atoi(h.Rank.String()); err == nil {
			rank = n
		}
		hooks = append(hooks, Hook{
			Rank:              rank,
			Hook:              h.Hook,
			Who:               h.Who,
			Outcome:           h.Outcome,
			Proof:             h.Proof,
			SupportingMoments: h.SupportingMoments,
		})
	}
	return &HooksPayload{HasTimestamps: raw.HasTimestamps, Hooks: hooks}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Normalize applies the field-backfill, re-ranking, supporting-moment
// padding, and metadata-stamping rules described for the hooks schema.
func Normalize(payload *HooksPayload, draftTone string, now time.Time) *HooksPayload {
	kept := make([]Hook, 0, 3)
	for _, h := range payload.Hooks {
		if firstNonEmpty(h.Hook, h.Outcome, h.Proof) == "" {
			continue
		}
		if len(kept) == 3 {
			break
		}
		kept = append(kept, h)
	}

	for i := range kept {
		h := &kept[i]
		h.Hook = firstNonEmpty(h.Hook, h.Outcome, h.Proof)
		h.Outcome = firstNonEmpty(h.Outcome, h.Proof, h.Hook)
		h.Proof = firstNonEmpty(h.Proof, h.Outcome, h.Hook)
		h.Who = firstNonEmpty(h.Who, "the creator")
		h.Rank = i + 1
		h.SupportingMoments = backfillMoments(h.SupportingMoments, h.Proof, h.Outcome, h.Hook)
	}

	return &HooksPayload{
		HasTimestamps:  false,
		GeneratedAtUTC: now.UTC().Format(time.RFC3339),
		DraftTone:      draftTone,
		Hooks:          kept,
	}
}

// backfillMoments ensures at least two supporting moments, pulling quote
// text from the given fallback fields in order and skipping case-insensitive
// duplicates, capping the result at three.
func backfillMoments(moments []SupportingMoment, fallbacks ...string) []SupportingMoment {
	seen := make(map[string]bool, len(moments))
	result := make([]SupportingMoment, 0, 3)
	for _, m := range moments {
		quote := strings.TrimSpace(m.Quote)
		if quote == "" || seen[strings.ToLower(quote)] {
			continue
		}
		seen[strings.ToLower(quote)] = true
		result = append(result, m)
		if len(result) == 3 {
			return result
		}
	}
	candidates := append(append([]string{}, fallbacks...), "No supporting quote provided.")
	for _, c := range candidates {
		if len(result) >= 2 {
			break
		}
		c = strings.TrimSpace(c)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		result = append(result, SupportingMoment{Quote: c})
	}
	return result
}

// IsPlaceholder reports whether the model fell back to generic boilerplate
// rather than content grounded in the transcript.
func IsPlaceholder(payload *HooksPayload) bool {
	if len(payload.Hooks) < 3 {
		return true
	}
	count := 0
	for _, h := range payload.Hooks {
		if strings.HasPrefix(strings.ToLower(h.Hook), "value hook ") {
			count++
			continue
		}
		if strings.EqualFold(strings.TrimSpace(h.Proof), "generated fallback hook.") {
			count++
			continue
		}
		if strings.EqualFold(strings.TrimSpace(h.Outcome), "actionable takeaway identified.") {
			count++
		}
	}
	return count >= 2
}

// keywordWeights ranks candidate sentences for deterministic hook derivation
// when the model output is unusable and the transcript has to speak for
// itself.
var keywordWeights = []string{
	"secret", "mistake", "surprising", "never", "always", "proven",
	"strategy", "result", "reveal", "because", "truth", "warning",
	"biggest", "fastest", "worst", "best",
}

type scoredSentence struct {
	text  string
	score int
}

var sentenceSplitRe = regexp.MustCompile(`(?s)[.!?]+\s+`)

// DeriveFallbackHooks attempts to build three hooks directly from transcript
// sentences when the model's own output is unusable. Returns ok=false when
// the transcript is too sparse (fewer than six qualifying sentences).
func DeriveFallbackHooks(transcript, draftTone string, now time.Time) (*HooksPayload, bool) {
	sentences := sentenceSplitRe.Split(transcript, -1)
	var candidates []scoredSentence
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) < 45 {
			continue
		}
		score := 0
		lower := strings.ToLower(s)
		for _, kw := range keywordWeights {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		candidates = append(candidates, scoredSentence{text: s, score: score})
	}
	if len(candidates) < 6 {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	top := candidates[:6]

	templates := []struct{ hook, who string }{
		{"Most people miss this: %s", "viewers who skim instead of watch closely"},
		{"Here's the part nobody talks about: %s", "anyone who's tried this before and stalled"},
		{"This single moment changes everything: %s", "the audience this video is actually for"},
	}

	hooks := make([]Hook, 0, 3)
	for i, t := range templates {
		lead := top[i*2].text
		proof := top[i*2+1].text
		hooks = append(hooks, Hook{
			Rank:    i + 1,
			Hook:    sprintfTemplate(t.hook, truncateSentence(lead, 160)),
			Who:     t.who,
			Outcome: truncateSentence(lead, 200),
			Proof:   truncateSentence(proof, 200),
			SupportingMoments: []SupportingMoment{
				{Quote: truncateSentence(lead, 200)},
				{Quote: truncateSentence(proof, 200)},
			},
		})
	}

	return &HooksPayload{
		HasTimestamps:  false,
		GeneratedAtUTC: now.UTC().Format(time.RFC3339),
		DraftTone:      draftTone,
		Hooks:          hooks,
	}, true
}

func sprintfTemplate(template, value string) string {
	return strings.Replace(template, "%s", value, 1)
}

func truncateSentence(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}
