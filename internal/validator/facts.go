package validator

import (
	"regexp"
	"strings"
	"time"
)

// FactsSheet is the persisted facts_sheet.json shape. Derived purely from
// title/channel/hooks -- it never calls the generation engine.
type FactsSheet struct {
	GeneratedAtUTC string   `json:"generatedAtUtc"`
	Topic          string   `json:"topic"`
	TargetAudience string   `json:"targetAudience"`
	KeyPoints      []string `json:"keyPoints"`
	NotableTerms   []string `json:"notableTerms"`
	DraftTone      string   `json:"draftTone"`
}

var titleCaseWordRe = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]{2,}\b`)

var stopWords = map[string]bool{
	"The": true, "This": true, "That": true, "How": true, "Why": true,
	"What": true, "And": true, "For": true, "With": true, "You": true,
}

// BuildFactsSheet derives the facts sheet from the resolved title/channel
// and the already-normalized hooks payload.
func BuildFactsSheet(title, channel string, hooks *HooksPayload, draftTone string, now time.Time) *FactsSheet {
	topic := strings.TrimSpace(title)
	if topic == "" {
		topic = "This video"
	}

	audience := deriveAudience(hooks)
	keyPoints := deriveKeyPoints(hooks, topic)
	terms := deriveNotableTerms(title, channel, hooks)

	return &FactsSheet{
		GeneratedAtUTC: now.UTC().Format(time.RFC3339),
		Topic:          topic,
		TargetAudience: audience,
		KeyPoints:      keyPoints,
		NotableTerms:   terms,
		DraftTone:      draftTone,
	}
}

func deriveAudience(hooks *HooksPayload) string {
	for _, h := range hooks.Hooks {
		if who := strings.TrimSpace(h.Who); who != "" {
			return who
		}
	}
	return "general audience"
}

func ensurePeriod(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	s = strings.TrimRight(s, "!?")
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

func deriveKeyPoints(hooks *HooksPayload, topic string) []string {
	points := make([]string, 0, 5)
	seen := map[string]bool{}
	add := func(s string) {
		s = ensurePeriod(s)
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		points = append(points, s)
	}

	for _, h := range hooks.Hooks {
		add(h.Outcome)
	}
	for _, h := range hooks.Hooks {
		add(h.Hook)
	}
	for _, h := range hooks.Hooks {
		add(h.Proof)
	}

	filler := []string{
		"This video centers on " + strings.TrimSuffix(topic, ".") + ".",
		"The creator walks through the reasoning behind the central claim.",
		"Supporting evidence is drawn directly from the recording.",
		"The takeaways are meant to be actionable rather than purely informational.",
		"Viewers are left with a concrete next step to try.",
	}
	for _, f := range filler {
		if len(points) >= 5 {
			break
		}
		add(f)
	}

	if len(points) > 5 {
		points = points[:5]
	}
	return points
}

func deriveNotableTerms(title, channel string, hooks *HooksPayload) []string {
	terms := make([]string, 0, 3)
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || stopWords[s] || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		terms = append(terms, s)
	}

	for _, m := range titleCaseWordRe.FindAllString(title, -1) {
		if len(terms) == 3 {
			return terms
		}
		add(m)
	}
	if channel != "" && len(terms) < 3 {
		add(channel)
	}
	for _, h := range hooks.Hooks {
		if len(terms) == 3 {
			break
		}
		for _, m := range titleCaseWordRe.FindAllString(h.Hook, -1) {
			if len(terms) == 3 {
				break
			}
			add(m)
		}
	}
	return terms
}
