package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var delimiterRe = regexp.MustCompile(`(?i)===\s*(LINKEDIN_CAROUSEL|X_THREAD|NEWSLETTER_SUMMARY)\s*===`)

// SplitDrafts splits raw model output on the three required delimiters, in
// order, matching case-insensitively and tolerating whitespace inside the
// delimiter line. Returns ok=false if any delimiter is absent or out of
// order.
func SplitDrafts(raw string) (linkedin, xThread, newsletter string, ok bool) {
	spans := map[string][2]int{}
	for _, m := range delimiterRe.FindAllStringSubmatchIndex(raw, -1) {
		name := strings.ToUpper(raw[m[2]:m[3]])
		if _, seen := spans[name]; !seen {
			spans[name] = [2]int{m[0], m[1]}
		}
	}
	li, lok := spans["LINKEDIN_CAROUSEL"]
	xi, xok := spans["X_THREAD"]
	ni, nok := spans["NEWSLETTER_SUMMARY"]
	if !lok || !xok || !nok || !(li[0] < xi[0] && xi[0] < ni[0]) {
		return "", "", "", false
	}
	linkedin = strings.TrimSpace(raw[li[1]:xi[0]])
	xThread = strings.TrimSpace(raw[xi[1]:ni[0]])
	newsletter = strings.TrimSpace(raw[ni[1]:])
	return linkedin, xThread, newsletter, true
}

var slideMarkerRe = regexp.MustCompile(`(?im)^\s*slide\s+(\d+)\s*:`)

// ValidateLinkedIn extracts and renumbers slides, synthesizing them from raw
// lines when no markers are present. Valid iff the final slide count is in
// [5, 8].
func ValidateLinkedIn(text string) ([]string, bool) {
	locs := slideMarkerRe.FindAllStringIndex(text, -1)
	var rawSlides []string
	if len(locs) > 0 {
		for i, loc := range locs {
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			rawSlides = append(rawSlides, strings.TrimSpace(text[loc[0]:end]))
		}
	} else {
		lines := nonBlankLines(text)
		if len(lines) >= 5 {
			limit := len(lines)
			if limit > 8 {
				limit = 8
			}
			rawSlides = append(rawSlides, lines[:limit]...)
		}
	}

	slides := make([]string, 0, len(rawSlides))
	for i, s := range rawSlides {
		body := slideMarkerRe.ReplaceAllString(s, "")
		body = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), ":"))
		slides = append(slides, fmt.Sprintf("Slide %d: %s", i+1, body))
	}

	if len(slides) < 5 || len(slides) > 8 {
		return nil, false
	}
	return slides, true
}

var xPostMarkerRe = regexp.MustCompile(`(?m)^\s*\[(\d)/5\]\s*`)

// ValidateXThread extracts and normalizes exactly five posts. Valid iff
// there are exactly five and each is at most 280 bytes after normalization.
func ValidateXThread(text string) ([]string, bool) {
	locs := xPostMarkerRe.FindAllStringIndex(text, -1)
	var raw []string
	if len(locs) > 0 {
		for i, loc := range locs {
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			body := xPostMarkerRe.ReplaceAllString(text[loc[0]:end], "")
			raw = append(raw, strings.TrimSpace(body))
		}
	} else {
		lines := nonBlankLines(text)
		if len(lines) >= 5 {
			raw = lines[:5]
		}
	}

	if len(raw) != 5 {
		return nil, false
	}

	posts := make([]string, 5)
	for i, body := range raw {
		post := fmt.Sprintf("[%d/5] %s", i+1, body)
		if len(post) > 280 {
			return nil, false
		}
		posts[i] = post
	}
	return posts, true
}

// TruncateXPost clamps a post to 277 bytes plus an ellipsis, re-applying the
// [N/5] prefix.
func TruncateXPost(index int, body string) string {
	prefix := fmt.Sprintf("[%d/5] ", index)
	maxBody := 277 - len(prefix)
	if maxBody < 0 {
		maxBody = 0
	}
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	return prefix + body
}

var headingRe = regexp.MustCompile(`(?m)^\s*#{2,3}\s+\S`)
var bulletRe = regexp.MustCompile(`(?m)^\s*[-*]\s+\S`)

// ValidateNewsletter reports whether text qualifies as a usable newsletter
// section: no stray delimiter marker, minimum length, at least one heading,
// at least one bullet.
func ValidateNewsletter(text string) bool {
	if strings.Contains(text, "===") {
		return false
	}
	if len(text) < 320 {
		return false
	}
	if !headingRe.MatchString(text) {
		return false
	}
	if !bulletRe.MatchString(text) {
		return false
	}
	return true
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// FallbackLinkedIn emits seven pre-authored slides interpolating the first
// three hooks, used when even the repair pass fails to produce a valid
// LinkedIn carousel.
func FallbackLinkedIn(hooks *HooksPayload) string {
	h := padHooks(hooks, 3)
	slides := []string{
		fmt.Sprintf("Slide 1: %s", h[0].Hook),
		fmt.Sprintf("Slide 2: Who this is for: %s", h[0].Who),
		fmt.Sprintf("Slide 3: %s", h[0].Outcome),
		fmt.Sprintf("Slide 4: %s", h[1].Hook),
		fmt.Sprintf("Slide 5: %s", h[1].Outcome),
		fmt.Sprintf("Slide 6: %s", h[2].Hook),
		fmt.Sprintf("Slide 7: Key proof: %s", h[2].Proof),
	}
	return strings.Join(slides, "\n\n")
}

// FallbackNewsletter emits a three-section markdown template (Overview, Key
// Takeaways, Why It Matters) populated from the hooks and facts sheet.
func FallbackNewsletter(hooks *HooksPayload, facts *FactsSheet) string {
	h := padHooks(hooks, 3)
	var b strings.Builder
	fmt.Fprintf(&b, "## Overview\n\n%s\n\n", facts.Topic)
	b.WriteString("This edition distills the recording into the takeaways below, so you can decide in under a minute whether the full video deserves a closer watch.\n\n")
	b.WriteString("### Key Takeaways\n\n")
	for _, point := range facts.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", point)
	}
	b.WriteString("\n### Why It Matters\n\n")
	fmt.Fprintf(&b, "- %s\n", h[0].Outcome)
	fmt.Fprintf(&b, "- %s\n", h[1].Outcome)
	fmt.Fprintf(&b, "- %s\n", h[2].Outcome)
	b.WriteString("\nIf even one of these lands for you, the full recording walks through the reasoning and the evidence behind it in order.\n")
	return b.String()
}

func padHooks(hooks *HooksPayload, n int) []Hook {
	result := make([]Hook, n)
	for i := 0; i < n; i++ {
		if i < len(hooks.Hooks) {
			result[i] = hooks.Hooks[i]
			continue
		}
		result[i] = Hook{Hook: "Key insight " + strconv.Itoa(i+1), Who: "general audience", Outcome: "A concrete takeaway.", Proof: "Drawn from the recording."}
	}
	return result
}
