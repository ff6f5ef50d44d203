package pipeline

const excerptSeparator = "\n[...]\n"

// BuildExcerpt returns the whole transcript when it already fits within
// maxChars, or a head+middle+tail "smart excerpt" otherwise: three slices of
// at most min(2000, (maxChars-2*len(sep))/3) bytes each, taken from the
// start, the center, and the end of the transcript and joined by a visible
// elision marker. Falls back to a simple truncation if maxChars is too
// tight to admit the separators at all.
func BuildExcerpt(transcript string, maxChars int) string {
	if maxChars < 2000 {
		maxChars = 2000
	}
	if len(transcript) <= maxChars {
		return transcript
	}

	sliceLen := (maxChars - 2*len(excerptSeparator)) / 3
	if sliceLen > 2000 {
		sliceLen = 2000
	}
	if sliceLen <= 0 {
		if maxChars > len(transcript) {
			maxChars = len(transcript)
		}
		return transcript[:maxChars]
	}

	head := transcript[:sliceLen]
	tail := transcript[len(transcript)-sliceLen:]

	center := len(transcript) / 2
	middleStart := center - sliceLen/2
	if middleStart < 0 {
		middleStart = 0
	}
	middleEnd := middleStart + sliceLen
	if middleEnd > len(transcript) {
		middleEnd = len(transcript)
		middleStart = middleEnd - sliceLen
	}
	middle := transcript[middleStart:middleEnd]

	return head + excerptSeparator + middle + excerptSeparator + tail
}
