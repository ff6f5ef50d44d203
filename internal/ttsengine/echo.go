package ttsengine

import "context"

// Echo is an in-process Engine used by tests: it returns a deterministic
// byte sequence derived from the input text length rather than real audio.
type Echo struct{}

func (Echo) Synthesize(ctx context.Context, text, voiceID, variant, requestID string) ([]byte, error) {
	out := make([]byte, len(text))
	for i := range out {
		out[i] = byte(i % 256)
	}
	return out, nil
}
