// Package ttsengine mirrors sttengine for the text-to-speech direction: a
// small callback interface the pipeline's /tts handler invokes, plus a
// daemon adapter and an in-process echo adapter for tests.
package ttsengine

import "context"

// Engine synthesizes speech audio from text.
type Engine interface {
	Synthesize(ctx context.Context, text, voiceID, variant, requestID string) ([]byte, error)
}
