package sttengine

import (
	"context"
	"fmt"
)

// Echo is an in-process Engine used by tests: it never shells out, and
// deterministically reports the size of the audio it was given.
type Echo struct {
	FixedText string
}

// Transcribe returns FixedText if set, otherwise a deterministic placeholder
// that reflects the audio length and requested engine/model.
func (e *Echo) Transcribe(ctx context.Context, audio []byte, engine, model, languageHint, requestID string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	if e.FixedText != "" {
		return e.FixedText, nil
	}
	return fmt.Sprintf("transcribed %d bytes via %s/%s", len(audio), engine, model), nil
}
