// Package sttengine defines the speech-to-text callback interface the
// pipeline invokes during the Transcribing stage, plus two concrete
// adapters: a daemon adapter that dials a local engine process over a
// Unix-socket gRPC connection, and an in-process echo adapter used by
// tests.
package sttengine

import (
	"context"
	"errors"
)

// Engine transcribes a single clip of audio. The pipeline is authoritative
// only for when this is called; the engine owns model choice, warm-up, and
// its own error semantics.
type Engine interface {
	Transcribe(ctx context.Context, audio []byte, engine, model, languageHint, requestID string) (string, error)
}

// ErrEmptyAudio is returned by adapters that refuse to transcribe a
// zero-byte clip rather than passing it to the engine process.
var ErrEmptyAudio = errors.New("sttengine: empty audio")
