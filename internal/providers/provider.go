// Package providers is a lazily-constructed, cached-by-key registry of
// STT/TTS providers, each exposing a cheap file probe and a memoized
// initialization probe.
package providers

import (
	"context"
	"time"
)

// FileProbeResult is the outcome of a cheap, local-only readiness check.
type FileProbeResult struct {
	Installed bool     `json:"installed"`
	Missing   []string `json:"missing,omitempty"`
	LastError string   `json:"lastError,omitempty"`
}

// InitProbeResult is the outcome of the (possibly expensive) warm-up call.
type InitProbeResult struct {
	Ready     bool   `json:"ready"`
	StartupMs int64  `json:"startupMs"`
	LastError string `json:"lastError,omitempty"`
}

// EngineStatus merges file- and init-probe state for the health surface.
type EngineStatus struct {
	Engine       string          `json:"engine"`
	Model        string          `json:"model"`
	InstanceID   string          `json:"instanceId"`
	TimestampUTC time.Time       `json:"timestampUtc"`
	File         FileProbeResult `json:"file"`
	Init         InitProbeResult `json:"init"`
}

// Provider is one (engine, model, extraKey) adapter. FileProbe must be
// cheap and side-effect-free; InitProbe may load a model and run a tiny
// dummy inference and is memoized by the registry.
type Provider interface {
	FileProbe() FileProbeResult
	InitProbe(ctx context.Context, force bool) InitProbeResult
}

// STTProvider transcribes raw audio bytes.
type STTProvider interface {
	Provider
	Transcribe(ctx context.Context, audio []byte, languageHint, requestID string) (string, error)
}

// TTSProvider synthesizes speech from text.
type TTSProvider interface {
	Provider
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}
