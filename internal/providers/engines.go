package providers

import (
	"context"
	"strings"
)

// engineAliases maps user-facing engine tags onto their canonical names.
var engineAliases = map[string]string{
	"whisper":        "faster-whisper",
	"fasterwhisper":  "faster-whisper",
	"faster_whisper": "faster-whisper",
}

var supportedSTTEngines = map[string]bool{
	"faster-whisper": true,
	"whisper-cpp":    true,
	"echo":           true,
}

var supportedTTSEngines = map[string]bool{
	"kokoro": true,
	"piper":  true,
	"echo":   true,
}

// NormalizeEngine lowercases and de-aliases an engine tag.
func NormalizeEngine(engine string) string {
	tag := strings.ToLower(strings.TrimSpace(engine))
	if canonical, ok := engineAliases[tag]; ok {
		return canonical
	}
	return tag
}

// Unsupported is the provider constructed for engine tags nothing can serve.
// Construction never fails; the error surfaces through the same probe path
// as ordinary failures so the health surface reports it uniformly.
type Unsupported struct {
	EngineTag string
}

func (u *Unsupported) lastError() string {
	return u.EngineTag + "_engine_unsupported"
}

func (u *Unsupported) FileProbe() FileProbeResult {
	return FileProbeResult{Installed: false, LastError: u.lastError()}
}

func (u *Unsupported) InitProbe(ctx context.Context, force bool) InitProbeResult {
	return InitProbeResult{Ready: false, LastError: u.lastError()}
}

func (u *Unsupported) Transcribe(ctx context.Context, audio []byte, languageHint, requestID string) (string, error) {
	return "", &UnsupportedEngineError{Engine: u.EngineTag}
}

func (u *Unsupported) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	return nil, &UnsupportedEngineError{Engine: u.EngineTag}
}

// UnsupportedEngineError is returned by an Unsupported provider's inference
// calls.
type UnsupportedEngineError struct {
	Engine string
}

func (e *UnsupportedEngineError) Error() string {
	return e.Engine + "_engine_unsupported"
}
