package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"yt-studio/pkg/logger"
)

// key identifies one cached provider instance.
type key struct {
	kind     string // "stt" or "tts"
	engine   string
	model    string
	extraKey string
}

// cachedEntry wraps a provider with its own init-probe mutex and memoized
// result, so warm-ups serialize per provider rather than across the whole
// registry.
type cachedEntry struct {
	provider Provider
	mu       sync.Mutex
	lastInit *InitProbeResult
}

// Registry lazily constructs and caches STT/TTS providers.
type Registry struct {
	mu         sync.Mutex
	instanceID string
	entries    map[key]*cachedEntry

	sttFactory func(engine, model string) (STTProvider, error)
	ttsFactory func(engine, model string) (TTSProvider, error)
}

// New builds a registry bound to the given provider factories. Factories are
// injected so tests can swap in fakes without touching real engines.
func New(sttFactory func(engine, model string) (STTProvider, error), ttsFactory func(engine, model string) (TTSProvider, error)) *Registry {
	return &Registry{
		instanceID: uuid.NewString(),
		entries:    make(map[key]*cachedEntry),
		sttFactory: sttFactory,
		ttsFactory: ttsFactory,
	}
}

func (r *Registry) STT(engine, model string) (STTProvider, error) {
	engine = NormalizeEngine(engine)
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{kind: "stt", engine: engine, model: model}
	if entry, ok := r.entries[k]; ok {
		return entry.provider.(STTProvider), nil
	}

	provider, err := r.sttFactory(engine, model)
	if err != nil {
		return nil, err
	}
	r.entries[k] = &cachedEntry{provider: provider}
	logger.Debug("Constructed STT provider", "engine", engine, "model", model)
	return provider, nil
}

func (r *Registry) TTS(engine, model string) (TTSProvider, error) {
	engine = NormalizeEngine(engine)
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{kind: "tts", engine: engine, model: model}
	if entry, ok := r.entries[k]; ok {
		return entry.provider.(TTSProvider), nil
	}

	provider, err := r.ttsFactory(engine, model)
	if err != nil {
		return nil, err
	}
	r.entries[k] = &cachedEntry{provider: provider}
	logger.Debug("Constructed TTS provider", "engine", engine, "model", model)
	return provider, nil
}

func (r *Registry) entryFor(kind, engine, model string) (*cachedEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key{kind: kind, engine: NormalizeEngine(engine), model: model}]
	return entry, ok
}

// EnsureInit runs (or returns the memoized result of) the init probe for a
// provider that has already been constructed via STT/TTS. At most one
// warm-up per provider runs at a time.
func (r *Registry) EnsureInit(ctx context.Context, kind, engine, model string, force bool) (InitProbeResult, error) {
	entry, ok := r.entryFor(kind, engine, model)
	if !ok {
		return InitProbeResult{}, fmt.Errorf("provider not constructed: %s/%s/%s", kind, engine, model)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.lastInit != nil && entry.lastInit.Ready && !force {
		return *entry.lastInit, nil
	}

	start := time.Now()
	result := entry.provider.InitProbe(ctx, force)
	result.StartupMs = time.Since(start).Milliseconds()
	entry.lastInit = &result
	return result, nil
}

// BuildStatus merges a fresh file probe with the memoized (or freshly run)
// init probe into one timestamped health fragment.
func (r *Registry) BuildStatus(ctx context.Context, kind, engine, model string, runInitProbe bool) (EngineStatus, error) {
	engine = NormalizeEngine(engine)
	var provider Provider
	if kind == "stt" {
		p, err := r.STT(engine, model)
		if err != nil {
			return EngineStatus{}, err
		}
		provider = p
	} else {
		p, err := r.TTS(engine, model)
		if err != nil {
			return EngineStatus{}, err
		}
		provider = p
	}

	file := provider.FileProbe()
	var init InitProbeResult
	if runInitProbe {
		result, err := r.EnsureInit(ctx, kind, engine, model, false)
		if err == nil {
			init = result
		} else {
			init = InitProbeResult{Ready: false, LastError: err.Error()}
		}
	}

	return EngineStatus{
		Engine:       engine,
		Model:        model,
		InstanceID:   r.instanceID,
		TimestampUTC: time.Now().UTC(),
		File:         file,
		Init:         init,
	}, nil
}
