package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"yt-studio/internal/sttengine"
)

// DaemonSTT adapts a sttengine.Daemon (or any Engine) plus an optional local
// model directory into the Provider contract.
type DaemonSTT struct {
	Engine      sttengine.Engine
	EngineName  string
	ModelID     string
	ModelDir    string // empty if the engine needs no local model directory
	AllowUnsafe bool
}

func (p *DaemonSTT) FileProbe() FileProbeResult {
	if p.ModelDir == "" {
		return FileProbeResult{Installed: true}
	}
	manifest, err := LoadManifest(p.ModelDir)
	if err != nil {
		return FileProbeResult{Installed: false, LastError: err.Error()}
	}
	missing, err := VerifyManifest(p.ModelDir, manifest, p.AllowUnsafe)
	if err != nil {
		return FileProbeResult{Installed: false, LastError: err.Error()}
	}
	if len(missing) > 0 {
		return FileProbeResult{Installed: false, Missing: missing}
	}
	return FileProbeResult{Installed: true}
}

func (p *DaemonSTT) InitProbe(ctx context.Context, force bool) InitProbeResult {
	daemon, ok := p.Engine.(*sttengine.Daemon)
	if !ok {
		// Non-daemon engines (e.g. the test Echo adapter) are always ready.
		return InitProbeResult{Ready: true}
	}
	if err := daemon.EnsureRunning(ctx); err != nil {
		return InitProbeResult{Ready: false, LastError: err.Error()}
	}
	return InitProbeResult{Ready: true}
}

func (p *DaemonSTT) Transcribe(ctx context.Context, audio []byte, languageHint, requestID string) (string, error) {
	return p.Engine.Transcribe(ctx, audio, p.EngineName, p.ModelID, languageHint, requestID)
}

// NewSTTFactory builds the sttFactory callback the registry needs, wiring
// ST_YOUTUBE_ASR_ENGINE_CMD into a daemon per engine/model pair the first
// time it's requested.
func NewSTTFactory(engineCmd, socketDir string, allowUnsafe bool, modelRoot string) func(engine, model string) (STTProvider, error) {
	return func(engine, model string) (STTProvider, error) {
		tag := NormalizeEngine(engine)
		if !supportedSTTEngines[tag] {
			return &Unsupported{EngineTag: tag}, nil
		}
		if engineCmd == "" {
			return &DaemonSTT{Engine: &sttengine.Echo{}, EngineName: tag, ModelID: model, AllowUnsafe: allowUnsafe}, nil
		}
		socketPath := filepath.Join(socketDir, fmt.Sprintf("%s-%s.sock", tag, model))
		daemon := sttengine.NewDaemon(sttengine.DaemonConfig{SocketPath: socketPath, Command: engineCmd})
		modelDir := ""
		if modelRoot != "" {
			modelDir = filepath.Join(modelRoot, tag, model)
		}
		return &DaemonSTT{Engine: daemon, EngineName: tag, ModelID: model, ModelDir: modelDir, AllowUnsafe: allowUnsafe}, nil
	}
}
