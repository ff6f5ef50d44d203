package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"yt-studio/internal/ttsengine"
)

// DaemonTTS adapts a ttsengine.Engine plus an optional local model/variant
// directory into the Provider contract.
type DaemonTTS struct {
	Engine      ttsengine.Engine
	EngineName  string
	ModelID     string
	Variant     string
	VoiceID     string
	ModelDir    string
	AllowUnsafe bool
}

func (p *DaemonTTS) FileProbe() FileProbeResult {
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

func (p *DaemonTTS) InitProbe(ctx context.Context, force bool) InitProbeResult {
	daemon, ok := p.Engine.(*ttsengine.Daemon)
	if !ok {
		return InitProbeResult{Ready: true}
	}
	if err := daemon.EnsureRunning(ctx); err != nil {
		return InitProbeResult{Ready: false, LastError: err.Error()}
	}
	return InitProbeResult{Ready: true}
}

func (p *DaemonTTS) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = p.VoiceID
	}
	return p.Engine.Synthesize(ctx, text, voiceID, p.Variant, p.ModelID)
}

// NewTTSFactory builds the ttsFactory callback the registry needs.
func NewTTSFactory(engineCmd, socketDir string, allowUnsafe bool, modelRoot, variant, defaultVoiceID string) func(engine, model string) (TTSProvider, error) {
	return func(engine, model string) (TTSProvider, error) {
		tag := NormalizeEngine(engine)
		if !supportedTTSEngines[tag] {
			return &Unsupported{EngineTag: tag}, nil
		}
		if engineCmd == "" {
			return &DaemonTTS{Engine: ttsengine.Echo{}, EngineName: tag, ModelID: model, Variant: variant, VoiceID: defaultVoiceID, AllowUnsafe: allowUnsafe}, nil
		}
		socketPath := filepath.Join(socketDir, fmt.Sprintf("tts-%s-%s.sock", tag, model))
		daemon := ttsengine.NewDaemon(ttsengine.DaemonConfig{SocketPath: socketPath, Command: engineCmd})
		modelDir := ""
		if modelRoot != "" {
			modelDir = filepath.Join(modelRoot, tag, model)
		}
		return &DaemonTTS{Engine: daemon, EngineName: tag, ModelID: model, Variant: variant, VoiceID: defaultVoiceID, ModelDir: modelDir, AllowUnsafe: allowUnsafe}, nil
	}
}
