package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"yt-studio/pkg/logger"
)

// Overrides holds the small set of provider defaults an operator may swap
// at runtime without restarting the backend.
type Overrides struct {
	mu        sync.RWMutex
	asrEngine string
	asrModel  string
	ttsEngine string
	ttsModel  string
}

// ASRDefault returns the current default STT (engine, model), falling back
// to cfg's static defaults when no override has been loaded.
func (o *Overrides) ASRDefault(cfg *Config) (engine, model string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	engine, model = cfg.DefaultASREngine, cfg.DefaultASRModel
	if o.asrEngine != "" {
		engine = o.asrEngine
	}
	if o.asrModel != "" {
		model = o.asrModel
	}
	return engine, model
}

// TTSDefault returns the current default TTS (engine, model).
func (o *Overrides) TTSDefault(cfg *Config) (engine, model string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	engine, model = cfg.DefaultTTSEngine, cfg.DefaultTTSModel
	if o.ttsEngine != "" {
		engine = o.ttsEngine
	}
	if o.ttsModel != "" {
		model = o.ttsModel
	}
	return engine, model
}

func (o *Overrides) apply(v *viper.Viper) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.asrEngine = v.GetString("defaults.asr_engine")
	o.asrModel = v.GetString("defaults.asr_model")
	o.ttsEngine = v.GetString("defaults.tts_engine")
	o.ttsModel = v.GetString("defaults.tts_model")
}

// WatchOverrides watches an optional config.yaml in dataRoot for changes to
// the default provider selection, applying them live via fsnotify. The file
// need not exist; absence is not an error, it just means no overrides.
func WatchOverrides(dataRoot string) *Overrides {
	overrides := &Overrides{}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataRoot)

	if err := v.ReadInConfig(); err != nil {
		logger.Debug("No runtime config overrides found", "data_root", dataRoot, "error", err)
		return overrides
	}
	overrides.apply(v)

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("Runtime config overrides changed, reloading", "file", e.Name)
		overrides.apply(v)
	})
	v.WatchConfig()

	return overrides
}
