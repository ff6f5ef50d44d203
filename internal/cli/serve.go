package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"yt-studio/internal/api"
	"yt-studio/internal/config"
	"yt-studio/internal/diagnostics"
	"yt-studio/internal/generation"
	"yt-studio/internal/pipeline"
	"yt-studio/internal/providers"
	"yt-studio/pkg/binaries"
	"yt-studio/pkg/downloader"
	"yt-studio/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// flagEnvBindings maps each CLI flag to the environment variable that may
// override it. Flags win over env, env wins over built-in defaults.
var flagEnvBindings = map[string]string{
	"port":           "ST_YOUTUBE_PORT",
	"stt-engine":     "ST_YOUTUBE_STT_ENGINE",
	"stt-model-id":   "ST_YOUTUBE_STT_MODEL_ID",
	"stt-language":   "ST_YOUTUBE_STT_LANGUAGE",
	"device":         "ST_YOUTUBE_DEVICE",
	"tts-engine":     "ST_YOUTUBE_TTS_ENGINE",
	"tts-model-id":   "ST_YOUTUBE_TTS_MODEL_ID",
	"tts-voice-id":   "ST_YOUTUBE_TTS_VOICE_ID",
	"kokoro-variant": "ST_YOUTUBE_KOKORO_VARIANT",
}

func init() {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("port", "", "HTTP listen port")
	flags.String("stt-engine", "", "Default STT engine")
	flags.String("stt-model-id", "", "Default STT model id")
	flags.String("stt-language", "", "Default STT language hint")
	flags.String("device", "", "Inference device (cpu, cuda, ...)")
	flags.String("tts-engine", "", "Default TTS engine")
	flags.String("tts-model-id", "", "Default TTS model id")
	flags.String("tts-voice-id", "", "Default TTS voice id")
	flags.String("kokoro-variant", "", "Kokoro model variant")

	serveCmd.Flags().AddFlagSet(flags)
	rootCmd.Flags().AddFlagSet(flags)

	for name, env := range flagEnvBindings {
		_ = viper.BindPFlag(name, serveCmd.Flags().Lookup(name))
		_ = viper.BindEnv(name, env)
	}

	rootCmd.AddCommand(serveCmd)
}

// applyFlagOverrides layers the flag/env bindings over the .env-derived
// config. Empty values leave the config untouched.
func applyFlagOverrides(cfg *config.Config) {
	set := func(dst *string, key string) {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Port, "port")
	set(&cfg.DefaultASREngine, "stt-engine")
	set(&cfg.DefaultASRModel, "stt-model-id")
	set(&cfg.Device, "device")
	set(&cfg.DefaultTTSEngine, "tts-engine")
	set(&cfg.DefaultTTSModel, "tts-model-id")
	set(&cfg.DefaultTTSVoiceID, "tts-voice-id")
	set(&cfg.KokoroVariant, "kokoro-variant")
	if v := viper.GetString("stt-language"); v != "" {
		cfg.DefaultASRLanguage = config.NormalizeLanguage(v)
	}
}

func runServe() error {
	logger.Init(os.Getenv("LOG_LEVEL"))

	logger.Startup("config", "Loading configuration")
	cfg := config.Load()
	applyFlagOverrides(cfg)

	logger.Startup("logging", "Logging initialized")
	logger.Info("Starting YT Studio backend", "version", Version, "commit", Commit)

	if cfg.ModelDownloadURL != "" {
		logger.Startup("models", "Checking model artifacts")
		dest := filepath.Join(cfg.ModelRoot, filepath.Base(cfg.ModelDownloadURL))
		if _, err := downloader.EnsureFile(context.Background(), cfg.ModelDownloadURL, dest); err != nil {
			logger.Warn("Model auto-download failed, providers may report missing files", "error", err)
		}
	}

	logger.Startup("diagnostics", "Opening diagnostics store")
	diagStore, err := diagnostics.Open(cfg.DataRoot)
	if err != nil {
		logger.Warn("Diagnostics store unavailable, generation calls will not be recorded", "error", err)
		diagStore = nil
	}
	defer diagStore.Close()

	overrides := config.WatchOverrides(cfg.DataRoot)

	logger.Startup("providers", "Constructing provider registry")
	registry := providers.New(
		providers.NewSTTFactory(cfg.ASREngineCmd, cfg.SocketDir, cfg.AllowUnsafeArtifacts, cfg.ModelRoot),
		providers.NewTTSFactory(cfg.TTSEngineCmd, cfg.SocketDir, cfg.AllowUnsafeArtifacts, cfg.ModelRoot, cfg.KokoroVariant, cfg.DefaultTTSVoiceID),
	)

	deps := pipeline.DependencyPaths{YtDLP: binaries.ProbeYtDLP(), FFmpeg: binaries.ProbeFFmpeg()}
	logger.Info("Resolved external tools",
		"yt_dlp", deps.YtDLP.Path, "yt_dlp_available", deps.YtDLP.Available,
		"ffmpeg", deps.FFmpeg.Path, "ffmpeg_available", deps.FFmpeg.Available)

	store := pipeline.NewStore(cfg.JobTTLSeconds, cfg.JobHistoryMax)

	transcribe := func(ctx context.Context, audio []byte, engine, model, languageHint, requestID string) (string, error) {
		if engine == "" || model == "" {
			engine, model = overrides.ASRDefault(cfg)
		}
		provider, err := registry.STT(engine, model)
		if err != nil {
			return "", err
		}
		result, err := registry.EnsureInit(ctx, "stt", engine, model, false)
		if err != nil {
			return "", err
		}
		if !result.Ready {
			return "", fmt.Errorf("stt provider not ready: %s", result.LastError)
		}
		return provider.Transcribe(ctx, audio, config.NormalizeLanguage(languageHint), requestID)
	}

	newGen := func(gc pipeline.GenerationConfig) pipeline.Generator {
		timeout := gc.HTTPTimeoutSec
		if timeout <= 0 {
			timeout = cfg.SummaryTimeoutSec
		}
		return &diagnostics.InstrumentedGenerator{Inner: generation.New(gc.BaseURL, timeout), Store: diagStore}
	}

	manager := pipeline.NewManager(store, pipeline.ManagerConfig{
		DataRoot:             cfg.DataRoot,
		MaxConcurrentJobs:    cfg.MaxConcurrentJobs,
		LogCaptureMaxChars:   cfg.LogCaptureMaxChars,
		DownloadTimeoutSec:   cfg.DownloadTimeoutSec,
		ConvertTimeoutSec:    cfg.ConvertTimeoutSec,
		SummaryTimeoutSec:    cfg.SummaryTimeoutSec,
		YtDlpPath:            binaries.YtDLP(),
		FFmpegPath:           binaries.FFmpeg(),
		AllowUnsafeArtifacts: cfg.AllowUnsafeArtifacts,
	}, transcribe, newGen, deps)

	logger.Startup("routes", "Configuring routes")
	handler := api.NewHandler(cfg, overrides, manager, registry)
	router := api.SetupRoutes(handler)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Startup("listen", "HTTP server listening on http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", "error", err)
		return err
	}
	logger.Info("Server exited")
	return nil
}
