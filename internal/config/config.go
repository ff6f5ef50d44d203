// Package config loads and validates the backend's runtime configuration:
// a .env file (if present) layered under process environment variables,
// with every bound clamped to the range the pipeline can safely operate in.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the youtube pipeline backend.
type Config struct {
	Port string
	Host string

	DataRoot string

	MaxConcurrentJobs  int
	JobHistoryMax      int
	JobTTLSeconds      int
	LogCaptureMaxChars int

	DownloadTimeoutSec int
	ConvertTimeoutSec  int
	SummaryTimeoutSec  int

	YtDlpPath  string
	FFmpegPath string

	ASREngineCmd         string
	TTSEngineCmd         string
	AllowUnsafeArtifacts bool

	ModelRoot        string
	ModelDownloadURL string
	SocketDir        string

	DefaultASREngine   string
	DefaultASRModel    string
	DefaultASRLanguage string
	DefaultTTSEngine   string
	DefaultTTSModel    string
	DefaultTTSVoiceID  string
	KokoroVariant      string
	Device             string
}

// Load reads configuration from .env (if present) and the environment,
// applying defaults and clamping every bounded value.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Host:     getEnv("HOST", "127.0.0.1"),
		DataRoot: getEnv("ST_YOUTUBE_DATA_ROOT", "data"),

		MaxConcurrentJobs:  clampInt("ST_YOUTUBE_MAX_CONCURRENT_JOBS", 1, 1, 4),
		JobHistoryMax:      clampInt("ST_YOUTUBE_JOB_HISTORY_MAX", 100, 10, 5000),
		JobTTLSeconds:      clampInt("ST_YOUTUBE_JOB_TTL_SECONDS", 86400, 300, 604800),
		LogCaptureMaxChars: clampInt("ST_YOUTUBE_LOG_CAPTURE_MAX_CHARS", 12000, 1000, 200000),

		DownloadTimeoutSec: clampInt("ST_YOUTUBE_DOWNLOAD_TIMEOUT_SEC", 1200, 60, 10800),
		ConvertTimeoutSec:  clampInt("ST_YOUTUBE_CONVERT_TIMEOUT_SEC", 1200, 60, 10800),
		SummaryTimeoutSec:  clampInt("ST_YOUTUBE_SUMMARY_TIMEOUT_SEC", 120, 10, 1800),

		YtDlpPath:  getEnv("ST_YOUTUBE_YTDLP_PATH", ""),
		FFmpegPath: getEnv("ST_YOUTUBE_FFMPEG_PATH", ""),

		ASREngineCmd:         getEnv("ST_YOUTUBE_ASR_ENGINE_CMD", ""),
		TTSEngineCmd:         getEnv("ST_YOUTUBE_TTS_ENGINE_CMD", ""),
		AllowUnsafeArtifacts: truthy(getEnv("ST_YOUTUBE_ALLOW_UNSAFE_ARTIFACTS", "")),

		ModelRoot:        getEnv("ST_YOUTUBE_MODEL_ROOT", filepath.Join("data", "models")),
		ModelDownloadURL: getEnv("ST_YOUTUBE_MODEL_URL", ""),
		SocketDir:        getEnv("ST_YOUTUBE_SOCKET_DIR", os.TempDir()),

		DefaultASREngine:   getEnv("ST_YOUTUBE_STT_ENGINE", "whisper"),
		DefaultASRModel:    getEnv("ST_YOUTUBE_STT_MODEL_ID", "base"),
		DefaultASRLanguage: normalizeLanguage(getEnv("ST_YOUTUBE_STT_LANGUAGE", "")),
		DefaultTTSEngine:   getEnv("ST_YOUTUBE_TTS_ENGINE", "kokoro"),
		DefaultTTSModel:    getEnv("ST_YOUTUBE_TTS_MODEL_ID", "default"),
		DefaultTTSVoiceID:  getEnv("ST_YOUTUBE_TTS_VOICE_ID", "default"),
		KokoroVariant:      getEnv("ST_YOUTUBE_KOKORO_VARIANT", ""),
		Device:             getEnv("ST_YOUTUBE_DEVICE", "cpu"),
	}
}

// MetadataResolveTimeoutSec returns the timeout used for the --dump-single-json
// stage: the download timeout, clamped to at most 300s.
func (c *Config) MetadataResolveTimeoutSec() int {
	if c.DownloadTimeoutSec > 300 {
		return 300
	}
	return c.DownloadTimeoutSec
}

// NormalizeLanguage applies the blank->en, auto/detect->"" rule.
func NormalizeLanguage(lang string) string {
	return normalizeLanguage(lang)
}

func normalizeLanguage(lang string) string {
	trimmed := strings.ToLower(strings.TrimSpace(lang))
	switch trimmed {
	case "":
		return "en"
	case "auto", "detect":
		return ""
	default:
		return trimmed
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// clampInt reads an int env var, falling back to defaultValue on an absent
// or unparseable value, and clamping the result into [min, max].
func clampInt(key string, defaultValue, min, max int) int {
	value := defaultValue
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			value = parsed
		}
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
