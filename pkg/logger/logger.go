// Package logger provides a small slog wrapper shared by every package in
// the backend, tuned for a single-operator local process rather than a
// fleet: clean timestamps, a handful of leveled convenience functions, and
// a Gin middleware that stays quiet for high-frequency polling endpoints.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with convenience methods.
type Logger struct {
	*slog.Logger
}

// LogLevel represents logging levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	defaultLogger *Logger
	currentLevel  = LevelInfo
)

// Init initializes the global logger with the given level name.
func Init(level string) {
	switch strings.ToLower(level) {
	case "debug":
		currentLevel = LevelDebug
	case "info", "":
		currentLevel = LevelInfo
	case "warn", "warning":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	default:
		currentLevel = LevelInfo
	}

	var slogLevel slog.Level
	switch currentLevel {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: false,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().Format("15:04:05"))}
			}
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				switch level {
				case slog.LevelDebug:
					a.Value = slog.StringValue("DEBUG")
				case slog.LevelInfo:
					a.Value = slog.StringValue("INFO ")
				case slog.LevelWarn:
					a.Value = slog.StringValue("WARN ")
				case slog.LevelError:
					a.Value = slog.StringValue("ERROR")
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	defaultLogger = &Logger{slog.New(handler)}
}

// Get returns the default logger, lazily initializing from LOG_LEVEL.
func Get() *Logger {
	if defaultLogger == nil {
		Init(os.Getenv("LOG_LEVEL"))
	}
	return defaultLogger
}

// GetLevel returns the current log level.
func GetLevel() LogLevel {
	return currentLevel
}

func Debug(msg string, args ...any) {
	if currentLevel <= LevelDebug {
		Get().Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if currentLevel <= LevelInfo {
		Get().Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if currentLevel <= LevelWarn {
		Get().Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if currentLevel <= LevelError {
		Get().Error(msg, args...)
	}
}

// WithContext returns a logger with one extra key/value attached.
func WithContext(key string, value any) *Logger {
	return &Logger{Get().With(key, value)}
}

// Startup prints a clean one-line startup message plus a detailed debug line.
func Startup(step, message string, args ...any) {
	if currentLevel <= LevelInfo {
		fmt.Printf("\033[36m[+]\033[0m %s\n", message)
	}
	if currentLevel <= LevelDebug {
		Debug("Startup step", append([]any{"step", step, "message", message}, args...)...)
	}
}

// JobStarted/JobCompleted/JobFailed log pipeline lifecycle events.

func JobStarted(jobID, stage string, args ...any) {
	Info("Job stage started", "job_id", jobID, "stage", stage)
	Debug("Job stage started with details", append([]any{"job_id", jobID, "stage", stage}, args...)...)
}

func JobCompleted(jobID string, duration time.Duration) {
	Info("Job completed", "job_id", jobID, "duration", duration.String())
}

func JobFailed(jobID string, duration time.Duration, err error) {
	Error("Job failed", "job_id", jobID, "error", err.Error())
	Debug("Job failed with details", "job_id", jobID, "duration", duration.String(), "error", err.Error())
}

// GinLogger is a Gin middleware that logs requests, suppressing
// high-frequency polling endpoints (job status, health) at INFO level.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		noisy := path == "/health" || strings.Contains(path, "/youtube/jobs/")
		if noisy && currentLevel > LevelDebug {
			return
		}

		status := c.Writer.Status()
		if currentLevel <= LevelDebug {
			Debug("API request",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"duration", fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1e6),
				"ip", c.ClientIP())
			return
		}

		fmt.Printf("INFO  %s %s %s %s%d%s %s\n",
			time.Now().Format("15:04:05"),
			c.Request.Method,
			path,
			getStatusColor(status),
			status,
			"\033[0m",
			fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1e6))
	}
}

func getStatusColor(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "\033[32m"
	case status >= 300 && status < 400:
		return "\033[33m"
	case status >= 400 && status < 500:
		return "\033[31m"
	case status >= 500:
		return "\033[35m"
	default:
		return "\033[37m"
	}
}

// SetGinOutput redirects Gin's own default writers to stderr, leaving stdout
// to GinLogger.
func SetGinOutput() {
	gin.DefaultWriter = os.Stderr
	gin.DefaultErrorWriter = os.Stderr
}
