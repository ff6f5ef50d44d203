// Package api exposes the HTTP surface over the pipeline orchestrator and
// the STT/TTS provider registry: job endpoints, health, and the raw
// ASR/TTS passthrough routes.
package api

import (
	"time"

	"yt-studio/internal/config"
	"yt-studio/internal/pipeline"
	"yt-studio/internal/providers"
)

// Version information, set by the build (GoReleaser-style ldflags); left as
// "dev"/"none" in dev builds.
var (
	Version = "dev"
	Commit  = "none"
)

// Handler holds every collaborator the HTTP layer needs. Constructed once at
// startup in internal/cli/serve.go and threaded into the router.
type Handler struct {
	cfg       *config.Config
	overrides *config.Overrides
	manager   *pipeline.Manager
	providers *providers.Registry
	startedAt time.Time
}

// NewHandler builds a Handler bound to its collaborators.
func NewHandler(cfg *config.Config, overrides *config.Overrides, manager *pipeline.Manager, registry *providers.Registry) *Handler {
	if overrides == nil {
		overrides = &config.Overrides{}
	}
	return &Handler{
		cfg:       cfg,
		overrides: overrides,
		manager:   manager,
		providers: registry,
		startedAt: time.Now(),
	}
}
