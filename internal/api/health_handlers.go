package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"yt-studio/pkg/logger"
)

type healthResponse struct {
	SchemaVersion int       `json:"schemaVersion"`
	InstanceID    string    `json:"instanceId"`
	TimestampUTC  time.Time `json:"timestampUtc"`
	Status        string    `json:"status"`
	Ready         bool      `json:"ready"`
	ASRReady      bool      `json:"asrReady"`
	TTSReady      bool      `json:"ttsReady"`
	Version       string    `json:"version"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	Message       string    `json:"message,omitempty"`
	ASR           any       `json:"asr"`
	TTS           any       `json:"tts"`
}

// HealthCheck reports the engine-level readiness of the STT and TTS
// providers selected by the configured defaults.
//
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	asrEngine, asrModel := h.overrides.ASRDefault(h.cfg)
	ttsEngine, ttsModel := h.overrides.TTSDefault(h.cfg)
	asrStatus, asrErr := h.providers.BuildStatus(ctx, "stt", asrEngine, asrModel, true)
	ttsStatus, ttsErr := h.providers.BuildStatus(ctx, "tts", ttsEngine, ttsModel, true)

	resp := healthResponse{
		SchemaVersion: 1,
		TimestampUTC:  time.Now().UTC(),
		Version:       Version,
		ASR:           asrStatus,
		TTS:           ttsStatus,
	}

	resp.ASRReady = asrErr == nil && asrStatus.Init.Ready
	resp.TTSReady = ttsErr == nil && ttsStatus.Init.Ready
	resp.Ready = resp.ASRReady && resp.TTSReady
	resp.InstanceID = asrStatus.InstanceID
	if resp.InstanceID == "" {
		resp.InstanceID = ttsStatus.InstanceID
	}

	switch {
	case resp.Ready:
		resp.Status = "ok"
	case asrErr != nil:
		resp.Status = "loading"
		resp.ErrorCode = "asr_provider_error"
		resp.Message = asrErr.Error()
	case ttsErr != nil:
		resp.Status = "loading"
		resp.ErrorCode = "tts_provider_error"
		resp.Message = ttsErr.Error()
	default:
		resp.Status = "loading"
	}

	c.JSON(http.StatusOK, resp)
}

// Shutdown responds then exits the process shortly after, so the HTTP
// response has time to flush to the caller.
//
// @Summary Shut down the backend
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /shutdown [post]
func (h *Handler) Shutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "shutting down"})
	go func() {
		time.Sleep(200 * time.Millisecond)
		logger.Info("Shutdown requested via HTTP")
		os.Exit(0)
	}()
}
