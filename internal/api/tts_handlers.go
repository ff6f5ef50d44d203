package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultTTSSampleRate = 24000

type synthesizeRequest struct {
	Text       string `json:"text" binding:"required"`
	RequestID  string `json:"requestId"`
	Engine     string `json:"engine"`
	ModelID    string `json:"modelId"`
	VoiceID    string `json:"voiceId"`
	Voice      string `json:"voice"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
}

func (r synthesizeRequest) resolvedVoice() string {
	if r.VoiceID != "" {
		return r.VoiceID
	}
	return r.Voice
}

// Synthesize converts text to speech audio.
//
// @Summary Synthesize speech
// @Tags tts
// @Accept json
// @Produce audio/wav
// @Param request body synthesizeRequest true "Synthesis parameters"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /tts [post]
func (h *Handler) Synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	defaultEngine, defaultModel := h.overrides.TTSDefault(h.cfg)
	engine := req.Engine
	if engine == "" {
		engine = defaultEngine
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = defaultModel
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = requestIDFrom(c)
	}
	format := req.Format
	if format == "" {
		format = "wav"
	}
	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultTTSSampleRate
	}

	provider, err := h.providers.TTS(engine, modelID)
	if err != nil {
		h.writeTTSUnavailable(c, engine, modelID, requestID, err)
		return
	}
	if status := provider.InitProbe(c.Request.Context(), false); !status.Ready {
		h.writeTTSUnavailable(c, engine, modelID, requestID, nil)
		return
	}

	audio, err := provider.Synthesize(c.Request.Context(), req.Text, req.resolvedVoice())
	if err != nil {
		h.writeTTSUnavailable(c, engine, modelID, requestID, err)
		return
	}

	c.Header("X-Sample-Rate", strconv.Itoa(sampleRate))
	c.Header("X-Channels", "1")
	c.Header("X-Format", format)
	c.Header("X-Request-Id", requestID)
	c.Data(http.StatusOK, "audio/wav", audio)
}

func (h *Handler) writeTTSUnavailable(c *gin.Context, engine, modelID, requestID string, err error) {
	status, _ := h.providers.BuildStatus(c.Request.Context(), "tts", engine, modelID, false)
	message := "TTS provider is not ready."
	if err != nil {
		message = err.Error()
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":        message,
		"errorCode":    "tts_unavailable",
		"requestId":    requestID,
		"engineStatus": status,
		"message":      message,
	})
}

// TestTTS runs the provider's init probe and reports readiness.
//
// @Summary Diagnostic TTS readiness check
// @Tags tts
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /tts/test [post]
func (h *Handler) TestTTS(c *gin.Context) {
	defaultEngine, defaultModel := h.overrides.TTSDefault(h.cfg)
	engine := c.DefaultPostForm("engine", defaultEngine)
	modelID := c.DefaultPostForm("modelId", defaultModel)
	requestID := c.PostForm("requestId")
	if requestID == "" {
		requestID = requestIDFrom(c)
	}

	status, err := h.providers.BuildStatus(c.Request.Context(), "tts", engine, modelID, true)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(), "errorCode": "tts_unavailable", "requestId": requestID, "message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestId": requestID, "engineStatus": status})
}
