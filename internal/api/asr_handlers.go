package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"yt-studio/internal/config"
)

// pcm16MonoBytesPerSecond assumes the 16kHz/mono/16-bit WAV format the
// pipeline's ConvertingAudio stage always produces, used only to estimate
// audioSeconds for the /stt/bench diagnostic.
const pcm16MonoBytesPerSecond = 16000 * 2

func extractAudio(c *gin.Context) ([]byte, error) {
	var fh *multipart.FileHeader
	var err error
	fh, err = c.FormFile("audio")
	if err != nil {
		fh, err = c.FormFile("file")
	}
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// asrParams reads the shared engine/model/language/session/request form
// fields, defaulting unset ones from the backend's configured defaults.
func (h *Handler) asrParams(c *gin.Context) (engine, modelID, language, sessionID, requestID string) {
	defaultEngine, defaultModel := h.overrides.ASRDefault(h.cfg)
	engine = c.DefaultPostForm("engine", defaultEngine)
	modelID = c.DefaultPostForm("modelId", defaultModel)
	language = config.NormalizeLanguage(c.PostForm("language"))
	sessionID = c.PostForm("sessionId")
	requestID = c.PostForm("requestId")
	if requestID == "" {
		requestID = requestIDFrom(c)
	}
	return
}

type asrResponse struct {
	Text      string `json:"text"`
	RequestID string `json:"requestId"`
}

type asrUnavailableResponse struct {
	Error        string `json:"error"`
	ErrorCode    string `json:"errorCode"`
	RequestID    string `json:"requestId"`
	EngineStatus any    `json:"engineStatus"`
	Message      string `json:"message"`
}

// Transcribe runs speech-to-text over an uploaded audio clip.
//
// @Summary Transcribe audio
// @Tags asr
// @Accept multipart/form-data
// @Produce json
// @Param audio formData file true "Audio clip"
// @Param engine formData string false "STT engine"
// @Param modelId formData string false "STT model id"
// @Param language formData string false "Language hint"
// @Success 200 {object} asrResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} asrUnavailableResponse
// @Router /asr [post]
func (h *Handler) Transcribe(c *gin.Context) {
	audio, err := extractAudio(c)
	if err != nil || len(audio) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio field is required"})
		return
	}

	engine, modelID, language, sessionID, requestID := h.asrParams(c)
	_ = sessionID

	provider, err := h.providers.STT(engine, modelID)
	if err != nil {
		h.writeSTTUnavailable(c, engine, modelID, requestID, err)
		return
	}
	if status := provider.InitProbe(c.Request.Context(), false); !status.Ready {
		h.writeSTTUnavailable(c, engine, modelID, requestID, nil)
		return
	}

	text, err := provider.Transcribe(c.Request.Context(), audio, language, requestID)
	if err != nil {
		h.writeSTTUnavailable(c, engine, modelID, requestID, err)
		return
	}

	c.JSON(http.StatusOK, asrResponse{Text: text, RequestID: requestID})
}

func (h *Handler) writeSTTUnavailable(c *gin.Context, engine, modelID, requestID string, err error) {
	status, _ := h.providers.BuildStatus(c.Request.Context(), "stt", engine, modelID, false)
	message := "STT provider is not ready."
	if err != nil {
		message = err.Error()
	}
	c.JSON(http.StatusServiceUnavailable, asrUnavailableResponse{
		Error:        message,
		ErrorCode:    "stt_unavailable",
		RequestID:    requestID,
		EngineStatus: status,
		Message:      message,
	})
}

// TestSTT runs the provider's init probe and reports readiness, without
// requiring a caller-supplied audio clip.
//
// @Summary Diagnostic STT readiness check
// @Tags asr
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /stt/test [post]
func (h *Handler) TestSTT(c *gin.Context) {
	engine, modelID, _, _, requestID := h.asrParams(c)
	status, err := h.providers.BuildStatus(c.Request.Context(), "stt", engine, modelID, true)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, asrUnavailableResponse{
			Error: err.Error(), ErrorCode: "stt_unavailable", RequestID: requestID, Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestId": requestID, "engineStatus": status})
}

type benchResponse struct {
	AudioSeconds        float64 `json:"audioSeconds"`
	WallMs              int64   `json:"wallMs"`
	RTF                 float64 `json:"rtf"`
	StartupMs           int64   `json:"startupMs"`
	ProcessWorkingSetMb float64 `json:"processWorkingSetMb"`
	Device              string  `json:"device"`
}

// BenchSTT transcribes an uploaded clip and reports timing/throughput
// figures for operator diagnostics.
//
// @Summary Benchmark STT throughput
// @Tags asr
// @Accept multipart/form-data
// @Produce json
// @Param audio formData file true "Audio clip"
// @Success 200 {object} benchResponse
// @Failure 400 {object} map[string]interface{}
// @Router /stt/bench [post]
func (h *Handler) BenchSTT(c *gin.Context) {
	audio, err := extractAudio(c)
	if err != nil || len(audio) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio field is required"})
		return
	}

	engine, modelID, language, _, requestID := h.asrParams(c)
	provider, err := h.providers.STT(engine, modelID)
	if err != nil {
		h.writeSTTUnavailable(c, engine, modelID, requestID, err)
		return
	}

	initStart := time.Now()
	initResult := provider.InitProbe(c.Request.Context(), false)
	startupMs := time.Since(initStart).Milliseconds()
	if !initResult.Ready {
		h.writeSTTUnavailable(c, engine, modelID, requestID, nil)
		return
	}

	start := time.Now()
	if _, err := provider.Transcribe(c.Request.Context(), audio, language, requestID); err != nil {
		h.writeSTTUnavailable(c, engine, modelID, requestID, err)
		return
	}
	wall := time.Since(start)

	audioSeconds := float64(len(audio)) / float64(pcm16MonoBytesPerSecond)
	rtf := 0.0
	if audioSeconds > 0 {
		rtf = wall.Seconds() / audioSeconds
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, benchResponse{
		AudioSeconds:        audioSeconds,
		WallMs:              wall.Milliseconds(),
		RTF:                 rtf,
		StartupMs:           startupMs,
		ProcessWorkingSetMb: float64(mem.Sys) / (1024 * 1024),
		Device:              h.cfg.Device,
	})
}
