package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yt-studio/internal/pipeline"
)

// startJobRequest is the wire shape of POST /youtube/jobs.
type startJobRequest struct {
	VideoURL     string `json:"videoUrl" binding:"required"`
	LanguageHint string `json:"languageHint"`
	KeepAudio    bool   `json:"keepAudio"`
	ASREngine    string `json:"asrEngine"`
	ASRModel     string `json:"asrModel" binding:"required"`
	DraftTone    string `json:"draftTone"`

	GenerationBaseURL     string  `json:"generationBaseUrl"`
	GenerationModel       string  `json:"generationModel"`
	GenerationTemperature float64 `json:"generationTemperature"`
	MaxInputChars         int     `json:"maxInputChars"`
	GenerationTimeoutSec  int     `json:"generationTimeoutSec"`
}

// StartYoutubeJob starts a new job converting a youtube URL into a
// transcript plus hooks/drafts artifacts.
//
// @Summary Start a youtube pipeline job
// @Tags youtube
// @Accept json
// @Produce json
// @Param request body startJobRequest true "Job parameters"
// @Success 200 {object} pipeline.View
// @Failure 400 {object} map[string]interface{}
// @Router /youtube/jobs [post]
func (h *Handler) StartYoutubeJob(c *gin.Context) {
	var req startJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, pipeline.CodeInvalidURL, "Request body must include videoUrl and asrModel.")
		return
	}

	if req.MaxInputChars <= 0 {
		req.MaxInputChars = 12000
	}
	if req.GenerationTimeoutSec <= 0 {
		req.GenerationTimeoutSec = h.cfg.SummaryTimeoutSec
	}
	if req.ASREngine == "" {
		req.ASREngine, _ = h.overrides.ASRDefault(h.cfg)
	}

	view, err := h.manager.StartJob(pipeline.Request{
		VideoURL:     req.VideoURL,
		LanguageHint: req.LanguageHint,
		KeepAudio:    req.KeepAudio,
		ASREngine:    req.ASREngine,
		ASRModel:     req.ASRModel,
		DraftTone:    pipeline.DraftTone(req.DraftTone),
		Generation: pipeline.GenerationConfig{
			BaseURL:        req.GenerationBaseURL,
			Model:          req.GenerationModel,
			Temperature:    req.GenerationTemperature,
			MaxInputChars:  req.MaxInputChars,
			HTTPTimeoutSec: req.GenerationTimeoutSec,
		},
	})
	if err != nil {
		writeFailureErr(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetYoutubeJob returns the current view of a job.
//
// @Summary Get a youtube pipeline job
// @Tags youtube
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} pipeline.View
// @Failure 404 {object} map[string]interface{}
// @Router /youtube/jobs/{id} [get]
func (h *Handler) GetYoutubeJob(c *gin.Context) {
	view, ok := h.manager.GetJob(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "", "Job not found.")
		return
	}
	c.JSON(http.StatusOK, view)
}

// CancelYoutubeJob cancels a job. Idempotent on terminal jobs.
//
// @Summary Cancel a youtube pipeline job
// @Tags youtube
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} pipeline.View
// @Failure 404 {object} map[string]interface{}
// @Router /youtube/jobs/{id}/cancel [post]
func (h *Handler) CancelYoutubeJob(c *gin.Context) {
	view, ok := h.manager.CancelJob(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "", "Job not found.")
		return
	}
	c.JSON(http.StatusOK, view)
}

// YoutubeStatus reports fetcher/transcoder dependency availability.
//
// @Summary Pipeline dependency status
// @Tags youtube
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /youtube/status [get]
func (h *Handler) YoutubeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.DependencyStatus())
}
