package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"yt-studio/pkg/logger"
)

// SetupRoutes builds the gin.Engine serving the youtube pipeline's HTTP
// surface: health, the raw ASR/TTS passthrough, and the job lifecycle.
func SetupRoutes(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(RequestID())

	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
	}))

	router.GET("/health", handler.HealthCheck)
	router.POST("/shutdown", handler.Shutdown)

	router.POST("/asr", handler.Transcribe)
	router.POST("/stt/test", handler.TestSTT)
	router.POST("/stt/bench", handler.BenchSTT)

	router.POST("/tts", handler.Synthesize)
	router.POST("/tts/test", handler.TestTTS)

	youtube := router.Group("/youtube")
	{
		youtube.POST("/jobs", handler.StartYoutubeJob)
		youtube.GET("/jobs/:id", handler.GetYoutubeJob)
		youtube.POST("/jobs/:id/cancel", handler.CancelYoutubeJob)
		youtube.GET("/status", handler.YoutubeStatus)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
