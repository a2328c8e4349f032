package api

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/reelcut/video-editor/backend/internal/api/handlers"
	"github.com/reelcut/video-editor/backend/internal/api/middleware"
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/services"
	"go.uber.org/zap"
)

func NewRouter(services *services.Services, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	// CORS
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CorsOrigins) == 0 || slices.Contains(cfg.Server.CorsOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CorsOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		system := api.Group("/system")
		{
			systemHandler := handlers.NewSystemHandler(cfg, services, logger)
			system.GET("/info", systemHandler.Info)
			system.DELETE("/temp", systemHandler.ClearTemp)
		}

		editorGroup := api.Group("/editor")
		{
			editorHandler := handlers.NewEditorHandler(services, logger)
			editorGroup.POST("/open", editorHandler.Open)
			editorGroup.GET("/result", editorHandler.Result)
			editorGroup.POST("/cancel", editorHandler.Cancel)
			editorGroup.POST("/reset", editorHandler.Reset)
			editorGroup.GET("/playback", editorHandler.GetPlayback)
			editorGroup.PUT("/playback", editorHandler.SetPlayback)
			editorGroup.PUT("/trim", editorHandler.SetTrim)
			editorGroup.PUT("/crop", editorHandler.SetCrop)
			editorGroup.DELETE("/crop", editorHandler.ClearCrop)
			editorGroup.PUT("/active", editorHandler.SetActive)
			editorGroup.GET("/export-config", editorHandler.ExportConfig)
			editorGroup.POST("/export", editorHandler.Export)

			segmentHandler := handlers.NewSegmentHandler(services, logger)

			audio := editorGroup.Group("/audio")
			{
				audio.GET("", segmentHandler.ListAudio)
				audio.PUT("", segmentHandler.SetAudio)
				audio.POST("", segmentHandler.AddAudio)
				audio.PATCH("/:id", segmentHandler.UpdateAudio)
				audio.DELETE("/:id", segmentHandler.RemoveAudio)
			}

			text := editorGroup.Group("/text")
			{
				text.GET("", segmentHandler.ListText)
				text.PUT("", segmentHandler.SetText)
				text.POST("", segmentHandler.AddText)
				text.PATCH("/:id", segmentHandler.UpdateText)
				text.DELETE("/:id", segmentHandler.RemoveText)
				text.POST("/:id/commit", segmentHandler.CommitText)
			}

			voiceover := editorGroup.Group("/voiceover")
			{
				voiceover.GET("", segmentHandler.ListVoiceover)
				voiceover.PUT("", segmentHandler.SetVoiceover)
				voiceover.POST("", segmentHandler.AddVoiceover)
				voiceover.PATCH("/:id", segmentHandler.UpdateVoiceover)
				voiceover.DELETE("/:id", segmentHandler.RemoveVoiceover)
			}

			thumbnailHandler := handlers.NewThumbnailHandler(services, logger)
			editorGroup.GET("/thumbnails", thumbnailHandler.Generate)
			api.GET("/thumbnails/:batch/:index", thumbnailHandler.Frame)

			progressHandler := handlers.NewProgressHandler(services, cfg, logger)
			editorGroup.GET("/progress", progressHandler.Stream)
		}

		videoHandler := handlers.NewVideoHandler(services, cfg, logger)
		api.POST("/videos/upload", videoHandler.Upload)
		api.GET("/outputs/:filename", videoHandler.Output)
		api.GET("/outputs/:filename/manifest", videoHandler.OutputManifest)
		api.DELETE("/outputs/:filename", videoHandler.DeleteOutput)
	}

	return router
}
