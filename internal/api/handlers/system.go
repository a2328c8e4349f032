package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/services"
	"go.uber.org/zap"
)

const Version = "1.0.0"

type SystemHandler struct {
	config   *config.Config
	services *services.Services
	logger   *zap.Logger
}

func NewSystemHandler(cfg *config.Config, services *services.Services, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		config:   cfg,
		services: services,
		logger:   logger,
	}
}

func (h *SystemHandler) Info(c *gin.Context) {
	session := h.services.Editor.Session()
	c.JSON(http.StatusOK, gin.H{
		"name":     "Video Editor Server",
		"version":  Version,
		"go":       runtime.Version(),
		"ffmpeg":   h.services.Executor.GetFFmpegPath(),
		"ffprobe":  h.services.Executor.GetFFprobePath(),
		"features": h.config.Editor.Features,
		"session": gin.H{
			"active": session.Active(),
			"source": session.Source(),
		},
		"renders":             h.services.Executor.Running(),
		"progressSubscribers": h.services.Progress.Subscribers(),
	})
}

// ClearTemp deletes scratch files and thumbnails
func (h *SystemHandler) ClearTemp(c *gin.Context) {
	if err := h.services.Storage.ClearTemp(); err != nil {
		h.logger.Error("Failed to clear temp storage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear temp storage"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "temp storage cleared"})
}
