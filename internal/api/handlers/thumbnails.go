package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reelcut/video-editor/backend/internal/services"
	"go.uber.org/zap"
)

type ThumbnailHandler struct {
	services *services.Services
	logger   *zap.Logger
}

func NewThumbnailHandler(services *services.Services, logger *zap.Logger) *ThumbnailHandler {
	return &ThumbnailHandler{
		services: services,
		logger:   logger,
	}
}

// Generate extracts the timeline strip for the open session
func (h *ThumbnailHandler) Generate(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
		return
	}
	width, err := strconv.Atoi(c.DefaultQuery("width", "160"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid width"})
		return
	}

	session := h.services.Editor.Session()
	if !session.Active() {
		c.JSON(http.StatusConflict, gin.H{"error": "editor session is not active"})
		return
	}

	// thumbnails always cover the untrimmed source
	duration := session.PlaybackState().OriginalDuration
	batch, err := h.services.Thumbnails.Generate(c.Request.Context(), session.Source(), duration, count, width)
	if err != nil {
		respondError(c, h.logger, "Failed to generate thumbnails", err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *ThumbnailHandler) Frame(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame index"})
		return
	}

	path, ok := h.services.Thumbnails.FramePath(c.Param("batch"), index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}

	c.Header("Content-Type", "image/jpeg")
	c.File(path)
}
