package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/models"
	"github.com/reelcut/video-editor/backend/internal/services"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"go.uber.org/zap"
)

type VideoHandler struct {
	services *services.Services
	config   *config.Config
	logger   *zap.Logger
}

func NewVideoHandler(services *services.Services, cfg *config.Config, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{
		services: services,
		config:   cfg,
		logger:   logger,
	}
}

// Upload stores a source video, music track or voiceover recording. The
// returned uri is what the editor endpoints expect.
func (h *VideoHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	if file.Size > h.config.Server.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	filename := services.NewUploadName(filepath.Ext(file.Filename))
	destPath := h.services.Storage.GetVideoPath(filename)

	if err := c.SaveUploadedFile(file, destPath); err != nil {
		h.logger.Error("Failed to save uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	video, err := h.services.Video.CreateFromUpload(c.Request.Context(), file.Filename, destPath)
	if err != nil {
		h.logger.Error("Failed to create video record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create video"})
		return
	}

	h.logger.Info("Video uploaded successfully",
		zap.String("id", video.ID),
		zap.String("filename", file.Filename),
		zap.Int64("size", file.Size),
	)

	c.JSON(http.StatusCreated, models.UploadResponse{
		VideoID: video.ID,
		Video:   video,
	})
}

// Output serves a rendered export
func (h *VideoHandler) Output(c *gin.Context) {
	filename := c.Param("filename")
	path := h.services.Storage.GetOutputPath(filename)

	if !h.services.Storage.FileExists(path) {
		h.logger.Warn("Output file not found", zap.String("filename", filename))
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("X-Content-Type-Options", "nosniff")
	c.FileAttachment(path, filepath.Base(path))
}

// OutputManifest returns the export config an output was rendered from
func (h *VideoHandler) OutputManifest(c *gin.Context) {
	cfg, err := h.services.Storage.LoadManifest(storage.ManifestID(c.Param("filename")))
	if err != nil {
		if errors.Is(err, storage.ErrManifestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "manifest not found"})
			return
		}
		h.logger.Error("Failed to load manifest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load manifest"})
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// DeleteOutput removes a rendered export and its manifest
func (h *VideoHandler) DeleteOutput(c *gin.Context) {
	filename := c.Param("filename")
	path := h.services.Storage.GetOutputPath(filename)

	if !h.services.Storage.FileExists(path) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	if err := h.services.Storage.DeleteFile(path); err != nil {
		h.logger.Error("Failed to delete output", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete output"})
		return
	}
	if err := h.services.Storage.DeleteFile(h.services.Storage.GetManifestPath(storage.ManifestID(filename))); err != nil {
		h.logger.Warn("Failed to delete manifest", zap.String("filename", filename), zap.Error(err))
	}

	h.logger.Info("Output deleted", zap.String("filename", filename))
	c.Status(http.StatusNoContent)
}
