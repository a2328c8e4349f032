package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelcut/video-editor/backend/internal/editor"
	"github.com/reelcut/video-editor/backend/internal/services"
	"go.uber.org/zap"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrSegmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrFeatureDisabled):
		return http.StatusForbidden
	case errors.Is(err, editor.ErrInvalidSegment),
		errors.Is(err, editor.ErrInvalidTrim),
		errors.Is(err, editor.ErrTooManyAudioTracks),
		errors.Is(err, editor.ErrSourceMissing),
		errors.Is(err, services.ErrInvalidThumbnailRequest):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrSessionNotActive),
		errors.Is(err, services.ErrSessionBusy),
		errors.Is(err, services.ErrNoRequest),
		errors.Is(err, services.ErrExportInProgress),
		errors.Is(err, services.ErrRequestCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
