package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelcut/video-editor/backend/internal/models"
	"github.com/reelcut/video-editor/backend/internal/services"
	"go.uber.org/zap"
)

const maxResultWait = 60 * time.Second

type EditorHandler struct {
	services *services.Services
	logger   *zap.Logger
}

func NewEditorHandler(services *services.Services, logger *zap.Logger) *EditorHandler {
	return &EditorHandler{
		services: services,
		logger:   logger,
	}
}

// Open starts an editing session. A missing source answers with the failed
// result right away.
func (h *EditorHandler) Open(c *gin.Context) {
	var opts models.OpenOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.services.Editor.OpenEditor(c.Request.Context(), opts)
	if err != nil {
		respondError(c, h.logger, "Failed to open editor", err)
		return
	}

	if result, resolved := req.Result(); resolved {
		c.JSON(http.StatusOK, gin.H{"requestId": req.ID, "result": result})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"requestId": req.ID,
		"playback":  h.services.Editor.Session().PlaybackState(),
	})
}

// Result returns the outcome of the latest request. ?wait=30s long-polls.
func (h *EditorHandler) Result(c *gin.Context) {
	req, ok := h.services.Editor.Request()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no editor request"})
		return
	}

	if result, resolved := req.Result(); resolved {
		c.JSON(http.StatusOK, gin.H{"requestId": req.ID, "result": result})
		return
	}

	wait, err := time.ParseDuration(c.DefaultQuery("wait", "0s"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait duration"})
		return
	}
	if wait <= 0 {
		c.JSON(http.StatusAccepted, gin.H{"requestId": req.ID, "pending": true})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), min(wait, maxResultWait))
	defer cancel()

	result, err := req.Wait(ctx)
	if err != nil {
		c.JSON(http.StatusAccepted, gin.H{"requestId": req.ID, "pending": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestId": req.ID, "result": result})
}

func (h *EditorHandler) Cancel(c *gin.Context) {
	if err := h.services.Editor.Cancel(); err != nil {
		respondError(c, h.logger, "Failed to cancel editor", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": models.EditorResult{Success: false}})
}

func (h *EditorHandler) Reset(c *gin.Context) {
	h.services.Editor.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "session reset"})
}

func (h *EditorHandler) GetPlayback(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Editor.Session().PlaybackState())
}

// SetPlayback moves the playhead or, with duration, reports the decoded length
func (h *EditorHandler) SetPlayback(c *gin.Context) {
	var req struct {
		CurrentTime *float64 `json:"currentTime"`
		Duration    *float64 `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.services.Editor.Session()
	if req.Duration != nil {
		if err := session.MediaLoaded(*req.Duration); err != nil {
			respondError(c, h.logger, "Failed to record duration", err)
			return
		}
	}
	if req.CurrentTime != nil {
		if err := session.SetCurrentTime(*req.CurrentTime); err != nil {
			respondError(c, h.logger, "Failed to seek", err)
			return
		}
	}

	c.JSON(http.StatusOK, session.PlaybackState())
}

// SetTrim stores the trim window. With commit set the segments are shifted
// into the trimmed timeline.
func (h *EditorHandler) SetTrim(c *gin.Context) {
	var req struct {
		Start  *float64 `json:"start" binding:"required"`
		End    *float64 `json:"end" binding:"required"`
		Commit bool     `json:"commit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.services.Editor.Session()
	var err error
	if req.Commit {
		err = session.CommitTrim(*req.Start, *req.End)
	} else {
		err = session.SetTrim(*req.Start, *req.End)
	}
	if err != nil {
		respondError(c, h.logger, "Failed to set trim", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trim":     session.Trim(),
		"playback": session.PlaybackState(),
	})
}

func (h *EditorHandler) SetCrop(c *gin.Context) {
	var req struct {
		Selection string `json:"selection" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Editor.Session().SetCrop(req.Selection); err != nil {
		respondError(c, h.logger, "Failed to set crop", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selection": req.Selection})
}

func (h *EditorHandler) ClearCrop(c *gin.Context) {
	if err := h.services.Editor.Session().ClearCrop(); err != nil {
		respondError(c, h.logger, "Failed to clear crop", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetActive selects a segment; an empty kind clears the selection
func (h *EditorHandler) SetActive(c *gin.Context) {
	var req models.ActiveSegment
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.services.Editor.Session()
	if req.Kind == "" {
		session.ClearActiveSegment()
		c.JSON(http.StatusOK, gin.H{"active": nil})
		return
	}

	if err := session.SetActiveSegment(req.Kind, req.ID); err != nil {
		respondError(c, h.logger, "Failed to select segment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": req})
}

func (h *EditorHandler) ExportConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Editor.Session().BuildExportConfig())
}

// Export renders the session. Failures keep the session open for a retry.
func (h *EditorHandler) Export(c *gin.Context) {
	result, err := h.services.Editor.Export(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
