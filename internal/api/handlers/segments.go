package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelcut/video-editor/backend/internal/models"
	"github.com/reelcut/video-editor/backend/internal/services"
	"go.uber.org/zap"
)

// SegmentHandler serves the audio, text and voiceover collections
type SegmentHandler struct {
	services *services.Services
	logger   *zap.Logger
}

func NewSegmentHandler(services *services.Services, logger *zap.Logger) *SegmentHandler {
	return &SegmentHandler{
		services: services,
		logger:   logger,
	}
}

// bind decodes the JSON body into a T and hands it to apply
func bind[T any](c *gin.Context, logger *zap.Logger, apply func(T) error, respond func()) {
	var body T
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := apply(body); err != nil {
		respondError(c, logger, "Failed to update segments", err)
		return
	}
	respond()
}

// checkURI confines client supplied media to the storage tree
func (h *SegmentHandler) checkURI(uri string) error {
	return h.services.Editor.CheckMediaURI(uri)
}

func (h *SegmentHandler) remove(c *gin.Context, fn func(string) error) {
	if err := fn(c.Param("id")); err != nil {
		respondError(c, h.logger, "Failed to remove segment", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Audio

func (h *SegmentHandler) ListAudio(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Editor.Session().AudioSegments())
}

func (h *SegmentHandler) SetAudio(c *gin.Context) {
	session := h.services.Editor.Session()
	bind(c, h.logger, func(items []models.AudioSegment) error {
		for _, item := range items {
			if err := h.checkURI(item.URI); err != nil {
				return err
			}
		}
		return session.SetAudioSegments(items)
	}, func() {
		c.JSON(http.StatusOK, session.AudioSegments())
	})
}

func (h *SegmentHandler) AddAudio(c *gin.Context) {
	session := h.services.Editor.Session()
	bind(c, h.logger, func(seg models.AudioSegment) error {
		if err := h.checkURI(seg.URI); err != nil {
			return err
		}
		return session.AddAudioSegment(seg)
	}, func() {
		c.JSON(http.StatusCreated, session.AudioSegments())
	})
}

func (h *SegmentHandler) UpdateAudio(c *gin.Context) {
	session := h.services.Editor.Session()
	id := c.Param("id")
	bind(c, h.logger, func(p models.AudioPatch) error {
		if p.URI != nil {
			if err := h.checkURI(*p.URI); err != nil {
				return err
			}
		}
		return session.UpdateAudioSegment(id, p)
	}, func() {
		c.JSON(http.StatusOK, session.AudioSegments())
	})
}

func (h *SegmentHandler) RemoveAudio(c *gin.Context) {
	h.remove(c, h.services.Editor.Session().RemoveAudioSegment)
}

// Text

func (h *SegmentHandler) ListText(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Editor.Session().TextSegments())
}

func (h *SegmentHandler) SetText(c *gin.Context) {
	session := h.services.Editor.Session()
	bind(c, h.logger, session.SetTextSegments, func() {
		c.JSON(http.StatusOK, session.TextSegments())
	})
}

func (h *SegmentHandler) AddText(c *gin.Context) {
	session := h.services.Editor.Session()
	bind(c, h.logger, session.AddTextSegment, func() {
		c.JSON(http.StatusCreated, session.TextSegments())
	})
}

func (h *SegmentHandler) UpdateText(c *gin.Context) {
	session := h.services.Editor.Session()
	id := c.Param("id")
	bind(c, h.logger, func(p models.TextPatch) error {
		return session.UpdateTextSegment(id, p)
	}, func() {
		c.JSON(http.StatusOK, session.TextSegments())
	})
}

func (h *SegmentHandler) RemoveText(c *gin.Context) {
	h.remove(c, h.services.Editor.Session().RemoveTextSegment)
}

// CommitText ends editing of a text overlay, deleting it if it is blank
func (h *SegmentHandler) CommitText(c *gin.Context) {
	kept, err := h.services.Editor.Session().CommitTextSegment(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to commit text", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kept": kept})
}

// Voiceover

func (h *SegmentHandler) ListVoiceover(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Editor.Session().VoiceoverSegments())
}

func (h *SegmentHandler) SetVoiceover(c *gin.Context) {
	session := h.services.Editor.Session()
	bind(c, h.logger, func(items []models.VoiceoverSegment) error {
		for i := range items {
			if err := h.checkURI(items[i].URI); err != nil {
				return err
			}
			items[i] = h.services.Editor.PrepareVoiceover(items[i])
		}
		return session.SetVoiceoverSegments(items)
	}, func() {
		c.JSON(http.StatusOK, session.VoiceoverSegments())
	})
}

// AddVoiceover accepts a recording without an end time when it is a WAV file
func (h *SegmentHandler) AddVoiceover(c *gin.Context) {
	session := h.services.Editor.Session()
	bind(c, h.logger, func(seg models.VoiceoverSegment) error {
		if err := h.checkURI(seg.URI); err != nil {
			return err
		}
		return session.AddVoiceoverSegment(h.services.Editor.PrepareVoiceover(seg))
	}, func() {
		c.JSON(http.StatusCreated, session.VoiceoverSegments())
	})
}

func (h *SegmentHandler) UpdateVoiceover(c *gin.Context) {
	session := h.services.Editor.Session()
	id := c.Param("id")
	bind(c, h.logger, func(p models.VoiceoverPatch) error {
		if p.URI != nil {
			if err := h.checkURI(*p.URI); err != nil {
				return err
			}
		}
		return session.UpdateVoiceoverSegment(id, p)
	}, func() {
		c.JSON(http.StatusOK, session.VoiceoverSegments())
	})
}

func (h *SegmentHandler) RemoveVoiceover(c *gin.Context) {
	h.remove(c, h.services.Editor.Session().RemoveVoiceoverSegment)
}
