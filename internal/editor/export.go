package editor

import (
	"strings"

	"github.com/reelcut/video-editor/backend/internal/models"
	"go.uber.org/zap"
)

// BuildExportConfig returns a snapshot of the operation list with every record
// the renderer cannot accept removed. Dropped records are logged, never
// returned as errors. The snapshot shares no memory with the session.
func (s *Session) BuildExportConfig() models.ExportConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.ops.Records()
	elements := make([]models.Operation, 0, len(records))
	for _, op := range records {
		if reason := rejectReason(op); reason != "" {
			s.logger.Warn("Dropping operation from export",
				zap.String("type", string(op.Type())),
				zap.String("reason", reason),
			)
			continue
		}
		elements = append(elements, models.CloneOperation(op))
	}

	return models.ExportConfig{VideoElements: elements}
}

// rejectReason returns why op must not reach the renderer, or "" if it is valid
func rejectReason(op models.Operation) string {
	switch o := op.(type) {
	case models.VideoURIOperation:
		if strings.TrimSpace(o.VideoURI) == "" {
			return "missing videoUri"
		}
	case models.AudioOperation:
		if strings.TrimSpace(o.MusicURI) == "" {
			return "missing musicUri"
		}
	case models.TextOverlayOperation:
		switch {
		case strings.TrimSpace(o.Text) == "":
			return "empty text"
		case o.TextPosition == nil:
			return "missing textPosition"
		case o.StartTime == nil || o.EndTime == nil:
			return "missing startTime or endTime"
		}
	case models.VoiceOverOperation:
		if strings.TrimSpace(o.VoiceOverURI) == "" {
			return "missing voiceOverUri"
		}
	case models.CropOperation:
		if o.SelectionParams == "" || o.SelectionParams == models.CropOriginal {
			return "original aspect ratio"
		}
	case models.TrimOperation:
		if o.StartTime == nil || o.EndTime == nil {
			return "missing startTime or endTime"
		}
	default:
		return "unknown operation type"
	}
	return ""
}
