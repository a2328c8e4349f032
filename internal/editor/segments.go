package editor

import (
	"fmt"
	"strings"

	"github.com/reelcut/video-editor/backend/internal/models"
	"go.uber.org/zap"
)

// Audio

// SetAudioSegments replaces the background music track. At most one segment
// may be given.
func (s *Session) SetAudioSegments(items []models.AudioSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureAudio); err != nil {
		return err
	}
	if len(items) > 1 {
		return ErrTooManyAudioTracks
	}
	for _, item := range items {
		if err := validateSpan(item.Segment); err != nil {
			return err
		}
	}

	s.audio.SetAll(items)
	if s.selected != nil && s.selected.Kind == models.SegmentKindAudio {
		if _, ok := s.audio.Get(s.selected.ID); !ok {
			s.selected = nil
		}
	}
	s.rebuildAudioLocked()
	return nil
}

// AddAudioSegment replaces any existing track with seg
func (s *Session) AddAudioSegment(seg models.AudioSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureAudio); err != nil {
		return err
	}
	if err := validateSpan(seg.Segment); err != nil {
		return err
	}

	for _, old := range s.audio.Items() {
		if old.ID != seg.ID {
			s.clearSelectionLocked(models.SegmentKindAudio, old.ID)
		}
	}
	s.audio.SetAll([]models.AudioSegment{seg})
	s.rebuildAudioLocked()

	s.logger.Debug("Audio track set", zap.String("id", seg.ID), zap.String("uri", seg.URI))
	return nil
}

// UpdateAudioSegment merges patch into the track with the given id; unknown ids are ignored
func (s *Session) UpdateAudioSegment(id string, patch models.AudioPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureAudio); err != nil {
		return err
	}
	current, ok := s.audio.Get(id)
	if !ok {
		return nil
	}
	if err := validateSpan(patch.Apply(current).Segment); err != nil {
		return err
	}

	s.audio.Update(id, patch.Apply)
	s.rebuildAudioLocked()
	return nil
}

func (s *Session) RemoveAudioSegment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureAudio); err != nil {
		return err
	}
	s.audio.Remove(id)
	s.clearSelectionLocked(models.SegmentKindAudio, id)
	s.rebuildAudioLocked()
	return nil
}

func (s *Session) AudioSegments() []models.AudioSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio.Items()
}

func (s *Session) rebuildAudioLocked() {
	items := s.audio.Items()
	if len(items) == 0 {
		s.ops.RemoveByType(models.OperationTypeAudio)
		return
	}
	s.ops.Upsert(audioOperation(items[0]))
}

func audioOperation(a models.AudioSegment) models.AudioOperation {
	return models.AudioOperation{
		MusicURI:     a.URI,
		AudioOffset:  a.AudioOffset,
		ClipDuration: a.ClipDuration,
		IsLooped:     a.IsLooped,
		StartTime:    models.Float(a.Start),
		EndTime:      models.Float(a.End),
	}
}

// Text

func (s *Session) SetTextSegments(items []models.TextSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureText); err != nil {
		return err
	}
	if err := validateUnique(items, func(t models.TextSegment) models.Segment { return t.Segment }); err != nil {
		return err
	}

	s.text.SetAll(items)
	if s.selected != nil && s.selected.Kind == models.SegmentKindText {
		if _, ok := s.text.Get(s.selected.ID); !ok {
			s.selected = nil
		}
	}
	s.rebuildTextLocked()
	return nil
}

// AddTextSegment appends seg. A segment with an existing id replaces it in place.
func (s *Session) AddTextSegment(seg models.TextSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureText); err != nil {
		return err
	}
	if err := validateSpan(seg.Segment); err != nil {
		return err
	}

	s.text.Add(seg)
	s.rebuildTextLocked()
	return nil
}

func (s *Session) UpdateTextSegment(id string, patch models.TextPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureText); err != nil {
		return err
	}
	current, ok := s.text.Get(id)
	if !ok {
		return nil
	}
	if err := validateSpan(patch.Apply(current).Segment); err != nil {
		return err
	}

	s.text.Update(id, patch.Apply)
	s.rebuildTextLocked()
	return nil
}

func (s *Session) RemoveTextSegment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureText); err != nil {
		return err
	}
	s.text.Remove(id)
	s.clearSelectionLocked(models.SegmentKindText, id)
	s.rebuildTextLocked()
	return nil
}

// CommitTextSegment finishes editing a text overlay. Blank text deletes the
// segment. Reports whether the segment was kept.
func (s *Session) CommitTextSegment(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureText); err != nil {
		return false, err
	}
	current, ok := s.text.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: text %s", ErrSegmentNotFound, id)
	}
	if strings.TrimSpace(current.Text) != "" {
		return true, nil
	}

	s.text.Remove(id)
	s.clearSelectionLocked(models.SegmentKindText, id)
	s.rebuildTextLocked()
	s.logger.Debug("Removed blank text segment on commit", zap.String("id", id))
	return false, nil
}

func (s *Session) TextSegments() []models.TextSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.Items()
}

func (s *Session) rebuildTextLocked() {
	items := s.text.Items()
	ops := make([]models.Operation, 0, len(items))
	for _, t := range items {
		ops = append(ops, s.textOperation(t))
	}
	s.ops.Replace(models.OperationTypeTextOverlay, ops)
}

func (s *Session) textOperation(t models.TextSegment) models.TextOverlayOperation {
	op := models.TextOverlayOperation{
		Text:            t.Text,
		FontSize:        t.FontSize * s.fontPixelRatio,
		TextColor:       t.Color,
		BackgroundColor: t.BackgroundColor,
		StartTime:       models.Float(t.Start),
		EndTime:         models.Float(t.End),
		FontFamily:      t.FontFamily,
		Alignment:       t.Alignment,
	}
	if t.X != nil && t.Y != nil {
		op.TextPosition = &models.TextPosition{X: *t.X, Y: *t.Y}
	}
	return op
}

// Voiceover

func (s *Session) SetVoiceoverSegments(items []models.VoiceoverSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureVoiceover); err != nil {
		return err
	}
	if err := validateUnique(items, func(v models.VoiceoverSegment) models.Segment { return v.Segment }); err != nil {
		return err
	}

	s.voiceover.SetAll(items)
	if s.selected != nil && s.selected.Kind == models.SegmentKindVoiceover {
		if _, ok := s.voiceover.Get(s.selected.ID); !ok {
			s.selected = nil
		}
	}
	s.rebuildVoiceoverLocked()
	return nil
}

func (s *Session) AddVoiceoverSegment(seg models.VoiceoverSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureVoiceover); err != nil {
		return err
	}
	if err := validateSpan(seg.Segment); err != nil {
		return err
	}

	s.voiceover.Add(seg)
	s.rebuildVoiceoverLocked()
	return nil
}

func (s *Session) UpdateVoiceoverSegment(id string, patch models.VoiceoverPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureVoiceover); err != nil {
		return err
	}
	current, ok := s.voiceover.Get(id)
	if !ok {
		return nil
	}
	if err := validateSpan(patch.Apply(current).Segment); err != nil {
		return err
	}

	s.voiceover.Update(id, patch.Apply)
	s.rebuildVoiceoverLocked()
	return nil
}

func (s *Session) RemoveVoiceoverSegment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureVoiceover); err != nil {
		return err
	}
	s.voiceover.Remove(id)
	s.clearSelectionLocked(models.SegmentKindVoiceover, id)
	s.rebuildVoiceoverLocked()
	return nil
}

func (s *Session) VoiceoverSegments() []models.VoiceoverSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceover.Items()
}

func (s *Session) rebuildVoiceoverLocked() {
	items := s.voiceover.Items()
	ops := make([]models.Operation, 0, len(items))
	for _, v := range items {
		ops = append(ops, models.VoiceOverOperation{
			VoiceOverURI: v.URI,
			StartTime:    models.Float(v.Start),
			EndTime:      models.Float(v.End),
		})
	}
	s.ops.Replace(models.OperationTypeVoiceOver, ops)
}

func validateUnique[T any](items []T, span func(T) models.Segment) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		sp := span(item)
		if err := validateSpan(sp); err != nil {
			return err
		}
		if _, dup := seen[sp.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidSegment, sp.ID)
		}
		seen[sp.ID] = struct{}{}
	}
	return nil
}
