package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/reelcut/video-editor/backend/internal/models"
	"go.uber.org/zap"
)

var (
	ErrSessionNotActive   = errors.New("editor session is not active")
	ErrSourceMissing      = errors.New("video source missing")
	ErrInvalidSegment     = errors.New("invalid segment")
	ErrSegmentNotFound    = errors.New("segment not found")
	ErrInvalidTrim        = errors.New("invalid trim window")
	ErrFeatureDisabled    = errors.New("feature disabled for this session")
	ErrTooManyAudioTracks = errors.New("at most one audio track is supported")
)

// Feature names accepted in OpenOptions.Features
const (
	FeatureTrim      = "trim"
	FeatureCrop      = "crop"
	FeatureText      = "text"
	FeatureAudio     = "audio"
	FeatureVoiceover = "voiceover"
)

// Session is the mutable model behind one editing session. All methods are
// safe to call from concurrent goroutines; the mutex serialises them so no
// two mutations interleave.
type Session struct {
	mu             sync.Mutex
	logger         *zap.Logger
	fontPixelRatio float64

	active   bool
	source   string
	features map[string]bool

	ops       OperationList
	audio     Collection[models.AudioSegment]
	text      Collection[models.TextSegment]
	voiceover Collection[models.VoiceoverSegment]
	selected  *models.ActiveSegment

	trim             models.TrimWindow
	trimCommitted    bool
	committedStart   float64
	currentTime      float64
	duration         float64
	originalDuration float64
}

// NewSession creates an uninitialized session. fontPixelRatio converts editor
// font sizes into renderer pixels; values <= 0 mean 1.
func NewSession(logger *zap.Logger, fontPixelRatio float64) *Session {
	if fontPixelRatio <= 0 {
		fontPixelRatio = 1
	}
	return &Session{
		logger:         logger,
		fontPixelRatio: fontPixelRatio,
		trim:           models.TrimWindow{End: models.TrimEndUnset},
	}
}

// Init starts a session on source. Any previous state is discarded.
func (s *Session) Init(opts models.OpenOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(opts.Source) == "" {
		return ErrSourceMissing
	}

	s.resetLocked()
	s.active = true
	s.source = opts.Source
	s.features = make(map[string]bool, len(opts.Features))
	for name, enabled := range opts.Features {
		s.features[name] = enabled
	}
	s.ops.Upsert(models.VideoURIOperation{VideoURI: opts.Source})

	s.logger.Info("Editor session initialized", zap.String("source", opts.Source))
	return nil
}

// Reset tears the session down to the uninitialized state
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.logger.Info("Editor session reset")
}

func (s *Session) resetLocked() {
	s.active = false
	s.source = ""
	s.features = nil
	s.ops.Clear()
	s.audio.Clear()
	s.text.Clear()
	s.voiceover.Clear()
	s.selected = nil
	s.trim = models.TrimWindow{End: models.TrimEndUnset}
	s.trimCommitted = false
	s.committedStart = 0
	s.currentTime = 0
	s.duration = 0
	s.originalDuration = 0
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// FeatureEnabled reports whether a tool is usable. Tools not named in the
// session's features are enabled.
func (s *Session) FeatureEnabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.featureEnabledLocked(name)
}

func (s *Session) featureEnabledLocked(name string) bool {
	enabled, ok := s.features[name]
	return !ok || enabled
}

func (s *Session) checkLocked(feature string) error {
	if !s.active {
		return ErrSessionNotActive
	}
	if feature != "" && !s.featureEnabledLocked(feature) {
		return fmt.Errorf("%w: %s", ErrFeatureDisabled, feature)
	}
	return nil
}

// Operations returns the unfiltered operation list
func (s *Session) Operations() []models.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.Records()
}

// Playback

// MediaLoaded records the decoded source duration
func (s *Session) MediaLoaded(duration float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(""); err != nil {
		return err
	}
	if duration < 0 {
		duration = 0
	}
	s.originalDuration = duration
	if !s.trimCommitted {
		s.duration = duration
	}
	s.clampCurrentTimeLocked()
	return nil
}

// SetCurrentTime moves the playhead, clamped to the playable duration
func (s *Session) SetCurrentTime(t float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(""); err != nil {
		return err
	}
	s.currentTime = t
	s.clampCurrentTimeLocked()
	return nil
}

func (s *Session) clampCurrentTimeLocked() {
	if s.currentTime < 0 {
		s.currentTime = 0
	}
	if s.duration > 0 && s.currentTime > s.duration {
		s.currentTime = s.duration
	}
}

func (s *Session) PlaybackState() models.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.PlaybackState{
		CurrentTime:      s.currentTime,
		Duration:         s.duration,
		OriginalDuration: s.originalDuration,
	}
}

// Selection

// SetActiveSegment selects a segment in the timeline
func (s *Session) SetActiveSegment(kind models.SegmentKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(""); err != nil {
		return err
	}

	var found bool
	switch kind {
	case models.SegmentKindAudio:
		_, found = s.audio.Get(id)
	case models.SegmentKindText:
		_, found = s.text.Get(id)
	case models.SegmentKindVoiceover:
		_, found = s.voiceover.Get(id)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSegment, kind)
	}
	if !found {
		return fmt.Errorf("%w: %s %s", ErrSegmentNotFound, kind, id)
	}

	s.selected = &models.ActiveSegment{Kind: kind, ID: id}
	return nil
}

func (s *Session) ClearActiveSegment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

func (s *Session) ActiveSegment() (models.ActiveSegment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return models.ActiveSegment{}, false
	}
	return *s.selected, true
}

// clearSelectionLocked drops the selection if it points at id of kind
func (s *Session) clearSelectionLocked(kind models.SegmentKind, id string) {
	if s.selected != nil && s.selected.Kind == kind && s.selected.ID == id {
		s.selected = nil
	}
}

// Crop

// SetCrop stores the aspect ratio selection. "original" is kept in the list
// and filtered out at export.
func (s *Session) SetCrop(selection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureCrop); err != nil {
		return err
	}
	s.ops.Upsert(models.CropOperation{SelectionParams: selection})
	return nil
}

func (s *Session) ClearCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureCrop); err != nil {
		return err
	}
	s.ops.RemoveByType(models.OperationTypeCrop)
	return nil
}

// Trim

// Trim returns the committed window, or {0, TrimEndUnset} before any commit
func (s *Session) Trim() models.TrimWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trim
}

// SetTrim stores the absolute trim window and upserts the trim record. It does
// not move any segment; see ShiftSegments and CommitTrim.
func (s *Session) SetTrim(start, end float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureTrim); err != nil {
		return err
	}
	return s.setTrimLocked(start, end)
}

func (s *Session) setTrimLocked(start, end float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidTrim, start, end)
	}
	if s.originalDuration > 0 && end > s.originalDuration {
		return fmt.Errorf("%w: end %g exceeds duration %g", ErrInvalidTrim, end, s.originalDuration)
	}

	s.trim = models.TrimWindow{Start: start, End: end}
	s.ops.Upsert(models.TrimOperation{
		StartTime: models.Float(start),
		EndTime:   models.Float(end),
	})
	return nil
}

// ShiftSegments moves every segment by -shift and drops those that no longer
// overlap [0, length]. Survivors are clipped to that range.
func (s *Session) ShiftSegments(shift, length float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(""); err != nil {
		return err
	}
	s.shiftLocked(shift, length)
	return nil
}

func (s *Session) shiftLocked(shift, length float64) {
	for _, id := range s.audio.Shift(shift, length) {
		s.clearSelectionLocked(models.SegmentKindAudio, id)
	}
	for _, id := range s.text.Shift(shift, length) {
		s.clearSelectionLocked(models.SegmentKindText, id)
	}
	for _, id := range s.voiceover.Shift(shift, length) {
		s.clearSelectionLocked(models.SegmentKindVoiceover, id)
	}
	s.rebuildAudioLocked()
	s.rebuildTextLocked()
	s.rebuildVoiceoverLocked()
}

// CommitTrim applies a confirmed trim: it stores the window, shifts segments
// into the new timeline and shortens the playable duration. Segments are
// assumed to be on the timeline of the previous commit, if any.
func (s *Session) CommitTrim(start, end float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(FeatureTrim); err != nil {
		return err
	}

	// segments sit on the timeline of the last commit, not of the last SetTrim
	previous := 0.0
	if s.trimCommitted {
		previous = s.committedStart
	}
	if err := s.setTrimLocked(start, end); err != nil {
		return err
	}
	s.trimCommitted = true
	s.committedStart = start

	s.shiftLocked(start-previous, end-start)
	s.duration = end - start
	s.clampCurrentTimeLocked()

	s.logger.Info("Trim committed",
		zap.Float64("start", start),
		zap.Float64("end", end),
		zap.Int("textSegments", s.text.Len()),
		zap.Int("voiceoverSegments", s.voiceover.Len()),
		zap.Int("audioSegments", s.audio.Len()),
	)
	return nil
}

func validateSpan(span models.Segment) error {
	if !span.Valid() {
		return fmt.Errorf("%w: id=%q start=%g end=%g", ErrInvalidSegment, span.ID, span.Start, span.End)
	}
	return nil
}
