package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/editor"
	"github.com/reelcut/video-editor/backend/internal/ffmpeg"
	"github.com/reelcut/video-editor/backend/internal/media"
	"github.com/reelcut/video-editor/backend/internal/models"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrSessionBusy      = errors.New("an editor request is already in flight")
	ErrNoRequest        = errors.New("no editor request in flight")
	ErrExportInProgress = errors.New("an export is already running")
	ErrRequestCancelled = errors.New("editor request was cancelled")
)

const sourceMissingMessage = "Video source missing"

// Renderer applies an export snapshot and returns the URI of the result
type Renderer interface {
	ApplyEdits(ctx context.Context, cfg models.ExportConfig) (string, error)
}

// Prober reads media metadata for a local file
type Prober interface {
	Probe(ctx context.Context, filePath string) (*ffmpeg.ProbeResult, error)
}

// EditRequest is one opened editor. It resolves exactly once.
type EditRequest struct {
	ID     string
	once   sync.Once
	done   chan struct{}
	result models.EditorResult
}

func newEditRequest() *EditRequest {
	return &EditRequest{
		ID:   uuid.New().String(),
		done: make(chan struct{}),
	}
}

func (r *EditRequest) resolve(result models.EditorResult) bool {
	resolved := false
	r.once.Do(func() {
		r.result = result
		close(r.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the request has a result
func (r *EditRequest) Done() <-chan struct{} {
	return r.done
}

// Result returns the result if the request has resolved
func (r *EditRequest) Result() (models.EditorResult, bool) {
	select {
	case <-r.done:
		return r.result, true
	default:
		return models.EditorResult{}, false
	}
}

// Wait blocks until the request resolves or ctx ends
func (r *EditRequest) Wait(ctx context.Context) (models.EditorResult, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return models.EditorResult{}, ctx.Err()
	}
}

// EditorService owns the single editing session and the request that opened it
type EditorService struct {
	session  *editor.Session
	renderer Renderer
	prober   Prober
	storage  *storage.Manager
	progress *ProgressHub
	config   *config.Config
	logger   *zap.Logger

	mu           sync.Mutex
	current      *EditRequest
	last         *EditRequest
	exporting    bool
	exportID     string
	cancelExport context.CancelFunc
}

func NewEditorService(renderer Renderer, prober Prober, storage *storage.Manager, progress *ProgressHub, cfg *config.Config, logger *zap.Logger) *EditorService {
	s := &EditorService{
		session:  editor.NewSession(logger, cfg.Editor.FontPixelRatio),
		renderer: renderer,
		prober:   prober,
		storage:  storage,
		progress: progress,
		config:   cfg,
		logger:   logger,
	}

	if r, ok := renderer.(interface{ OnProgress(ffmpeg.ProgressCallback) }); ok {
		r.OnProgress(s.publishProgress)
	}
	return s
}

// Session exposes the editing session for segment and playback calls
func (s *EditorService) Session() *editor.Session {
	return s.session
}

// OpenEditor starts a session on opts.Source. A missing source resolves the
// returned request immediately with a failure and leaves the session idle.
func (s *EditorService) OpenEditor(ctx context.Context, opts models.OpenOptions) (*EditRequest, error) {
	if strings.TrimSpace(opts.Source) != "" {
		if _, err := s.mediaPath(opts.Source); err != nil {
			return nil, fmt.Errorf("%w: %v", editor.ErrSourceMissing, err)
		}
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}

	if opts.Features == nil {
		opts.Features = s.config.Editor.Features
	}

	req := newEditRequest()
	s.last = req

	if err := s.session.Init(opts); err != nil {
		s.mu.Unlock()
		if errors.Is(err, editor.ErrSourceMissing) {
			req.resolve(models.EditorResult{Success: false, Error: sourceMissingMessage})
			s.logger.Warn("Editor opened without a video source", zap.String("requestId", req.ID))
			return req, nil
		}
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	s.current = req
	s.mu.Unlock()

	s.logger.Info("Editor opened",
		zap.String("requestId", req.ID),
		zap.String("source", opts.Source),
	)

	s.loadDuration(ctx, opts.Source)
	return req, nil
}

// loadDuration plays the role of the player's "loaded" event
func (s *EditorService) loadDuration(ctx context.Context, source string) {
	if s.prober == nil {
		return
	}

	probe, err := s.prober.Probe(ctx, ffmpeg.LocalPath(source))
	if err != nil {
		s.logger.Warn("Failed to probe editor source", zap.String("source", source), zap.Error(err))
		return
	}
	duration, err := probe.GetDuration()
	if err != nil {
		s.logger.Warn("Source has no readable duration", zap.String("source", source), zap.Error(err))
		return
	}
	if err := s.session.MediaLoaded(duration); err != nil {
		s.logger.Warn("Failed to record source duration", zap.Error(err))
	}
}

// Request returns the most recently opened request, resolved or not
func (s *EditorService) Request() (*EditRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

// Export renders the current session. On success the request resolves with
// the exported URI and the session is torn down. On failure the session stays
// active so the user can retry.
func (s *EditorService) Export(ctx context.Context) (models.EditorResult, error) {
	s.mu.Lock()
	req := s.current
	if req == nil {
		s.mu.Unlock()
		return models.EditorResult{}, ErrNoRequest
	}
	if s.exporting {
		s.mu.Unlock()
		return models.EditorResult{}, ErrExportInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	exportID := uuid.New().String()
	s.exporting = true
	s.exportID = exportID
	s.cancelExport = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.exporting = false
		s.exportID = ""
		s.cancelExport = nil
		s.mu.Unlock()
	}()

	cfg := s.session.BuildExportConfig()
	s.logger.Info("Starting export",
		zap.String("requestId", req.ID),
		zap.String("exportId", exportID),
		zap.Int("elements", len(cfg.VideoElements)),
	)
	s.progress.Publish(ProgressEvent{ExportID: exportID, Stage: StageStarted})

	uri, err := s.renderer.ApplyEdits(ctx, cfg)
	if err != nil {
		s.progress.Publish(ProgressEvent{ExportID: exportID, Stage: StageFailed, Error: err.Error()})
		if s.superseded(req) {
			return models.EditorResult{}, ErrRequestCancelled
		}
		s.logger.Error("Export failed", zap.String("exportId", exportID), zap.Error(err))
		return models.EditorResult{}, fmt.Errorf("failed to export: %w", err)
	}

	if s.superseded(req) {
		s.logger.Warn("Export finished after the request was cancelled", zap.String("uri", uri))
		return models.EditorResult{}, ErrRequestCancelled
	}

	if s.storage != nil {
		if _, err := s.storage.SaveManifest(storage.ManifestID(ffmpeg.LocalPath(uri)), cfg); err != nil {
			s.logger.Warn("Failed to save export manifest", zap.String("exportId", exportID), zap.Error(err))
		}
	}

	result := models.EditorResult{Success: true, ExportedURI: uri}
	s.finish(req, result)
	s.progress.Publish(ProgressEvent{ExportID: exportID, Stage: StageCompleted, Progress: 1, URI: uri})

	s.logger.Info("Export completed",
		zap.String("requestId", req.ID),
		zap.String("uri", uri),
	)
	return result, nil
}

// Cancel resolves the in-flight request as cancelled by the user
func (s *EditorService) Cancel() error {
	s.mu.Lock()
	req := s.current
	cancelExport := s.cancelExport
	s.current = nil
	if req != nil {
		// under mu so a racing OpenEditor cannot Init before this Reset
		s.session.Reset()
	}
	s.mu.Unlock()

	if req == nil {
		return ErrNoRequest
	}
	if cancelExport != nil {
		cancelExport()
	}

	req.resolve(models.EditorResult{Success: false})
	s.logger.Info("Editor cancelled", zap.String("requestId", req.ID))
	return nil
}

// Reset tears down the session, cancelling any in-flight request
func (s *EditorService) Reset() {
	if err := s.Cancel(); errors.Is(err, ErrNoRequest) {
		s.mu.Lock()
		s.session.Reset()
		s.mu.Unlock()
	}
}

// mediaPath resolves a client supplied URI to a file inside storage. Only
// file:// URIs and plain paths are accepted.
func (s *EditorService) mediaPath(uri string) (string, error) {
	if strings.Contains(uri, "://") && !strings.HasPrefix(uri, "file://") {
		return "", fmt.Errorf("unsupported scheme in %q", uri)
	}
	path := ffmpeg.LocalPath(uri)
	if s.storage != nil && !s.storage.Contains(path) {
		return "", fmt.Errorf("%q is outside storage", uri)
	}
	return path, nil
}

// CheckMediaURI rejects segment media that is not a file in storage. An
// empty URI is left to segment validation.
func (s *EditorService) CheckMediaURI(uri string) error {
	if uri == "" {
		return nil
	}
	if _, err := s.mediaPath(uri); err != nil {
		return fmt.Errorf("%w: %v", editor.ErrInvalidSegment, err)
	}
	return nil
}

// PrepareVoiceover fills a missing end time from the length of a WAV recording
func (s *EditorService) PrepareVoiceover(seg models.VoiceoverSegment) models.VoiceoverSegment {
	if seg.End > seg.Start || seg.URI == "" {
		return seg
	}

	path, err := s.mediaPath(seg.URI)
	if err != nil || !media.IsWav(path) {
		return seg
	}

	duration, err := media.WavDuration(path)
	if err != nil {
		s.logger.Warn("Failed to read voiceover length", zap.String("uri", seg.URI), zap.Error(err))
		return seg
	}
	seg.End = seg.Start + duration
	return seg
}

func (s *EditorService) finish(req *EditRequest, result models.EditorResult) {
	s.mu.Lock()
	if s.current == req {
		s.current = nil
		s.session.Reset()
	}
	s.mu.Unlock()

	req.resolve(result)
}

func (s *EditorService) superseded(req *EditRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != req
}

func (s *EditorService) publishProgress(progress float64) {
	s.mu.Lock()
	id := s.exportID
	s.mu.Unlock()

	s.progress.Publish(ProgressEvent{ExportID: id, Stage: StageProgress, Progress: progress})
}
