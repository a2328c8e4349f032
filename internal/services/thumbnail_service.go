package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/ffmpeg"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	maxThumbnails    = 120
	thumbnailQuality = 5
)

var ErrInvalidThumbnailRequest = errors.New("invalid thumbnail request")

// Snapshotter grabs a single frame from a video
type Snapshotter interface {
	CaptureSnapshot(ctx context.Context, input, output string, timestamp float64, width, quality int) error
}

// Thumbnail is one timeline frame
type Thumbnail struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
	Path  string  `json:"-"`
	URL   string  `json:"url"`
}

// ThumbnailBatch is the strip of frames shown under the timeline
type ThumbnailBatch struct {
	ID     string      `json:"id"`
	Frames []Thumbnail `json:"frames"`
}

// ThumbnailService extracts timeline frames in chunks. Chunks run with
// bounded parallelism and their starts are paced by a limiter so the player
// keeps decoding while thumbnails load.
type ThumbnailService struct {
	snapshotter Snapshotter
	storage     *storage.Manager
	config      *config.Config
	logger      *zap.Logger
}

func NewThumbnailService(snapshotter Snapshotter, storage *storage.Manager, cfg *config.Config, logger *zap.Logger) *ThumbnailService {
	return &ThumbnailService{
		snapshotter: snapshotter,
		storage:     storage,
		config:      cfg,
		logger:      logger,
	}
}

// Generate extracts count frames evenly spaced over duration seconds
func (s *ThumbnailService) Generate(ctx context.Context, source string, duration float64, count, width int) (*ThumbnailBatch, error) {
	if duration <= 0 || count <= 0 || count > maxThumbnails {
		return nil, fmt.Errorf("%w: count %d over %.3fs", ErrInvalidThumbnailRequest, count, duration)
	}

	batch := &ThumbnailBatch{
		ID:     uuid.New().String(),
		Frames: make([]Thumbnail, count),
	}
	for i := range batch.Frames {
		batch.Frames[i] = Thumbnail{
			Index: i,
			Time:  frameTime(duration, i, count),
			Path:  s.storage.GetThumbnailPath(batch.ID, i),
			URL:   fmt.Sprintf("/api/thumbnails/%s/%d", batch.ID, i),
		}
	}

	if err := os.MkdirAll(filepath.Dir(batch.Frames[0].Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	chunks := chunkFrames(batch.Frames, s.config.Editor.ThumbnailChunkSize)
	input := ffmpeg.LocalPath(source)

	s.logger.Info("Generating thumbnails",
		zap.String("batchId", batch.ID),
		zap.Int("count", count),
		zap.Int("chunks", len(chunks)),
	)

	limit := rate.Inf
	if perSec := s.config.Editor.ThumbnailChunksPerSec; perSec > 0 {
		limit = rate.Limit(perSec)
	}
	limiter := rate.NewLimiter(limit, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.config.Editor.ThumbnailConcurrency))

	for i, chunk := range chunks {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}

			for _, frame := range chunk {
				if err := s.snapshotter.CaptureSnapshot(gctx, input, frame.Path, frame.Time, width, thumbnailQuality); err != nil {
					return fmt.Errorf("failed to capture frame %d: %w", frame.Index, err)
				}
			}

			s.logger.Debug("Thumbnail chunk completed",
				zap.String("batchId", batch.ID),
				zap.Int("chunk", i+1),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return batch, nil
}

// FramePath resolves a frame served by the thumbnails endpoint
func (s *ThumbnailService) FramePath(batchID string, index int) (string, bool) {
	path := s.storage.GetThumbnailPath(batchID, index)
	return path, s.storage.FileExists(path)
}

// frameTime places frame i at the middle of its slice of the timeline
func frameTime(duration float64, i, count int) float64 {
	return duration * (float64(i) + 0.5) / float64(count)
}

func chunkFrames(frames []Thumbnail, size int) [][]Thumbnail {
	if size <= 0 {
		size = len(frames)
	}

	var chunks [][]Thumbnail
	for start := 0; start < len(frames); start += size {
		end := min(start+size, len(frames))
		chunks = append(chunks, frames[start:end])
	}
	return chunks
}
