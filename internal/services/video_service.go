package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reelcut/video-editor/backend/internal/ffmpeg"
	"github.com/reelcut/video-editor/backend/internal/models"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"go.uber.org/zap"
)

// VideoService registers uploaded sources and recorded clips
type VideoService struct {
	storage *storage.Manager
	prober  Prober
	logger  *zap.Logger
}

func NewVideoService(storage *storage.Manager, prober Prober, logger *zap.Logger) *VideoService {
	return &VideoService{
		storage: storage,
		prober:  prober,
		logger:  logger,
	}
}

// NewUploadName returns a unique stored filename keeping the original extension
func NewUploadName(ext string) string {
	return uuid.New().String() + ext
}

func (s *VideoService) CreateFromUpload(ctx context.Context, filename string, filepath string) (*models.Video, error) {
	fileSize, err := s.storage.GetFileSize(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file size: %w", err)
	}

	video := &models.Video{
		ID:        uuid.New().String(),
		FileName:  filename,
		FilePath:  filepath,
		URI:       "file://" + filepath,
		FileSize:  fileSize,
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	probe, err := s.prober.Probe(ctx, filepath)
	if err != nil {
		// the editor can still open an unprobed file
		s.logger.Warn("Failed to extract video metadata", zap.Error(err))
	} else {
		applyProbe(video, probe)
	}

	s.logger.Info("Created video from upload",
		zap.String("id", video.ID),
		zap.String("filename", filename),
		zap.Float64("duration", video.Duration),
		zap.String("format", video.Format),
		zap.Int64("fileSize", fileSize),
	)

	return video, nil
}

func applyProbe(video *models.Video, probe *ffmpeg.ProbeResult) {
	if duration, err := probe.GetDuration(); err == nil {
		video.Duration = duration
	}
	video.Format = probe.Format.FormatName

	if streams := probe.GetVideoStreams(); len(streams) > 0 {
		video.Width = streams[0].Width
		video.Height = streams[0].Height
		video.Codec = streams[0].CodecName
	}

	video.Metadata = convertProbeToMetadata(probe)
}

func convertProbeToMetadata(probe *ffmpeg.ProbeResult) models.VideoMetadata {
	metadata := models.VideoMetadata{
		Streams: make([]models.Stream, 0, len(probe.Streams)),
		Format: models.Format{
			FormatName: probe.Format.FormatName,
		},
	}

	if probe.Format.Duration != "" {
		if duration, err := parseDuration(probe.Format.Duration); err == nil {
			metadata.Format.Duration = duration
		}
	}
	if probe.Format.Size != "" {
		if size, err := parseSize(probe.Format.Size); err == nil {
			metadata.Format.Size = size
		}
	}

	for _, stream := range probe.Streams {
		info := models.Stream{
			Index:     stream.Index,
			CodecName: stream.CodecName,
			CodecType: stream.CodecType,
			Width:     stream.Width,
			Height:    stream.Height,
			Channels:  stream.Channels,
		}
		if stream.Duration != "" {
			if duration, err := parseDuration(stream.Duration); err == nil {
				info.Duration = duration
			}
		}
		if stream.SampleRate != "" {
			if rate, err := parseSize(stream.SampleRate); err == nil {
				info.SampleRate = int(rate)
			}
		}
		metadata.Streams = append(metadata.Streams, info)
	}

	return metadata
}

// ffprobe reports numbers as strings
func parseDuration(durationStr string) (float64, error) {
	var duration float64
	_, err := fmt.Sscanf(durationStr, "%f", &duration)
	return duration, err
}

func parseSize(sizeStr string) (int64, error) {
	var size int64
	_, err := fmt.Sscanf(sizeStr, "%d", &size)
	return size, err
}
