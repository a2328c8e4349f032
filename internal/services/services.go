package services

import (
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/ffmpeg"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"go.uber.org/zap"
)

// Services holds all application services
type Services struct {
	Editor     *EditorService
	Thumbnails *ThumbnailService
	Video      *VideoService
	Progress   *ProgressHub
	Executor   *ffmpeg.Executor
	Storage    *storage.Manager
	Config     *config.Config
	Logger     *zap.Logger
}

// NewServices wires the ffmpeg-backed services around one editing session
func NewServices(storageManager *storage.Manager, cfg *config.Config, logger *zap.Logger) *Services {
	executor := ffmpeg.NewExecutor(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath, logger)
	renderer := ffmpeg.NewRenderer(executor, ffmpeg.RenderOptions{
		OutputDir: storageManager.OutputsDir(),
		Format:    cfg.Editor.ExportFormat,
		Codec:     cfg.FFmpeg.ExportCodec,
		Preset:    cfg.FFmpeg.Preset,
		FontFile:  cfg.FFmpeg.FontFile,
		Threads:   cfg.FFmpeg.Threads,
	}, logger.Named("render"))
	progress := NewProgressHub()

	return &Services{
		Editor:     NewEditorService(renderer, executor, storageManager, progress, cfg, logger.Named("editor")),
		Thumbnails: NewThumbnailService(executor, storageManager, cfg, logger.Named("thumbnails")),
		Video:      NewVideoService(storageManager, executor, logger),
		Progress:   progress,
		Executor:   executor,
		Storage:    storageManager,
		Config:     cfg,
		Logger:     logger,
	}
}
