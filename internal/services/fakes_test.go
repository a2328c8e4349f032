package services

import (
	"context"
	"sync"
	"testing"

	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/ffmpeg"
	"github.com/reelcut/video-editor/backend/internal/models"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"go.uber.org/zap"
)

type fakeRenderer struct {
	mu         sync.Mutex
	uri        string
	err        error
	calls      []models.ExportConfig
	onProgress ffmpeg.ProgressCallback
	block      chan struct{}
	started    chan struct{}
}

func (r *fakeRenderer) OnProgress(cb ffmpeg.ProgressCallback) {
	r.onProgress = cb
}

func (r *fakeRenderer) ApplyEdits(ctx context.Context, cfg models.ExportConfig) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cfg)
	uri, err := r.uri, r.err
	r.mu.Unlock()

	if r.started != nil {
		close(r.started)
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.onProgress != nil {
		r.onProgress(0.5)
	}
	return uri, err
}

func (r *fakeRenderer) lastCall() models.ExportConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

type fakeProber struct {
	result *ffmpeg.ProbeResult
	err    error
	paths  []string
}

func (p *fakeProber) Probe(ctx context.Context, filePath string) (*ffmpeg.ProbeResult, error) {
	p.paths = append(p.paths, filePath)
	return p.result, p.err
}

func probeWithDuration(d string) *fakeProber {
	return &fakeProber{result: &ffmpeg.ProbeResult{
		Format: ffmpeg.Format{FormatName: "mov,mp4", Duration: d, Size: "2048"},
		Streams: []ffmpeg.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1080, Height: 1920},
			{Index: 1, CodecType: "audio", CodecName: "aac", SampleRate: "48000", Channels: 2},
		},
	}}
}

func testConfig() *config.Config {
	return &config.Config{
		Editor: config.EditorConfig{
			FontPixelRatio:        1,
			ExportFormat:          "mp4",
			ThumbnailChunkSize:    3,
			ThumbnailConcurrency:  2,
			ThumbnailChunksPerSec: 1000,
		},
	}
}

func testStorage(t *testing.T) *storage.Manager {
	t.Helper()
	m := storage.NewManager(t.TempDir(), zap.NewNop())
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return m
}

func storedURI(s *EditorService, name string) string {
	return "file://" + s.storage.GetVideoPath(name)
}
