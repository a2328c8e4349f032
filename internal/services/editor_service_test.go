package services

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/reelcut/video-editor/backend/internal/editor"
	"github.com/reelcut/video-editor/backend/internal/models"
	"go.uber.org/zap"
)

func newTestEditor(t *testing.T, renderer *fakeRenderer, prober *fakeProber) *EditorService {
	t.Helper()
	return NewEditorService(renderer, prober, testStorage(t), NewProgressHub(), testConfig(), zap.NewNop())
}

func waitResult(t *testing.T, req *EditRequest) models.EditorResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := req.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return result
}

func TestOpenEditor_MissingSource(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))

	req, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: "  "})
	if err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}

	result := waitResult(t, req)
	if result.Success || result.Error != "Video source missing" {
		t.Errorf("result = %+v", result)
	}
	if s.Session().Active() {
		t.Error("session became active without a source")
	}

	// nothing is in flight so a new request is accepted
	if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")}); err != nil {
		t.Errorf("OpenEditor() after missing source error = %v", err)
	}
}

func TestOpenEditor_Busy(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))

	if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")}); err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}
	if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "b.mp4")}); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("second OpenEditor() error = %v, want ErrSessionBusy", err)
	}
}

func TestOpenEditor_LoadsDuration(t *testing.T) {
	prober := probeWithDuration("12.5")
	s := newTestEditor(t, &fakeRenderer{}, prober)

	path := s.storage.GetVideoPath("my clip.mp4")
	source := (&url.URL{Scheme: "file", Path: path}).String()
	if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: source}); err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}

	if len(prober.paths) != 1 || prober.paths[0] != path {
		t.Errorf("probed %v, want [%s]", prober.paths, path)
	}
	state := s.Session().PlaybackState()
	if state.Duration != 12.5 || state.OriginalDuration != 12.5 {
		t.Errorf("playback state = %+v", state)
	}
}

func TestOpenEditor_ProbeFailureIsNotFatal(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, &fakeProber{err: errors.New("ffprobe missing")})

	if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")}); err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}
	if !s.Session().Active() {
		t.Error("session not active after probe failure")
	}
}

func TestOpenEditor_DefaultFeatures(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))
	s.config.Editor.Features = map[string]bool{"text": false}

	if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")}); err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}
	if s.Session().FeatureEnabled("text") {
		t.Error("configured feature default was not applied")
	}
}

func TestExport_Success(t *testing.T) {
	renderer := &fakeRenderer{}
	s := newTestEditor(t, renderer, probeWithDuration("10"))
	renderer.uri = "file://" + filepath.Join(s.storage.OutputsDir(), "out-1.mp4")

	req, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")})
	if err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}
	if err := s.Session().SetTrim(1, 4); err != nil {
		t.Fatalf("SetTrim() error = %v", err)
	}

	result, err := s.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !result.Success || result.ExportedURI != renderer.uri {
		t.Errorf("Export() = %+v", result)
	}
	if got := waitResult(t, req); got != result {
		t.Errorf("request resolved with %+v, want %+v", got, result)
	}
	if s.Session().Active() {
		t.Error("session still active after successful export")
	}

	cfg := renderer.lastCall()
	if len(cfg.VideoElements) != 2 || cfg.VideoElements[0].Type() != models.OperationTypeVideoURI {
		t.Errorf("renderer received %#v", cfg.VideoElements)
	}

	manifest, err := s.storage.LoadManifest("out-1")
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if len(manifest.VideoElements) != 2 {
		t.Errorf("manifest has %d elements, want 2", len(manifest.VideoElements))
	}
}

func TestExport_FailureKeepsSession(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("encoder crashed")}
	s := newTestEditor(t, renderer, probeWithDuration("10"))

	req, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")})
	if err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}

	if _, err := s.Export(context.Background()); err == nil {
		t.Fatal("expected export error")
	}
	if _, resolved := req.Result(); resolved {
		t.Error("failed export resolved the request")
	}
	if !s.Session().Active() {
		t.Error("failed export tore down the session")
	}
	if len(renderer.calls) != 1 {
		t.Errorf("renderer called %d times, want 1", len(renderer.calls))
	}

	// manual retry
	renderer.err = nil
	renderer.uri = "file:///out/retry.mp4"
	result, err := s.Export(context.Background())
	if err != nil || !result.Success {
		t.Fatalf("retry Export() = %+v, %v", result, err)
	}
}

func TestCancel(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))

	req, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")})
	if err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}
	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if got := waitResult(t, req); got != (models.EditorResult{Success: false}) {
		t.Errorf("cancel resolved with %+v", got)
	}
	if s.Session().Active() {
		t.Error("session active after cancel")
	}
	if _, err := s.Export(context.Background()); !errors.Is(err, ErrNoRequest) {
		t.Errorf("Export() after cancel error = %v, want ErrNoRequest", err)
	}
	if err := s.Cancel(); !errors.Is(err, ErrNoRequest) {
		t.Errorf("second Cancel() error = %v, want ErrNoRequest", err)
	}
}

func TestCancel_DuringExport(t *testing.T) {
	renderer := &fakeRenderer{
		uri:     "file:///out/x.mp4",
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	s := newTestEditor(t, renderer, probeWithDuration("10"))

	req, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")})
	if err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.Export(context.Background())
		errc <- err
	}()

	<-renderer.started
	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if err := <-errc; !errors.Is(err, ErrRequestCancelled) {
		t.Errorf("Export() error = %v, want ErrRequestCancelled", err)
	}
	if got := waitResult(t, req); got.Success {
		t.Errorf("cancelled request resolved with %+v", got)
	}
}

func TestCancel_RacingReopenKeepsNewSession(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))

	for i := 0; i < 50; i++ {
		if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")}); err != nil {
			t.Fatalf("OpenEditor() error = %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Cancel()
		}()
		go func() {
			defer wg.Done()
			for {
				_, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "b.mp4")})
				if err == nil {
					return
				}
				if !errors.Is(err, ErrSessionBusy) {
					t.Errorf("OpenEditor() error = %v", err)
					return
				}
			}
		}()
		wg.Wait()

		if !s.Session().Active() {
			t.Fatalf("iteration %d: reopened session was torn down by cancel", i)
		}
		if err := s.Session().SetCrop("1:1"); err != nil {
			t.Fatalf("iteration %d: SetCrop() error = %v", i, err)
		}
		if err := s.Cancel(); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
	}
}

func TestOpenEditor_RejectsSourceOutsideStorage(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))

	for _, source := range []string{
		"file:///etc/passwd",
		"/etc/passwd",
		"http://example.com/a.mp4",
		"file://" + s.storage.UploadsDir() + "/../../../etc/passwd",
	} {
		t.Run(source, func(t *testing.T) {
			if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: source}); !errors.Is(err, editor.ErrSourceMissing) {
				t.Errorf("OpenEditor() error = %v, want ErrSourceMissing", err)
			}
			if s.Session().Active() {
				t.Error("session opened on a rejected source")
			}
		})
	}
}

func TestCheckMediaURI(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))

	tests := []struct {
		uri     string
		wantErr bool
	}{
		{"", false},
		{"file://" + s.storage.GetTempPath("v1.wav"), false},
		{s.storage.GetTempPath("v1.wav"), false},
		{"file:///etc/shadow", true},
		{"https://example.com/music.mp3", true},
		{"rec/v1.m4a", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			err := s.CheckMediaURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckMediaURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, editor.ErrInvalidSegment) {
				t.Errorf("CheckMediaURI(%q) error = %v, want ErrInvalidSegment", tt.uri, err)
			}
		})
	}
}

func TestExport_PublishesProgress(t *testing.T) {
	renderer := &fakeRenderer{uri: "file:///out/p.mp4"}
	s := newTestEditor(t, renderer, probeWithDuration("10"))
	events, unsubscribe := s.progress.Subscribe()
	defer unsubscribe()

	if _, err := s.OpenEditor(context.Background(), models.OpenOptions{Source: storedURI(s, "a.mp4")}); err != nil {
		t.Fatalf("OpenEditor() error = %v", err)
	}
	if _, err := s.Export(context.Background()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var stages []string
	for len(stages) < 3 {
		select {
		case e := <-events:
			stages = append(stages, e.Stage)
			if e.ExportID == "" {
				t.Errorf("event %+v has no export id", e)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out, got stages %v", stages)
		}
	}

	want := []string{StageStarted, StageProgress, StageCompleted}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stages = %v, want %v", stages, want)
			break
		}
	}
}

func TestReset_WithoutRequest(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))
	s.Reset()
	if s.Session().Active() {
		t.Error("session active after reset")
	}
}

func TestPrepareVoiceover_FillsEndFromWav(t *testing.T) {
	s := newTestEditor(t, &fakeRenderer{}, probeWithDuration("10"))

	path := s.storage.GetTempPath("take.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 32000),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	seg := s.PrepareVoiceover(models.VoiceoverSegment{
		Segment: models.Segment{ID: "v1", Start: 3},
		URI:     "file://" + path,
	})
	if seg.End < 4.99 || seg.End > 5.01 {
		t.Errorf("End = %f, want 5", seg.End)
	}

	explicit := models.VoiceoverSegment{Segment: models.Segment{ID: "v2", Start: 1, End: 2}, URI: "file://" + path}
	if got := s.PrepareVoiceover(explicit); got.End != 2 {
		t.Errorf("explicit end overwritten: %f", got.End)
	}
}
