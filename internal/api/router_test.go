package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/reelcut/video-editor/backend/internal/ffmpeg"
	"github.com/reelcut/video-editor/backend/internal/models"
	"github.com/reelcut/video-editor/backend/internal/services"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"go.uber.org/zap"
)

type stubRenderer struct {
	uri string
	err error
}

func (r *stubRenderer) ApplyEdits(ctx context.Context, cfg models.ExportConfig) (string, error) {
	return r.uri, r.err
}

type stubProber struct{}

func (stubProber) Probe(ctx context.Context, filePath string) (*ffmpeg.ProbeResult, error) {
	return &ffmpeg.ProbeResult{Format: ffmpeg.Format{FormatName: "mp4", Duration: "20.0"}}, nil
}

type stubSnapshotter struct{}

func (stubSnapshotter) CaptureSnapshot(ctx context.Context, input, output string, timestamp float64, width, quality int) error {
	return os.WriteFile(output, []byte("jpg"), 0644)
}

type testServer struct {
	router   *gin.Engine
	services *services.Services
	renderer *stubRenderer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadSize: 1 << 20},
		Editor: config.EditorConfig{
			FontPixelRatio:        1,
			ThumbnailChunkSize:    2,
			ThumbnailConcurrency:  2,
			ThumbnailChunksPerSec: 1000,
		},
	}
	store := storage.NewManager(t.TempDir(), logger)
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	renderer := &stubRenderer{uri: "file://" + store.GetOutputPath("done.mp4")}
	hub := services.NewProgressHub()
	svc := &services.Services{
		Editor:     services.NewEditorService(renderer, stubProber{}, store, hub, cfg, logger),
		Thumbnails: services.NewThumbnailService(stubSnapshotter{}, store, cfg, logger),
		Video:      services.NewVideoService(store, stubProber{}, logger),
		Progress:   hub,
		Executor:   ffmpeg.NewExecutor("", "", logger),
		Storage:    store,
		Config:     cfg,
		Logger:     logger,
	}

	return &testServer{
		router:   NewRouter(svc, cfg, logger),
		services: svc,
		renderer: renderer,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body %s", w.Code, want, w.Body.String())
	}
}

// media returns a file:// URI inside the test storage tree
func (s *testServer) media(name string) string {
	return "file://" + s.services.Storage.GetVideoPath(name)
}

func (s *testServer) open(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/editor/open", gin.H{"source": s.media("a.mp4")})
	expectStatus(t, w, http.StatusCreated)
}

var textBody = gin.H{"id": "t1", "start": 2, "end": 6, "text": "Hi", "fontSize": 24, "color": "#ffffff", "x": 10, "y": 20}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/health", nil), http.StatusOK)
}

func TestEditorFlow_Export(t *testing.T) {
	s := newTestServer(t)
	s.open(t)

	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/text", textBody), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPut, "/api/editor/crop", gin.H{"selection": "9:16"}), http.StatusOK)

	w := s.do(t, http.MethodGet, "/api/editor/export-config", nil)
	expectStatus(t, w, http.StatusOK)
	cfg := decode[models.ExportConfig](t, w)
	if len(cfg.VideoElements) != 3 {
		t.Fatalf("export config has %d elements: %s", len(cfg.VideoElements), w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"type":"addTextOverlay"`) {
		t.Errorf("export config missing text overlay: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/editor/export", nil)
	expectStatus(t, w, http.StatusOK)
	result := decode[models.EditorResult](t, w)
	if !result.Success || result.ExportedURI != s.renderer.uri {
		t.Errorf("export result = %+v", result)
	}

	w = s.do(t, http.MethodGet, "/api/editor/result", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Errorf("result body = %s", w.Body.String())
	}

	// session is gone after a successful export
	expectStatus(t, s.do(t, http.MethodPut, "/api/editor/crop", gin.H{"selection": "1:1"}), http.StatusConflict)
}

func TestOutputs_ManifestAndDelete(t *testing.T) {
	s := newTestServer(t)
	s.open(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/text", textBody), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/export", nil), http.StatusOK)

	out := s.services.Storage.GetOutputPath("done.mp4")
	if err := os.WriteFile(out, []byte("mp4"), 0644); err != nil {
		t.Fatal(err)
	}

	w := s.do(t, http.MethodGet, "/api/outputs/done.mp4/manifest", nil)
	expectStatus(t, w, http.StatusOK)
	manifest := decode[models.ExportConfig](t, w)
	if len(manifest.VideoElements) != 2 {
		t.Errorf("manifest has %d elements: %s", len(manifest.VideoElements), w.Body.String())
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/api/outputs/done.mp4", nil), http.StatusNoContent)
	if s.services.Storage.FileExists(out) {
		t.Error("output still on disk after delete")
	}
	expectStatus(t, s.do(t, http.MethodGet, "/api/outputs/done.mp4/manifest", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/outputs/done.mp4", nil), http.StatusNotFound)
}

func TestEditorFlow_ExportFailureKeepsSession(t *testing.T) {
	s := newTestServer(t)
	s.open(t)
	s.renderer.err = errors.New("disk full")

	w := s.do(t, http.MethodPost, "/api/editor/export", nil)
	expectStatus(t, w, http.StatusInternalServerError)
	if !strings.Contains(w.Body.String(), "disk full") {
		t.Errorf("error body = %s", w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/editor/result", nil)
	expectStatus(t, w, http.StatusAccepted)

	expectStatus(t, s.do(t, http.MethodPut, "/api/editor/crop", gin.H{"selection": "1:1"}), http.StatusOK)
}

func TestOpen_MissingSource(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/editor/open", gin.H{"source": ""})
	expectStatus(t, w, http.StatusOK)
	body := decode[struct {
		Result models.EditorResult `json:"result"`
	}](t, w)
	if body.Result.Success || body.Result.Error != "Video source missing" {
		t.Errorf("result = %+v", body.Result)
	}
}

func TestMediaOutsideStorage(t *testing.T) {
	s := newTestServer(t)

	for _, source := range []string{"file:///etc/passwd", "http://example.com/a.mp4"} {
		expectStatus(t, s.do(t, http.MethodPost, "/api/editor/open", gin.H{"source": source}), http.StatusBadRequest)
	}
	if s.services.Editor.Session().Active() {
		t.Fatal("session opened on a rejected source")
	}

	s.open(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"audio add", http.MethodPost, "/api/editor/audio", gin.H{"id": "a1", "start": 0, "end": 2, "uri": "file:///etc/passwd"}},
		{"audio set", http.MethodPut, "/api/editor/audio", []gin.H{{"id": "a1", "start": 0, "end": 2, "uri": "ftp://host/m.mp3"}}},
		{"voiceover add", http.MethodPost, "/api/editor/voiceover", gin.H{"id": "v1", "start": 0, "uri": "https://example.com/v.wav"}},
		{"voiceover set", http.MethodPut, "/api/editor/voiceover", []gin.H{{"id": "v1", "start": 0, "end": 1, "uri": "/etc/hosts"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, tt.method, tt.path, tt.body), http.StatusBadRequest)
		})
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/voiceover",
		gin.H{"id": "v2", "start": 0, "end": 1, "uri": s.media("v2.m4a")}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPatch, "/api/editor/voiceover/v2", gin.H{"uri": "file:///etc/passwd"}), http.StatusBadRequest)

	items := decode[[]models.VoiceoverSegment](t, s.do(t, http.MethodGet, "/api/editor/voiceover", nil))
	if len(items) != 1 || items[0].URI != s.media("v2.m4a") {
		t.Errorf("voiceovers = %+v", items)
	}
	if audio := decode[[]models.AudioSegment](t, s.do(t, http.MethodGet, "/api/editor/audio", nil)); len(audio) != 0 {
		t.Errorf("rejected audio was stored: %+v", audio)
	}
}

func TestOpen_Busy(t *testing.T) {
	s := newTestServer(t)
	s.open(t)

	w := s.do(t, http.MethodPost, "/api/editor/open", gin.H{"source": s.media("b.mp4")})
	expectStatus(t, w, http.StatusConflict)
}

func TestCancel(t *testing.T) {
	s := newTestServer(t)
	s.open(t)

	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/cancel", nil), http.StatusOK)

	w := s.do(t, http.MethodGet, "/api/editor/result", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Errorf("result body = %s", w.Body.String())
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/cancel", nil), http.StatusConflict)
}

func TestResult_NoRequest(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/api/editor/result", nil), http.StatusNotFound)
}

func TestResult_LongPoll(t *testing.T) {
	s := newTestServer(t)
	s.open(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.services.Editor.Cancel()
	}()

	w := s.do(t, http.MethodGet, "/api/editor/result?wait=2s", nil)
	expectStatus(t, w, http.StatusOK)
}

func TestTrimCommit_ShiftsSegments(t *testing.T) {
	s := newTestServer(t)
	s.open(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/text", textBody), http.StatusCreated)

	w := s.do(t, http.MethodPut, "/api/editor/trim", gin.H{"start": 3, "end": 10, "commit": true})
	expectStatus(t, w, http.StatusOK)

	texts := decode[[]models.TextSegment](t, s.do(t, http.MethodGet, "/api/editor/text", nil))
	if len(texts) != 1 || texts[0].Start != 0 || texts[0].End != 3 {
		t.Errorf("texts after trim = %+v", texts)
	}

	playback := decode[models.PlaybackState](t, s.do(t, http.MethodGet, "/api/editor/playback", nil))
	if playback.Duration != 7 || playback.OriginalDuration != 20 {
		t.Errorf("playback = %+v", playback)
	}
}

func TestTrim_Invalid(t *testing.T) {
	s := newTestServer(t)
	s.open(t)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing end", gin.H{"start": 1}, http.StatusBadRequest},
		{"reversed", gin.H{"start": 5, "end": 2}, http.StatusBadRequest},
		{"past duration", gin.H{"start": 1, "end": 30}, http.StatusBadRequest},
		{"valid", gin.H{"start": 1, "end": 4}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, http.MethodPut, "/api/editor/trim", tt.body), tt.want)
		})
	}
}

func TestSegments_CRUD(t *testing.T) {
	s := newTestServer(t)
	s.open(t)

	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/voiceover",
		gin.H{"id": "v1", "start": 1, "end": 3, "uri": s.media("v1.m4a")}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPatch, "/api/editor/voiceover/v1", gin.H{"end": 5}), http.StatusOK)

	items := decode[[]models.VoiceoverSegment](t, s.do(t, http.MethodGet, "/api/editor/voiceover", nil))
	if len(items) != 1 || items[0].End != 5 {
		t.Errorf("voiceovers = %+v", items)
	}

	expectStatus(t, s.do(t, http.MethodPut, "/api/editor/active", gin.H{"kind": "voiceover", "id": "v1"}), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPut, "/api/editor/active", gin.H{"kind": "voiceover", "id": "nope"}), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/editor/voiceover/v1", nil), http.StatusNoContent)

	// a second audio track is rejected
	tracks := []gin.H{
		{"id": "a1", "start": 0, "end": 2, "uri": s.media("m1.mp3")},
		{"id": "a2", "start": 0, "end": 2, "uri": s.media("m2.mp3")},
	}
	expectStatus(t, s.do(t, http.MethodPut, "/api/editor/audio", tracks), http.StatusBadRequest)

	// invalid span
	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/text", gin.H{"id": "bad", "start": 4, "end": 1}), http.StatusBadRequest)
}

func TestCommitText_RemovesBlank(t *testing.T) {
	s := newTestServer(t)
	s.open(t)

	blank := gin.H{"id": "t2", "start": 0, "end": 1, "text": "  "}
	expectStatus(t, s.do(t, http.MethodPost, "/api/editor/text", blank), http.StatusCreated)

	w := s.do(t, http.MethodPost, "/api/editor/text/t2/commit", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"kept":false`) {
		t.Errorf("commit body = %s", w.Body.String())
	}
	if texts := decode[[]models.TextSegment](t, s.do(t, http.MethodGet, "/api/editor/text", nil)); len(texts) != 0 {
		t.Errorf("blank text survived commit: %+v", texts)
	}
}

func TestFeatureDisabled(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/editor/open", gin.H{"source": s.media("a.mp4"), "features": gin.H{"crop": false}})
	expectStatus(t, w, http.StatusCreated)

	expectStatus(t, s.do(t, http.MethodPut, "/api/editor/crop", gin.H{"selection": "1:1"}), http.StatusForbidden)
}

func TestThumbnails(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/api/editor/thumbnails", nil), http.StatusConflict)

	s.open(t)
	w := s.do(t, http.MethodGet, "/api/editor/thumbnails?count=5&width=120", nil)
	expectStatus(t, w, http.StatusOK)

	batch := decode[services.ThumbnailBatch](t, w)
	if len(batch.Frames) != 5 {
		t.Fatalf("got %d frames", len(batch.Frames))
	}
	expectStatus(t, s.do(t, http.MethodGet, batch.Frames[4].URL, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/thumbnails/"+batch.ID+"/9", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/api/editor/thumbnails?count=0", nil), http.StatusBadRequest)
}

func TestUploadAndOutputs(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake video"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusCreated)

	resp := decode[models.UploadResponse](t, w)
	if resp.Video == nil || resp.Video.Duration != 20 || !strings.HasPrefix(resp.Video.URI, "file://") {
		t.Fatalf("upload response = %+v", resp.Video)
	}
	if !s.services.Storage.FileExists(resp.Video.FilePath) {
		t.Error("uploaded file not stored")
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/outputs/missing.mp4", nil), http.StatusNotFound)

	out := s.services.Storage.GetOutputPath("done.mp4")
	if err := os.WriteFile(out, []byte("mp4"), 0644); err != nil {
		t.Fatal(err)
	}
	w = s.do(t, http.MethodGet, "/api/outputs/done.mp4", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Header().Get("Content-Disposition"), "done.mp4") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}
}

func TestSystemInfo(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/system/info", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"ffmpeg":"ffmpeg"`) {
		t.Errorf("info body = %s", w.Body.String())
	}
}

func TestProgressWebsocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/editor/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for s.services.Progress.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.services.Progress.Publish(services.ProgressEvent{ExportID: "e1", Stage: services.StageProgress, Progress: 0.4})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var event services.ProgressEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if event.ExportID != "e1" || event.Progress != 0.4 {
		t.Errorf("event = %+v", event)
	}
}
