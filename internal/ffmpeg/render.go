package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/reelcut/video-editor/backend/internal/models"
	"go.uber.org/zap"
)

var ErrNoVideoSource = errors.New("export config has no videoUri record")

// RenderOptions controls how an export config is encoded
type RenderOptions struct {
	OutputDir string
	Format    string
	Codec     string
	Preset    string
	FontFile  string
	Threads   int
}

// SourceInfo describes the source video as probed before rendering
type SourceInfo struct {
	HasAudio bool
	Duration float64
}

// Renderer turns an export snapshot into a video file with ffmpeg
type Renderer struct {
	exec       *Executor
	opts       RenderOptions
	logger     *zap.Logger
	onProgress ProgressCallback
}

func NewRenderer(exec *Executor, opts RenderOptions, logger *zap.Logger) *Renderer {
	if opts.Format == "" {
		opts.Format = "mp4"
	}
	if opts.Codec == "" {
		opts.Codec = "libx264"
	}
	return &Renderer{
		exec:   exec,
		opts:   opts,
		logger: logger,
	}
}

// OnProgress registers a callback receiving export progress in [0, 1]
func (r *Renderer) OnProgress(cb ProgressCallback) {
	r.onProgress = cb
}

// ApplyEdits renders cfg and returns the file URI of the result
func (r *Renderer) ApplyEdits(ctx context.Context, cfg models.ExportConfig) (string, error) {
	plan, err := Plan(cfg)
	if err != nil {
		return "", err
	}

	source := SourceInfo{HasAudio: true}
	if probe, err := r.exec.Probe(ctx, plan.Video); err != nil {
		r.logger.Warn("Failed to probe export source", zap.String("source", plan.Video), zap.Error(err))
	} else {
		source.HasAudio = probe.HasAudio()
		if d, err := probe.GetDuration(); err == nil {
			source.Duration = d
		}
	}

	output := filepath.Join(r.opts.OutputDir, fmt.Sprintf("%s.%s", uuid.New().String(), r.opts.Format))

	r.logger.Info("Rendering export",
		zap.String("source", plan.Video),
		zap.String("output", output),
		zap.Int("textOverlays", len(plan.Texts)),
		zap.Int("voiceOvers", len(plan.VoiceOvers)),
		zap.Bool("lossless", plan.TrimOnly()),
	)

	if plan.TrimOnly() {
		err = r.exec.CutVideo(ctx, plan.Video, output, *plan.Trim.StartTime, *plan.Trim.EndTime, r.onProgress)
	} else {
		args, duration := r.Args(plan, source, output)
		err = r.exec.Execute(ctx, ExecuteOptions{
			Args:       args,
			Duration:   duration,
			OnProgress: r.onProgress,
		})
	}
	if err != nil {
		return "", err
	}

	return fileURI(output), nil
}

// RenderPlan is an export config grouped by operation kind
type RenderPlan struct {
	Video      string
	Trim       *models.TrimOperation
	Crop       *models.CropOperation
	Audio      *models.AudioOperation
	Texts      []models.TextOverlayOperation
	VoiceOvers []models.VoiceOverOperation
}

// Plan groups the records of cfg. Later singleton records win.
func Plan(cfg models.ExportConfig) (RenderPlan, error) {
	var plan RenderPlan
	for _, op := range cfg.VideoElements {
		switch o := op.(type) {
		case models.VideoURIOperation:
			plan.Video = LocalPath(o.VideoURI)
		case models.TrimOperation:
			plan.Trim = &o
		case models.CropOperation:
			plan.Crop = &o
		case models.AudioOperation:
			plan.Audio = &o
		case models.TextOverlayOperation:
			plan.Texts = append(plan.Texts, o)
		case models.VoiceOverOperation:
			plan.VoiceOvers = append(plan.VoiceOvers, o)
		default:
			return plan, fmt.Errorf("unsupported operation type %q", op.Type())
		}
	}
	if plan.Video == "" {
		return plan, ErrNoVideoSource
	}
	if plan.Crop != nil {
		if _, _, err := parseAspectRatio(plan.Crop.SelectionParams); err != nil {
			return plan, err
		}
	}
	return plan, nil
}

// TrimOnly reports whether the export can be done with a lossless stream copy
func (p RenderPlan) TrimOnly() bool {
	return p.Trim != nil && p.Trim.StartTime != nil && p.Trim.EndTime != nil &&
		p.Crop == nil && p.Audio == nil && len(p.Texts) == 0 && len(p.VoiceOvers) == 0
}

// Args builds the ffmpeg command line for plan and returns it with the
// expected output duration
func (r *Renderer) Args(plan RenderPlan, source SourceInfo, output string) ([]string, float64) {
	args := []string{"-hide_banner"}

	duration := source.Duration
	if plan.Trim != nil && plan.Trim.StartTime != nil && plan.Trim.EndTime != nil {
		start, end := *plan.Trim.StartTime, *plan.Trim.EndTime
		duration = end - start
		args = append(args,
			"-ss", formatSeconds(start),
			"-t", formatSeconds(duration),
		)
	}
	args = append(args, "-i", plan.Video)

	nextInput := 1
	musicInput := -1
	if plan.Audio != nil {
		if plan.Audio.IsLooped {
			args = append(args, "-stream_loop", "-1")
		}
		if plan.Audio.AudioOffset > 0 {
			args = append(args, "-ss", formatSeconds(plan.Audio.AudioOffset))
		}
		args = append(args, "-i", LocalPath(plan.Audio.MusicURI))
		musicInput = nextInput
		nextInput++
	}
	voiceInputs := make([]int, len(plan.VoiceOvers))
	for i, vo := range plan.VoiceOvers {
		args = append(args, "-i", LocalPath(vo.VoiceOverURI))
		voiceInputs[i] = nextInput
		nextInput++
	}

	var filters []string

	// video chain
	videoChain := []string{}
	if plan.Crop != nil {
		w, h, _ := parseAspectRatio(plan.Crop.SelectionParams)
		videoChain = append(videoChain, cropFilter(w, h))
	}
	for _, text := range plan.Texts {
		videoChain = append(videoChain, r.drawTextFilter(text))
	}
	videoLabel := "0:v"
	if len(videoChain) > 0 {
		filters = append(filters, "[0:v]"+strings.Join(videoChain, ",")+"[vout]")
		videoLabel = "[vout]"
	}

	// audio chain
	var mixInputs []string
	if source.HasAudio {
		mixInputs = append(mixInputs, "[0:a]")
	}
	if plan.Audio != nil {
		length := spanLength(plan.Audio.StartTime, plan.Audio.EndTime, duration)
		if !plan.Audio.IsLooped && plan.Audio.ClipDuration > 0 && (length <= 0 || plan.Audio.ClipDuration < length) {
			length = plan.Audio.ClipDuration
		}
		filters = append(filters, fmt.Sprintf("[%d:a]%s[music]", musicInput, placeAudio(length, startOf(plan.Audio.StartTime))))
		mixInputs = append(mixInputs, "[music]")
	}
	for i, vo := range plan.VoiceOvers {
		label := fmt.Sprintf("[vo%d]", i)
		length := spanLength(vo.StartTime, vo.EndTime, 0)
		filters = append(filters, fmt.Sprintf("[%d:a]%s%s", voiceInputs[i], placeAudio(length, startOf(vo.StartTime)), label))
		mixInputs = append(mixInputs, label)
	}

	audioLabel := ""
	switch {
	case len(mixInputs) > 1:
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=longest:dropout_transition=0:normalize=0[aout]",
			strings.Join(mixInputs, ""), len(mixInputs)))
		audioLabel = "[aout]"
	case len(mixInputs) == 1 && mixInputs[0] != "[0:a]":
		audioLabel = mixInputs[0]
	case len(mixInputs) == 1:
		audioLabel = "0:a?"
	}

	if len(filters) > 0 {
		args = append(args, "-filter_complex", strings.Join(filters, ";"))
	}
	args = append(args, "-map", videoLabel)
	if audioLabel != "" {
		args = append(args, "-map", audioLabel, "-c:a", "aac")
	}

	args = append(args, "-c:v", r.opts.Codec)
	if r.opts.Preset != "" {
		args = append(args, "-preset", r.opts.Preset)
	}
	if r.opts.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(r.opts.Threads))
	}
	if duration > 0 {
		// looped music and late voiceovers must not outlast the picture
		args = append(args, "-t", formatSeconds(duration))
	}
	args = append(args, "-movflags", "+faststart", "-y", output)

	return args, duration
}

func (r *Renderer) drawTextFilter(t models.TextOverlayOperation) string {
	opts := []string{
		"text=" + escapeFilterValue(t.Text),
		fmt.Sprintf("fontsize=%s", strconv.FormatFloat(t.FontSize, 'f', -1, 64)),
	}
	if r.opts.FontFile != "" {
		opts = append(opts, "fontfile="+escapeFilterValue(r.opts.FontFile))
	}
	if t.TextColor != "" {
		opts = append(opts, "fontcolor="+ffmpegColor(t.TextColor))
	}
	if t.BackgroundColor != "" {
		opts = append(opts, "box=1", "boxcolor="+ffmpegColor(t.BackgroundColor), "boxborderw=8")
	}
	if t.TextPosition != nil {
		x := strconv.FormatFloat(t.TextPosition.X, 'f', -1, 64)
		y := strconv.FormatFloat(t.TextPosition.Y, 'f', -1, 64)
		switch t.Alignment {
		case "center":
			x += "-text_w/2"
		case "right":
			x += "-text_w"
		}
		opts = append(opts, "x="+x, "y="+y)
	}
	if t.StartTime != nil && t.EndTime != nil {
		opts = append(opts, fmt.Sprintf("enable=between(t\\,%s\\,%s)", formatSeconds(*t.StartTime), formatSeconds(*t.EndTime)))
	}
	return "drawtext=" + strings.Join(opts, ":")
}

// cropFilter centers the largest w:h window inside the frame
func cropFilter(w, h int) string {
	return fmt.Sprintf("crop=w=trunc(min(iw\\,ih*%d/%d)/2)*2:h=trunc(min(ih\\,iw*%d/%d)/2)*2", w, h, h, w)
}

// placeAudio trims a stream to length (when known) and delays it to start
func placeAudio(length, start float64) string {
	var parts []string
	if length > 0 {
		parts = append(parts, "atrim=duration="+formatSeconds(length))
	}
	parts = append(parts, "asetpts=PTS-STARTPTS")
	if start > 0 {
		ms := int64(start * 1000)
		parts = append(parts, fmt.Sprintf("adelay=delays=%d:all=1", ms))
	}
	return strings.Join(parts, ",")
}

func parseAspectRatio(selection string) (int, int, error) {
	parts := strings.FieldsFunc(selection, func(r rune) bool { return r == ':' || r == '/' || r == 'x' })
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid crop selection %q", selection)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid crop selection %q", selection)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid crop selection %q", selection)
	}
	return w, h, nil
}

// escapeFilterValue escapes s for a filter option inside -filter_complex:
// once for the option parser and once for the graph parser
func escapeFilterValue(s string) string {
	opt := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`).Replace(s)
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`).Replace(opt)
}

func ffmpegColor(c string) string {
	if strings.HasPrefix(c, "#") {
		return "0x" + strings.TrimPrefix(c, "#")
	}
	return c
}

func spanLength(start, end *float64, fallback float64) float64 {
	if start != nil && end != nil && *end > *start {
		return *end - *start
	}
	return fallback
}

func startOf(start *float64) float64 {
	if start == nil {
		return 0
	}
	return *start
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// LocalPath turns a file:// URI into a filesystem path. Plain paths pass through.
func LocalPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		if u, err := url.Parse(uri); err == nil {
			return u.Path
		}
	}
	return uri
}

func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
