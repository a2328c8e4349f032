package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// ProbeResult contains video metadata from FFprobe
type ProbeResult struct {
	Format  Format   `json:"format"`
	Streams []Stream `json:"streams"`
}

// Format contains container format information
type Format struct {
	Filename       string `json:"filename"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	Duration       string `json:"duration"`
	Size           string `json:"size"`
	BitRate        string `json:"bit_rate,omitempty"`
	Tags           Tags   `json:"tags,omitempty"`
}

// Stream contains information about a media stream
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"` // video, audio, subtitle, data
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	SampleRate   string `json:"sample_rate,omitempty"`
	Channels     int    `json:"channels,omitempty"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration,omitempty"`
	Tags         Tags   `json:"tags,omitempty"`
}

// Tags contains metadata tags
type Tags map[string]string

// Probe extracts metadata from a media file using FFprobe
func (e *Executor) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	// Create context with timeout
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	e.logger.Info("Executing FFprobe",
		zap.String("file", filePath),
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	e.logger.Info("FFprobe completed successfully",
		zap.String("format", result.Format.FormatName),
		zap.Int("streams", len(result.Streams)),
	)

	return &result, nil
}

// GetDuration extracts the duration from probe result in seconds
func (p *ProbeResult) GetDuration() (float64, error) {
	var duration float64
	if _, err := fmt.Sscanf(p.Format.Duration, "%f", &duration); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}

// GetVideoStreams returns all video streams
func (p *ProbeResult) GetVideoStreams() []Stream {
	var videos []Stream
	for _, stream := range p.Streams {
		if stream.CodecType == "video" {
			videos = append(videos, stream)
		}
	}
	return videos
}

// GetAudioStreams returns all audio streams
func (p *ProbeResult) GetAudioStreams() []Stream {
	var audios []Stream
	for _, stream := range p.Streams {
		if stream.CodecType == "audio" {
			audios = append(audios, stream)
		}
	}
	return audios
}

// HasAudio reports whether the file carries at least one audio stream
func (p *ProbeResult) HasAudio() bool {
	return len(p.GetAudioStreams()) > 0
}
