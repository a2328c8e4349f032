package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// Executor manages FFmpeg process execution
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
	mu          sync.Mutex
	processes   map[string]*exec.Cmd
}

// NewExecutor creates a new FFmpeg executor
func NewExecutor(ffmpegPath, ffprobePath string, logger *zap.Logger) *Executor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
		processes:   make(map[string]*exec.Cmd),
	}
}

// ProgressCallback is called with progress updates (0.0 to 1.0)
type ProgressCallback func(progress float64)

// ExecuteOptions contains options for FFmpeg execution
type ExecuteOptions struct {
	Args       []string
	Duration   float64
	OnProgress ProgressCallback
}

// Execute runs FFmpeg with the given arguments
func (e *Executor) Execute(ctx context.Context, opts ExecuteOptions) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, opts.Args...)

	e.logger.Info("Executing FFmpeg",
		zap.String("command", cmd.String()),
	)

	// Capture stderr for progress parsing
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var stdoutBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	processID := fmt.Sprintf("%d", cmd.Process.Pid)
	e.mu.Lock()
	e.processes[processID] = cmd
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.processes, processID)
		e.mu.Unlock()
	}()

	var stderrBuf bytes.Buffer
	progressDone := make(chan struct{})

	go func() {
		defer close(progressDone)
		e.parseProgress(stderrPipe, &stderrBuf, opts.Duration, opts.OnProgress)
	}()

	// stderr must be drained before Wait closes the pipe
	<-progressDone
	err = cmd.Wait()

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		errorMsg := ParseFFmpegError(stderrBuf.String())

		e.logger.Error("FFmpeg execution failed",
			zap.Error(err),
			zap.String("stderr", errorMsg),
		)

		return fmt.Errorf("ffmpeg failed: %s", errorMsg)
	}

	e.logger.Info("FFmpeg execution completed successfully")
	return nil
}

// Running returns the number of ffmpeg processes in flight
func (e *Executor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.processes)
}

// parseProgress reads stderr line by line and calls progress callback
func (e *Executor) parseProgress(stderr io.Reader, stderrBuf *bytes.Buffer, duration float64, onProgress ProgressCallback) {
	parser := NewProgressParser(duration)
	scanner := bufio.NewScanner(io.TeeReader(stderr, stderrBuf))
	scanner.Split(scanLinesOrCarriageReturns)

	for scanner.Scan() {
		line := scanner.Text()

		if onProgress != nil {
			progress := parser.ParseLine(line)
			if progress >= 0 {
				onProgress(progress)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		e.logger.Warn("Error reading FFmpeg stderr", zap.Error(err))
	}
}

// scanLinesOrCarriageReturns splits on \n and on the \r ffmpeg uses to
// rewrite its status line
func scanLinesOrCarriageReturns(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// CutVideo cuts a segment with stream copy. Used for exports that only trim.
func (e *Executor) CutVideo(ctx context.Context, input, output string, start, end float64, onProgress ProgressCallback) error {
	duration := end - start

	// -ss before -i seeks the input to the keyframe without decoding
	args := []string{
		"-hide_banner",
		"-ss", fmt.Sprintf("%.6f", start),
		"-i", input,
		"-t", fmt.Sprintf("%.6f", duration),
		"-map", "0",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-movflags", "+faststart",
		"-y",
		output,
	}

	return e.Execute(ctx, ExecuteOptions{
		Args:       args,
		Duration:   duration,
		OnProgress: onProgress,
	})
}

// CaptureSnapshot captures a frame as an image, scaled to width when width > 0
func (e *Executor) CaptureSnapshot(ctx context.Context, input, output string, timestamp float64, width, quality int) error {
	args := []string{
		"-hide_banner",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", input,
		"-vframes", "1",
	}
	if width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", width))
	}
	args = append(args,
		"-q:v", fmt.Sprintf("%d", quality),
		"-y",
		output,
	)

	return e.Execute(ctx, ExecuteOptions{
		Args: args,
	})
}

// GetFFmpegPath returns the FFmpeg binary path
func (e *Executor) GetFFmpegPath() string {
	return e.ffmpegPath
}

// GetFFprobePath returns the FFprobe binary path
func (e *Executor) GetFFprobePath() string {
	return e.ffprobePath
}
