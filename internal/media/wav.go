// Package media reads metadata from recorded audio clips.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

var ErrNotWav = errors.New("not a valid WAV file")

// IsWav reports whether path looks like a WAV recording
func IsWav(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".wav" || ext == ".wave"
}

// WavDuration returns the playback length of a WAV file in seconds
func WavDuration(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return 0, fmt.Errorf("%s: %w", path, ErrNotWav)
	}

	duration, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to read duration: %w", err)
	}
	return duration.Seconds(), nil
}
