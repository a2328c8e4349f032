// Package script loads YAML edit scripts and replays them into an editing
// session, so an export can be produced without the interactive editor.
package script

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/reelcut/video-editor/backend/internal/editor"
	"github.com/reelcut/video-editor/backend/internal/models"
	"gopkg.in/yaml.v3"
)

var ErrNoSource = errors.New("script has no source")

// Script is a complete edit described up front. Segment times are on the
// trimmed timeline.
type Script struct {
	Source     string                    `yaml:"source"`
	Duration   float64                   `yaml:"duration,omitempty"`
	Features   map[string]bool           `yaml:"features,omitempty"`
	Trim       *TrimSpec                 `yaml:"trim,omitempty"`
	Crop       string                    `yaml:"crop,omitempty"`
	Audio      *models.AudioSegment      `yaml:"audio,omitempty"`
	Texts      []models.TextSegment      `yaml:"texts,omitempty"`
	Voiceovers []models.VoiceoverSegment `yaml:"voiceovers,omitempty"`
}

// TrimSpec is the retained range in source seconds
type TrimSpec struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Load reads and validates a script file
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if strings.TrimSpace(s.Source) == "" {
		return nil, ErrNoSource
	}
	return &s, nil
}

// Apply replays the script into session, replacing whatever it held. Segments
// without an id get one derived from their position.
func (s *Script) Apply(session *editor.Session) error {
	if err := session.Init(models.OpenOptions{Source: s.Source, Features: s.Features}); err != nil {
		return err
	}
	if s.Duration > 0 {
		if err := session.MediaLoaded(s.Duration); err != nil {
			return err
		}
	}

	if s.Trim != nil {
		if err := session.CommitTrim(s.Trim.Start, s.Trim.End); err != nil {
			return fmt.Errorf("trim: %w", err)
		}
	}
	if s.Crop != "" {
		if err := session.SetCrop(s.Crop); err != nil {
			return fmt.Errorf("crop: %w", err)
		}
	}

	if s.Audio != nil {
		audio := *s.Audio
		if audio.ID == "" {
			audio.ID = "audio-1"
		}
		if audio.End <= audio.Start {
			// no span: the track runs to the end of the playable timeline
			audio.End = session.PlaybackState().Duration
		}
		if err := session.SetAudioSegments([]models.AudioSegment{audio}); err != nil {
			return fmt.Errorf("audio: %w", err)
		}
	}

	if len(s.Texts) > 0 {
		texts := make([]models.TextSegment, len(s.Texts))
		for i, t := range s.Texts {
			if t.ID == "" {
				t.ID = fmt.Sprintf("text-%d", i+1)
			}
			texts[i] = t
		}
		if err := session.SetTextSegments(texts); err != nil {
			return fmt.Errorf("texts: %w", err)
		}
	}

	if len(s.Voiceovers) > 0 {
		voiceovers := make([]models.VoiceoverSegment, len(s.Voiceovers))
		for i, v := range s.Voiceovers {
			if v.ID == "" {
				v.ID = fmt.Sprintf("voiceover-%d", i+1)
			}
			voiceovers[i] = v
		}
		if err := session.SetVoiceoverSegments(voiceovers); err != nil {
			return fmt.Errorf("voiceovers: %w", err)
		}
	}

	return nil
}
