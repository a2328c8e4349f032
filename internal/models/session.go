package models

import "math"

// TrimEndUnset marks a trim window that has not been set yet
const TrimEndUnset = math.MaxFloat64

// TrimWindow is the retained range in source seconds
type TrimWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// PlaybackState is the read model exposed to the player UI
type PlaybackState struct {
	CurrentTime      float64 `json:"currentTime"`
	Duration         float64 `json:"duration"`
	OriginalDuration float64 `json:"originalDuration"`
}

// OpenOptions starts an editing session
type OpenOptions struct {
	Source   string          `json:"source"`
	Features map[string]bool `json:"features,omitempty"`
}

// EditorResult is delivered exactly once per opened editor
type EditorResult struct {
	Success     bool   `json:"success"`
	ExportedURI string `json:"exportedUri,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ActiveSegment points at the segment currently selected in the timeline
type ActiveSegment struct {
	Kind SegmentKind `json:"kind"`
	ID   string      `json:"id"`
}
