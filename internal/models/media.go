package models

import "time"

// Video represents an uploaded source video
type Video struct {
	ID        string        `json:"id"`
	FileName  string        `json:"file_name"`
	FilePath  string        `json:"file_path"`
	URI       string        `json:"uri"`
	FileSize  int64         `json:"file_size"`
	Duration  float64       `json:"duration"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Codec     string        `json:"codec"`
	Format    string        `json:"format"`
	Metadata  VideoMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// VideoMetadata contains FFprobe metadata
type VideoMetadata struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream represents a media stream
type Stream struct {
	Index      int     `json:"index"`
	CodecType  string  `json:"codec_type"`
	CodecName  string  `json:"codec_name"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
}

// Format represents the container format
type Format struct {
	FormatName string  `json:"format_name"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
}

// ExportRequest tunes an export of the current session
type ExportRequest struct {
	Format     string `json:"format,omitempty"`
	OutputName string `json:"output_name,omitempty"`
}

// UploadResponse represents a successful upload response
type UploadResponse struct {
	VideoID string `json:"video_id"`
	Video   *Video `json:"video"`
}
