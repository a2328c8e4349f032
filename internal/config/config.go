package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	FFmpeg  FFmpegConfig  `mapstructure:"ffmpeg"`
	Editor  EditorConfig  `mapstructure:"editor"`
}

type ServerConfig struct {
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	MaxUploadSize int64    `mapstructure:"max_upload_size"`
	Production    bool     `mapstructure:"production"`
	CorsOrigins   []string `mapstructure:"cors_origins"`
}

type StorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

type FFmpegConfig struct {
	Path        string `mapstructure:"path"`
	ProbePath   string `mapstructure:"probe_path"`
	Threads     int    `mapstructure:"threads"`
	Preset      string `mapstructure:"preset"`
	FontFile    string `mapstructure:"font_file"`
	ExportCodec string `mapstructure:"export_codec"`
}

// EditorConfig tunes the editing session and the export hand-off.
type EditorConfig struct {
	// FontPixelRatio converts editor font sizes to renderer pixels.
	FontPixelRatio float64         `mapstructure:"font_pixel_ratio"`
	Features       map[string]bool `mapstructure:"features"`
	ExportFormat   string          `mapstructure:"export_format"`

	ThumbnailChunkSize    int     `mapstructure:"thumbnail_chunk_size"`
	ThumbnailConcurrency  int     `mapstructure:"thumbnail_concurrency"`
	ThumbnailChunksPerSec float64 `mapstructure:"thumbnail_chunks_per_sec"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/videoeditor/")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".videoeditor"))
	}

	v.SetEnvPrefix("VIDEOEDITOR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "/var/videoeditor"
	}
	cfg.Storage.BasePath = os.ExpandEnv(cfg.Storage.BasePath)

	if cfg.Editor.FontPixelRatio <= 0 {
		cfg.Editor.FontPixelRatio = 1
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_size", 4294967296) // 4GB
	v.SetDefault("server.production", false)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.base_path", "/var/videoeditor")

	// FFmpeg defaults
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffmpeg.probe_path", "ffprobe")
	v.SetDefault("ffmpeg.threads", 0) // auto
	v.SetDefault("ffmpeg.preset", "veryfast")
	v.SetDefault("ffmpeg.font_file", "")
	v.SetDefault("ffmpeg.export_codec", "libx264")

	// Editor defaults
	v.SetDefault("editor.font_pixel_ratio", 1.0)
	v.SetDefault("editor.features", map[string]bool{
		"trim":      true,
		"crop":      true,
		"text":      true,
		"audio":     true,
		"voiceover": true,
	})
	v.SetDefault("editor.export_format", "mp4")
	v.SetDefault("editor.thumbnail_chunk_size", 5)
	v.SetDefault("editor.thumbnail_concurrency", 2)
	v.SetDefault("editor.thumbnail_chunks_per_sec", 10.0)
}
