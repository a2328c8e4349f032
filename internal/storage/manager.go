package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reelcut/video-editor/backend/internal/models"
	"go.uber.org/zap"
)

var ErrManifestNotFound = errors.New("manifest not found")

// Manager handles file storage operations
type Manager struct {
	basePath string
	logger   *zap.Logger
}

// NewManager creates a new storage manager
func NewManager(basePath string, logger *zap.Logger) *Manager {
	return &Manager{
		basePath: basePath,
		logger:   logger,
	}
}

// Initialize creates the storage directory structure
func (m *Manager) Initialize() error {
	dirs := []string{
		m.UploadsDir(),
		m.OutputsDir(),
		m.TempDir(),
		m.ThumbnailsDir(),
		m.ManifestsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		m.logger.Debug("Created storage directory", zap.String("path", dir))
	}

	return nil
}

// UploadsDir holds source videos and recorded clips
func (m *Manager) UploadsDir() string {
	return filepath.Join(m.basePath, "uploads")
}

// OutputsDir holds rendered exports
func (m *Manager) OutputsDir() string {
	return filepath.Join(m.basePath, "outputs")
}

func (m *Manager) TempDir() string {
	return filepath.Join(m.basePath, "temp")
}

// ThumbnailsDir holds timeline frames, one subdirectory per batch
func (m *Manager) ThumbnailsDir() string {
	return filepath.Join(m.basePath, "thumbnails")
}

// ManifestsDir holds the export config each render was produced from
func (m *Manager) ManifestsDir() string {
	return filepath.Join(m.basePath, "exports", "manifests")
}

// GetVideoPath returns the full path for an uploaded file
func (m *Manager) GetVideoPath(filename string) string {
	return filepath.Join(m.UploadsDir(), filepath.Base(filename))
}

// GetOutputPath returns the full path for an output file
func (m *Manager) GetOutputPath(filename string) string {
	return filepath.Join(m.OutputsDir(), filepath.Base(filename))
}

// GetTempPath returns a temp file path
func (m *Manager) GetTempPath(filename string) string {
	return filepath.Join(m.TempDir(), filepath.Base(filename))
}

// GetThumbnailPath returns the path of one frame in a thumbnail batch
func (m *Manager) GetThumbnailPath(batchID string, index int) string {
	return filepath.Join(m.ThumbnailsDir(), filepath.Base(batchID), fmt.Sprintf("%04d.jpg", index))
}

// GetManifestPath returns the manifest path for an export
func (m *Manager) GetManifestPath(exportID string) string {
	return filepath.Join(m.ManifestsDir(), filepath.Base(exportID)+".json")
}

// ManifestID names the manifest of a rendered output file
func ManifestID(outputFile string) string {
	name := filepath.Base(outputFile)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// SaveManifest stores the export config an output was rendered from
func (m *Manager) SaveManifest(exportID string, cfg models.ExportConfig) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := m.GetManifestPath(exportID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return path, nil
}

// LoadManifest reads a manifest written by SaveManifest
func (m *Manager) LoadManifest(exportID string) (models.ExportConfig, error) {
	var cfg models.ExportConfig

	data, err := os.ReadFile(m.GetManifestPath(exportID))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrManifestNotFound, exportID)
		}
		return cfg, fmt.Errorf("failed to read manifest: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return cfg, nil
}

// DeleteFile removes a file
func (m *Manager) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

// FileExists checks if a file exists
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetFileSize returns the size of a file
func (m *Manager) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Contains reports whether path lies inside the storage tree
func (m *Manager) Contains(path string) bool {
	base, err := filepath.Abs(m.basePath)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == base || strings.HasPrefix(abs, base+string(filepath.Separator))
}

// ClearTemp empties the temp and thumbnails directories
func (m *Manager) ClearTemp() error {
	for _, dir := range []string{m.TempDir(), m.ThumbnailsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				m.logger.Warn("Failed to delete temp entry", zap.String("path", path), zap.Error(err))
			}
		}
	}

	m.logger.Info("Cleared temp storage")
	return nil
}
