package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelcut/video-editor/backend/internal/editor"
	"github.com/reelcut/video-editor/backend/internal/ffmpeg"
	"github.com/reelcut/video-editor/backend/internal/script"
	"github.com/reelcut/video-editor/backend/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dryRun    bool
	outputDir string
)

var renderCmd = &cobra.Command{
	Use:   "render <script.yaml>",
	Short: "Render an edit script without the editor",
	Long: `Render replays a YAML edit script into an editing session and exports it.
With --dry-run the export config is printed instead of rendered.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the export config and exit")
	renderCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for the rendered file (default: storage outputs)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := script.Load(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor := ffmpeg.NewExecutor(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath, logger)

	if s.Duration == 0 && !dryRun {
		probe, err := executor.Probe(ctx, ffmpeg.LocalPath(s.Source))
		if err != nil {
			return fmt.Errorf("failed to probe source: %w", err)
		}
		if s.Duration, err = probe.GetDuration(); err != nil {
			return err
		}
	}

	session := editor.NewSession(logger, cfg.Editor.FontPixelRatio)
	if err := s.Apply(session); err != nil {
		return fmt.Errorf("failed to apply script: %w", err)
	}
	exportConfig := session.BuildExportConfig()

	if dryRun {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(exportConfig)
	}

	storageManager := storage.NewManager(cfg.Storage.BasePath, logger)
	if outputDir == "" {
		if err := storageManager.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		outputDir = storageManager.OutputsDir()
	} else if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	renderer := ffmpeg.NewRenderer(executor, ffmpeg.RenderOptions{
		OutputDir: outputDir,
		Format:    cfg.Editor.ExportFormat,
		Codec:     cfg.FFmpeg.ExportCodec,
		Preset:    cfg.FFmpeg.Preset,
		FontFile:  cfg.FFmpeg.FontFile,
		Threads:   cfg.FFmpeg.Threads,
	}, logger)
	renderer.OnProgress(func(p float64) {
		logger.Debug("Render progress", zap.Float64("progress", p))
	})

	uri, err := renderer.ApplyEdits(ctx, exportConfig)
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), uri)
	return nil
}
