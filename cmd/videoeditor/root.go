package main

import (
	"fmt"

	"github.com/reelcut/video-editor/backend/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "videoeditor",
	Short: "Video editing session backend",
	Long: `videoeditor hosts an in-app video editing session over HTTP and renders
the resulting edits with ffmpeg. Edits can also be described in a YAML script
and rendered headless.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// setup loads the config and builds the logger every command shares
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.Server.Production, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(production, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if production {
		zcfg = zap.NewProductionConfig()
	}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}
