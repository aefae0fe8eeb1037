package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/config"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/spf13/cobra"
)

// defaultLogMaxSize is used when logging.rotation.max_size is empty or invalid.
const defaultLogMaxSize = 10 * 1024 * 1024

// initializeLogging is the PersistentPreRunE hook. It makes sure the XDG
// directories exist and starts file logging with the configured levels.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	for _, dir := range []string{config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		// Fall back to defaults so a broken config file still gets logged.
		cfg = &config.Config{}
		cfg.Logging.Level = "info"
	}

	logCfg := logging.Config{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		Rotation:   parseRotationConfig(cfg.Logging.Rotation),
		Components: cfg.Logging.Components,
	}
	if logCfg.Path == "" {
		logCfg.Path = config.DefaultLogPath()
	}
	if getVerbose() && !getQuiet() {
		logCfg.ConsoleLevel = "debug"
	}

	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// parseRotationConfig converts the config file's rotation settings.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize := int64(defaultLogMaxSize)
	if rc.MaxSize != "" {
		if n, err := types.ParseSize(rc.MaxSize); err == nil && n > 0 {
			maxSize = n
		}
	}

	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}
