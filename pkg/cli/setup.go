package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/wisp/wisp/internal/pipeline"
	"github.com/wisp/wisp/pkg/config"
	"github.com/wisp/wisp/pkg/interfaces"
	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/notifier"
	"github.com/wisp/wisp/pkg/types"
)

// buildPipeline assembles a ready pipeline from a loaded configuration:
// resolved descriptors registered, plans built, notifier wired. Returns a
// ConfigurationError for bad dependency declarations.
func buildPipeline(cfg *types.HooksConfig, log logger.Logger) (*pipeline.Pipeline, error) {
	manager := config.NewManager(log)

	descriptors, err := manager.ResolveDescriptors(cfg)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Notifier: buildNotifier(cfg, log),
	}
	if cfg.Scheduling != nil {
		opts.Concurrent = cfg.Scheduling.Concurrent
		opts.DefaultTimeout = time.Duration(cfg.Scheduling.DefaultTimeoutMs) * time.Millisecond
	}

	p := pipeline.New(log, opts)
	if err := p.Register(descriptors...); err != nil {
		return nil, err
	}

	return p, nil
}

func buildNotifier(cfg *types.HooksConfig, log logger.Logger) interfaces.PipelineNotifier {
	if cfg.Notifications == nil || cfg.Notifications.Enabled == nil || !*cfg.Notifications.Enabled {
		return nil
	}
	return notifier.New(notifier.Config{Enabled: true}, log)
}

// loadConfigFile loads and validates the hooks configuration
func loadConfigFile(path string, log logger.Logger) (*types.HooksConfig, error) {
	manager := config.NewManager(log)
	cfg, err := manager.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// createLogger builds the CLI logger from the global flags. The config
// file's logFile applies when the flag is unset.
func createLogger(cfg *types.HooksConfig) logger.Logger {
	path := logFile
	if path == "" && cfg != nil {
		path = cfg.LogFile
	}
	return logger.CreateLogger(path, verbosity)
}
