package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/wisp/wisp/internal/pipeline"
	"github.com/wisp/wisp/pkg/config"
	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/process"
	"github.com/wisp/wisp/pkg/types"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Serve events from stdin until interrupted",
		Long: `Start Wisp in watch mode. Events arrive as newline-delimited JSON on
stdin; each one is executed against the current pipeline and answered with a
single-line result JSON on stdout.

The configuration file is watched for changes and the pipeline is rebuilt on
save, so hooks can be edited without restarting the assistant session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchMode()
		},
	}
}

// watchSession owns the live pipeline and swaps it on config reload
type watchSession struct {
	logger logger.Logger

	mu       sync.RWMutex
	pipeline *pipeline.Pipeline
}

func (s *watchSession) current() *pipeline.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

func (s *watchSession) swap(p *pipeline.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = p
}

func runWatchMode() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := getConfigPath()
	cfg, err := loadConfigFile(configPath, nil)
	if err != nil {
		return err
	}

	log := createLogger(cfg)

	p, err := buildPipeline(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	session := &watchSession{logger: log, pipeline: p}

	// Hot-reload: rebuild the pipeline on config save; a broken edit keeps
	// the previous pipeline running
	reloader := config.NewReloadManager(configPath, log)
	reloader.AddCallback(func(newCfg *types.HooksConfig, err error) {
		if err != nil {
			printWarning(fmt.Sprintf("Config reload failed: %v", err))
			return
		}
		rebuilt, err := buildPipeline(newCfg, log)
		if err != nil {
			printWarning(fmt.Sprintf("Config rejected, keeping previous hooks: %v", err))
			return
		}
		session.swap(rebuilt)
		printInfo(fmt.Sprintf("Hooks reloaded: %d registered", rebuilt.HandlerCount()))
	})
	if err := reloader.StartWatching(); err != nil {
		printWarning(fmt.Sprintf("Config watching unavailable: %v", err))
	}

	pm := process.NewManager(log)
	pm.RegisterShutdownHandler(func() {
		reloader.StopWatching()
		cancel()
	})
	pm.Start(ctx)

	printInfo(fmt.Sprintf("Wisp v%s watching for events (%d hooks)", version, p.HandlerCount()))

	err = serveEvents(ctx, session)

	cancel()
	pm.Stop()

	if err != nil {
		return err
	}
	printSuccess("Wisp stopped gracefully")
	return nil
}

// serveEvents answers one result line per event line until stdin closes or
// the context is cancelled
func serveEvents(ctx context.Context, session *watchSession) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event types.HookEvent
		if err := json.Unmarshal(line, &event); err != nil {
			printWarning(fmt.Sprintf("Skipping malformed event: %v", err))
			continue
		}

		result, err := session.current().Run(ctx, event, nil)
		if err != nil {
			printWarning(fmt.Sprintf("Run failed: %v", err))
			continue
		}

		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	return scanner.Err()
}
