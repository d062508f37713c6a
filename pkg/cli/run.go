package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wisp/wisp/pkg/interfaces"
	"github.com/wisp/wisp/pkg/types"
)

// exitCodeBlocked is returned when the merged decision is block. Assistant
// hook protocols treat exit code 2 as "deny the action".
const exitCodeBlocked = 2

func newRunCmd() *cobra.Command {
	var eventFile string
	var timeoutMs int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for one event read from stdin",
		Long: `Read a single lifecycle event as JSON from stdin, execute every hook
subscribed to it in dependency order, and print the pipeline result as JSON
on stdout.

The process exits 0 on success, 1 on pipeline failure and 2 when the merged
decision is "block", so it can be wired directly as an assistant hook
command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(eventFile, timeoutMs)
		},
	}

	cmd.Flags().StringVar(&eventFile, "event-file", "", "read the event from a file instead of stdin")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "per-handler timeout override in milliseconds")

	return cmd
}

func runRun(eventFile string, timeoutMs int) error {
	event, err := readEvent(eventFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfigFile(getConfigPath(), nil)
	if err != nil {
		return err
	}

	log := createLogger(cfg)

	p, err := buildPipeline(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	var runOpts interfaces.RunOptions
	if timeoutMs > 0 {
		runOpts.DefaultTimeout = time.Duration(timeoutMs) * time.Millisecond
	}

	result, err := p.RunWithOptions(context.Background(), *event, nil, runOpts)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	if err := writeResult(os.Stdout, result); err != nil {
		return err
	}

	if result.Blocked() {
		os.Exit(exitCodeBlocked)
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// readEvent decodes one hook event from the file or stdin
func readEvent(eventFile string) (*types.HookEvent, error) {
	var data []byte
	var err error

	if eventFile != "" {
		data, err = os.ReadFile(eventFile)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event: %w", err)
	}

	var event types.HookEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse event JSON: %w", err)
	}

	if !event.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type: %q", event.Type)
	}

	return &event, nil
}

func writeResult(w io.Writer, result *types.PipelineResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
