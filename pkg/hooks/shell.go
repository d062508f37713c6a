package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/wisp/wisp/pkg/types"
)

// ShellHookConfig describes an external command handler
type ShellHookConfig struct {
	// Command is the program to run; Args are passed verbatim
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	// WorkDir overrides the working directory; defaults to the event cwd
	WorkDir string `json:"workDir,omitempty"`
	// Env holds extra KEY=VALUE pairs appended to the inherited environment
	Env []string `json:"env,omitempty"`
}

// blockExitCode is the conventional exit code an external hook uses to
// block the triggering action. Stderr carries the human-readable reason.
const blockExitCode = 2

// NewShellHandler builds a handler that delegates to an external command.
// The event is written to the command's stdin as JSON; stdout, when it
// parses as a handler output object, becomes the handler's output. Exit
// code 2 is treated as a block decision rather than a plain failure.
func NewShellHandler(id string, cfg ShellHookConfig, opts ...Option) (*types.HandlerDescriptor, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("shell hook %q: command must not be empty", id)
	}

	work := func(ctx context.Context, ec *types.ExecutionContext) (*types.HandlerOutput, error) {
		return runShellHook(ctx, cfg, ec.Event)
	}

	return NewHandler(id, work, opts...)
}

func runShellHook(ctx context.Context, cfg ShellHookConfig, event types.HookEvent) (*types.HandlerOutput, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	} else if event.CWD != "" {
		cmd.Dir = event.CWD
	}
	cmd.Env = append(os.Environ(), cfg.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() == blockExitCode {
			reason := strings.TrimSpace(stderr.String())
			if reason == "" {
				reason = fmt.Sprintf("%s exited with code %d", cfg.Command, blockExitCode)
			}
			return &types.HandlerOutput{
				Decision: types.DecisionBlock,
				Reason:   reason,
			}, fmt.Errorf("hook command blocked: %s", reason)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("hook command failed: %w: %s", runErr, detail)
		}
		return nil, fmt.Errorf("hook command failed: %w", runErr)
	}

	return parseShellOutput(stdout.Bytes())
}

// parseShellOutput interprets the hook's stdout. A JSON object becomes the
// handler output; anything else is treated as plain assistant context.
func parseShellOutput(raw []byte) (*types.HandlerOutput, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var out types.HandlerOutput
		if err := json.Unmarshal(trimmed, &out); err == nil {
			return &out, nil
		}
	}

	return &types.HandlerOutput{Context: string(trimmed)}, nil
}
