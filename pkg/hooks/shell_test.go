package hooks_test

import (
	"context"
	"runtime"
	"testing"

	"github.com/wisp/wisp/pkg/hooks"
	"github.com/wisp/wisp/pkg/types"
)

func shellDescriptor(t *testing.T, script string) *types.HandlerDescriptor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell hook tests require a POSIX shell")
	}

	d, err := hooks.NewShellHandler("shell-hook", hooks.ShellHookConfig{
		Command: "sh",
		Args:    []string{"-c", script},
	}, hooks.OnEvents(types.EventPreToolUse))
	if err != nil {
		t.Fatalf("NewShellHandler() error: %v", err)
	}
	return d
}

func TestShellHandler_RequiresCommand(t *testing.T) {
	_, err := hooks.NewShellHandler("empty", hooks.ShellHookConfig{}, hooks.OnEvents(types.EventStop))
	if err == nil {
		t.Error("expected error for empty command")
	}
}

func TestShellHandler_JSONOutput(t *testing.T) {
	d := shellDescriptor(t, `echo '{"decision":"approve","reason":"looks fine"}'`)

	exec := types.NewExecutionContext(types.HookEvent{Type: types.EventPreToolUse}, nil)
	out, err := d.Work(context.Background(), exec)
	if err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if out == nil || out.Decision != types.DecisionApprove {
		t.Fatalf("expected approve decision, got %+v", out)
	}
	if out.Reason != "looks fine" {
		t.Errorf("Reason = %q", out.Reason)
	}
}

func TestShellHandler_PlainOutputBecomesContext(t *testing.T) {
	d := shellDescriptor(t, `echo "remember to run the linter"`)

	exec := types.NewExecutionContext(types.HookEvent{Type: types.EventPreToolUse}, nil)
	out, err := d.Work(context.Background(), exec)
	if err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if out == nil || out.Context != "remember to run the linter" {
		t.Errorf("expected plain stdout as context, got %+v", out)
	}
}

func TestShellHandler_EmptyOutput(t *testing.T) {
	d := shellDescriptor(t, `true`)

	exec := types.NewExecutionContext(types.HookEvent{Type: types.EventPreToolUse}, nil)
	out, err := d.Work(context.Background(), exec)
	if err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil output for silent success, got %+v", out)
	}
}

func TestShellHandler_ExitTwoBlocks(t *testing.T) {
	d := shellDescriptor(t, `echo "dangerous command" >&2; exit 2`)

	exec := types.NewExecutionContext(types.HookEvent{Type: types.EventPreToolUse}, nil)
	out, err := d.Work(context.Background(), exec)
	if err == nil {
		t.Error("exit 2 must fail the handler")
	}
	if out == nil || out.Decision != types.DecisionBlock {
		t.Fatalf("expected block decision, got %+v", out)
	}
	if out.Reason != "dangerous command" {
		t.Errorf("Reason = %q, want stderr content", out.Reason)
	}
}

func TestShellHandler_NonzeroExitFails(t *testing.T) {
	d := shellDescriptor(t, `echo "broke" >&2; exit 1`)

	exec := types.NewExecutionContext(types.HookEvent{Type: types.EventPreToolUse}, nil)
	out, err := d.Work(context.Background(), exec)
	if err == nil {
		t.Error("nonzero exit must fail the handler")
	}
	if out != nil {
		t.Errorf("plain failure must not carry a decision, got %+v", out)
	}
}

func TestShellHandler_ReceivesEventOnStdin(t *testing.T) {
	// The script echoes the event's session id back as context
	d := shellDescriptor(t, `sed 's/.*"session_id":"\([^"]*\)".*/session \1/'`)

	exec := types.NewExecutionContext(types.HookEvent{
		Type:      types.EventPreToolUse,
		SessionID: "abc-123",
	}, nil)
	out, err := d.Work(context.Background(), exec)
	if err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if out == nil || out.Context != "session abc-123" {
		t.Errorf("expected event on stdin, got %+v", out)
	}
}
