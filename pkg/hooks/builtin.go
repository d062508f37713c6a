package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/types"
)

// SharedKeySessionName is the scratch-map key under which the session-name
// handler publishes the derived name for later handlers
const SharedKeySessionName = "session.name"

// Word lists for derived session names. Short on purpose: the name only
// needs to be memorable within one working day.
var (
	sessionAdjectives = []string{
		"amber", "brisk", "calm", "deft", "eager", "fond",
		"glad", "keen", "lucid", "mellow", "nimble", "quiet",
		"rapid", "sly", "tidy", "vivid",
	}
	sessionNouns = []string{
		"anvil", "beacon", "cairn", "delta", "ember", "fjord",
		"grove", "harbor", "inlet", "juniper", "kestrel", "lantern",
		"meadow", "nebula", "osprey", "prairie",
	}
)

// deriveSessionName picks a stable adjective-noun pair from the session id,
// falling back to a random pick when no session id is present
func deriveSessionName(sessionID string) string {
	var seed uuid.UUID
	if parsed, err := uuid.Parse(sessionID); err == nil {
		seed = parsed
	} else {
		seed = uuid.New()
	}
	adj := sessionAdjectives[int(seed[0])%len(sessionAdjectives)]
	noun := sessionNouns[int(seed[1])%len(sessionNouns)]
	return fmt.Sprintf("%s-%s", adj, noun)
}

// NewSessionNameHandler builds the built-in session naming handler. On
// SessionStart it derives a memorable name, injects it as assistant
// context, exposes it as an environment override, and publishes it on the
// run's scratch map.
func NewSessionNameHandler(opts ...Option) (*types.HandlerDescriptor, error) {
	work := func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
		name := deriveSessionName(exec.Event.SessionID)
		exec.Set(SharedKeySessionName, name)
		return &types.HandlerOutput{
			Context: fmt.Sprintf("This session is named %q.", name),
			Env:     map[string]string{"WISP_SESSION_NAME": name},
		}, nil
	}

	base := []Option{OnEvents(types.EventSessionStart), WithPriority(10)}
	return NewHandler("session-name", work, append(base, opts...)...)
}

// NewCommandGuardHandler builds the built-in command guard. On PreToolUse
// it matches the payload command against the guard rules; a match fails the
// handler with a block decision. Stop strategy is the default so a blocked
// command also aborts the rest of the pipeline.
func NewCommandGuardHandler(rules []GuardRule, opts ...Option) (*types.HandlerDescriptor, error) {
	matcher, err := NewRuleMatcher(rules)
	if err != nil {
		return nil, err
	}

	work := func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
		command, _ := exec.Event.Payload["command"].(string)
		if command == "" {
			return nil, nil
		}

		rule := matcher.Match(command)
		if rule == nil {
			return &types.HandlerOutput{Decision: types.DecisionApprove}, nil
		}

		reason := rule.Reason
		if reason == "" {
			reason = fmt.Sprintf("command matches guarded pattern %q", rule.Pattern)
		}
		return &types.HandlerOutput{
			Decision: types.DecisionBlock,
			Reason:   reason,
		}, fmt.Errorf("blocked command %q: %s", command, reason)
	}

	base := []Option{OnEvents(types.EventPreToolUse), WithPriority(10), StopOnError()}
	return NewHandler("command-guard", work, append(base, opts...)...)
}

// eventLogRecord is one JSONL line written by the logging handler
type eventLogRecord struct {
	Timestamp string         `json:"ts"`
	RunID     string         `json:"run_id"`
	Event     types.EventType `json:"event"`
	SessionID string         `json:"session_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewLoggingHandler builds the built-in event logger: it appends one JSONL
// record per event to the given file. Failures are recorded but never halt
// the pipeline.
func NewLoggingHandler(path string, log logger.Logger, opts ...Option) (*types.HandlerDescriptor, error) {
	work := func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
		record := eventLogRecord{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RunID:     exec.RunID,
			Event:     exec.Event.Type,
			SessionID: exec.Event.SessionID,
			Payload:   exec.Event.Payload,
		}

		line, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("marshal event record: %w", err)
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		defer file.Close()

		if _, err := file.Write(append(line, '\n')); err != nil {
			return nil, fmt.Errorf("write event record: %w", err)
		}

		if log != nil {
			log.Debug("Logged event", logger.WithField("event", exec.Event.Type))
		}
		return nil, nil
	}

	base := []Option{OnEvents(types.KnownEventTypes()...), WithPriority(90)}
	return NewHandler("event-log", work, append(base, opts...)...)
}
