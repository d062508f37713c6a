package types

import "encoding/json"

// HookKind selects which built-in (or external) handler body a configured
// hook uses
type HookKind string

const (
	// HookKindSessionName derives a memorable session name
	HookKindSessionName HookKind = "session-name"
	// HookKindCommandGuard blocks commands matching guard rules
	HookKindCommandGuard HookKind = "command-guard"
	// HookKindLog appends a JSONL record of each event to a file
	HookKindLog HookKind = "log"
	// HookKindShell runs an external command with the event JSON on stdin
	HookKindShell HookKind = "shell"
)

// HookConfig is one declarative hook record from the configuration file.
// The config resolver turns these into normalized HandlerDescriptors; the
// pipeline core never reads this shape.
type HookConfig struct {
	ID        string      `json:"id"`
	Kind      HookKind    `json:"kind"`
	Events    []EventType `json:"events"`
	Priority  int         `json:"priority,omitempty"`
	DependsOn []string    `json:"dependsOn,omitempty"`
	// OnError is "continue" (default) or "stop"
	OnError ErrorStrategy `json:"onError,omitempty"`
	// TimeoutMs bounds one invocation; zero uses the pipeline default
	TimeoutMs int `json:"timeoutMs,omitempty"`
	// Settings carries kind-specific options, decoded by the resolver
	Settings json.RawMessage `json:"settings,omitempty"`
	// Enabled defaults to true when nil
	Enabled *bool `json:"enabled,omitempty"`
}

// IsEnabled reports whether the hook should be registered
func (h *HookConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// SchedulingConfig controls the scheduler's concurrency policy
type SchedulingConfig struct {
	// Concurrent fans a ready layer out into independent tasks
	Concurrent bool `json:"concurrent,omitempty"`
	// DefaultTimeoutMs is the per-handler default deadline
	DefaultTimeoutMs int `json:"defaultTimeoutMs,omitempty"`
}

// NotificationConfig controls desktop notifications
type NotificationConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// HooksConfig is the root of the wisp configuration file
type HooksConfig struct {
	Version       string              `json:"version"`
	Hooks         []HookConfig        `json:"hooks"`
	Scheduling    *SchedulingConfig   `json:"scheduling,omitempty"`
	Notifications *NotificationConfig `json:"notifications,omitempty"`
	// LogFile mirrors the --log-file flag when set in config
	LogFile string `json:"logFile,omitempty"`
}
