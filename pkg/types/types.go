// Package types provides core types for the Wisp hook pipeline
package types

import (
	"context"
	"fmt"
	"time"
)

// EventType identifies an assistant lifecycle event
type EventType string

const (
	EventSessionStart     EventType = "SessionStart"
	EventUserPromptSubmit EventType = "UserPromptSubmit"
	EventPreToolUse       EventType = "PreToolUse"
	EventPostToolUse      EventType = "PostToolUse"
	EventStop             EventType = "Stop"
	EventSessionEnd       EventType = "SessionEnd"
)

// KnownEventTypes lists every event type Wisp understands, in the order
// the assistant fires them over a session.
func KnownEventTypes() []EventType {
	return []EventType{
		EventSessionStart,
		EventUserPromptSubmit,
		EventPreToolUse,
		EventPostToolUse,
		EventStop,
		EventSessionEnd,
	}
}

// IsValid reports whether the event type is one Wisp understands
func (e EventType) IsValid() bool {
	switch e {
	case EventSessionStart, EventUserPromptSubmit, EventPreToolUse,
		EventPostToolUse, EventStop, EventSessionEnd:
		return true
	}
	return false
}

// HookEvent is the per-invocation input: one JSON event supplied by the
// assistant process
type HookEvent struct {
	Type      EventType      `json:"hook_event_name"`
	SessionID string         `json:"session_id,omitempty"`
	CWD       string         `json:"cwd,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Decision is the token an event's output contract uses to gate the
// assistant's next action. Block outranks approve outranks unset.
type Decision string

const (
	DecisionUnset   Decision = ""
	DecisionApprove Decision = "approve"
	DecisionBlock   Decision = "block"
)

// rank orders decisions for aggregation. Higher wins.
func (d Decision) rank() int {
	switch d {
	case DecisionBlock:
		return 2
	case DecisionApprove:
		return 1
	default:
		return 0
	}
}

// Stronger reports whether d outranks other
func (d Decision) Stronger(other Decision) bool {
	return d.rank() > other.rank()
}

// ErrorStrategy controls how a handler failure affects the rest of the run
type ErrorStrategy string

const (
	// ErrorStrategyContinue records the failure and keeps scheduling
	ErrorStrategyContinue ErrorStrategy = "continue"
	// ErrorStrategyStop aborts the pipeline: running siblings are cancelled
	// and everything not yet started is skipped
	ErrorStrategyStop ErrorStrategy = "stop"
)

// IsValid reports whether the strategy is a known value
func (s ErrorStrategy) IsValid() bool {
	return s == ErrorStrategyContinue || s == ErrorStrategyStop
}

// HandlerOutput is what a handler's work produces on success (or partial
// failure). All fields are optional; the aggregator drops fields the
// event's output contract does not carry.
type HandlerOutput struct {
	// Decision gates the assistant's next action (PreToolUse, UserPromptSubmit)
	Decision Decision `json:"decision,omitempty"`
	// Reason explains the decision, surfaced to the operator
	Reason string `json:"reason,omitempty"`
	// Context is text injected into the assistant's context
	// (SessionStart, UserPromptSubmit)
	Context string `json:"context,omitempty"`
	// Env contains environment variable overrides (SessionStart)
	Env map[string]string `json:"env,omitempty"`
}

// WorkFunc is the opaque unit of work a descriptor schedules. The context
// carries the per-handler deadline; exec is the run's shared state.
type WorkFunc func(ctx context.Context, exec *ExecutionContext) (*HandlerOutput, error)

// HandlerDescriptor describes one registered unit of work. Built once at
// registration time and never mutated afterward.
type HandlerDescriptor struct {
	// ID is the unique, stable handler identifier
	ID string
	// Priority orders unconstrained peers; lower runs earlier
	Priority int
	// DependsOn names handlers that must complete (not necessarily
	// succeed) before this one starts
	DependsOn []string
	// Events is the set of event types this handler subscribes to
	Events []EventType
	// ErrorStrategy controls failure propagation
	ErrorStrategy ErrorStrategy
	// Timeout bounds one invocation; zero means the pipeline default
	Timeout time.Duration
	// Work is the handler body
	Work WorkFunc
}

// SubscribesTo reports whether the descriptor is active for the event type
func (d *HandlerDescriptor) SubscribesTo(event EventType) bool {
	for _, e := range d.Events {
		if e == event {
			return true
		}
	}
	return false
}

// HandlerStatus is the terminal status of one handler invocation
type HandlerStatus string

const (
	StatusSucceeded HandlerStatus = "succeeded"
	StatusFailed    HandlerStatus = "failed"
	StatusTimedOut  HandlerStatus = "timed-out"
	StatusSkipped   HandlerStatus = "skipped"
)

// IsFailure reports whether the status counts as a failure for
// error-strategy purposes. Timed-out is a failure; skipped is not.
func (s HandlerStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusTimedOut
}

// HandlerOutcome records the result of exactly one handler invocation.
// Appended to the run log once and never mutated.
type HandlerOutcome struct {
	ID         string         `json:"id"`
	Status     HandlerStatus  `json:"status"`
	DurationMs int64          `json:"durationMs"`
	Output     *HandlerOutput `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// OutputObject is the aggregated output section of a pipeline result,
// filtered to the event type's own contract
type OutputObject struct {
	Decision Decision          `json:"decision,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Context  string            `json:"context,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
}

// PipelineResult is the serializable per-run output returned to the caller
type PipelineResult struct {
	Success          bool         `json:"success"`
	ExecutedHandlers []string     `json:"executedHandlers"`
	FailedHandlers   []string     `json:"failedHandlers"`
	SkippedHandlers  []string     `json:"skippedHandlers"`
	DurationMs       int64        `json:"durationMs"`
	Output           OutputObject `json:"output"`
}

// Blocked reports whether the run produced a block decision
func (r *PipelineResult) Blocked() bool {
	return r.Output.Decision == DecisionBlock
}

// OutputContract describes which output fields an event type carries.
// Fields outside the contract are dropped during aggregation.
type OutputContract struct {
	Decision bool
	Context  bool
	Env      bool
}

// ContractFor returns the output contract for an event type
func ContractFor(event EventType) OutputContract {
	switch event {
	case EventPreToolUse:
		return OutputContract{Decision: true}
	case EventUserPromptSubmit:
		return OutputContract{Decision: true, Context: true}
	case EventSessionStart:
		return OutputContract{Context: true, Env: true}
	default:
		// PostToolUse, Stop, SessionEnd carry only bookkeeping
		return OutputContract{}
	}
}

// Validate checks descriptor fields that do not require the full
// registration set (cross-descriptor checks happen at plan build time)
func (d *HandlerDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("handler descriptor has empty id")
	}
	if d.Work == nil {
		return fmt.Errorf("handler '%s' has no work function", d.ID)
	}
	if len(d.Events) == 0 {
		return fmt.Errorf("handler '%s' subscribes to no events", d.ID)
	}
	for _, e := range d.Events {
		if !e.IsValid() {
			return fmt.Errorf("handler '%s' subscribes to unknown event '%s'", d.ID, e)
		}
	}
	if d.ErrorStrategy != "" && !d.ErrorStrategy.IsValid() {
		return fmt.Errorf("handler '%s' has invalid error strategy '%s'", d.ID, d.ErrorStrategy)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("handler '%s' has negative timeout", d.ID)
	}
	for _, dep := range d.DependsOn {
		if dep == d.ID {
			return fmt.Errorf("handler '%s' depends on itself", d.ID)
		}
	}
	return nil
}
