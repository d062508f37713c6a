package types

import (
	"sync"

	"github.com/google/uuid"
)

// ExecutionContext is the per-run mutable state handed to every handler of
// one pipeline run. It is owned by exactly one run and never shared across
// runs.
//
// The shared scratch map is visible to all handlers of the run and is NOT
// serialized by the scheduler: concurrent handlers that read-modify-write
// the same key race. Handler authors must use disjoint keys or declare a
// dependency edge to order access.
type ExecutionContext struct {
	// RunID uniquely identifies this pipeline run
	RunID string
	// Event is the triggering event, payload included
	Event HookEvent

	mu       sync.Mutex
	shared   map[string]any
	outcomes []HandlerOutcome
}

// NewExecutionContext creates the state for one run, seeding the scratch
// map from the caller's initial shared state
func NewExecutionContext(event HookEvent, initial map[string]any) *ExecutionContext {
	shared := make(map[string]any, len(initial))
	for k, v := range initial {
		shared[k] = v
	}
	return &ExecutionContext{
		RunID:  uuid.New().String(),
		Event:  event,
		shared: shared,
	}
}

// Get reads a key from the shared scratch map
func (e *ExecutionContext) Get(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.shared[key]
	return v, ok
}

// GetString reads a string value, returning "" when absent or not a string
func (e *ExecutionContext) GetString(key string) string {
	v, ok := e.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set writes a key into the shared scratch map. Individual map operations
// are atomic; read-modify-write sequences across handlers are not.
func (e *ExecutionContext) Set(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shared[key] = value
}

// SharedSnapshot returns a shallow copy of the scratch map
func (e *ExecutionContext) SharedSnapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]any, len(e.shared))
	for k, v := range e.shared {
		out[k] = v
	}
	return out
}

// AppendOutcome appends one handler outcome to the run log. The log is
// append-only; outcomes are never mutated after this call.
func (e *ExecutionContext) AppendOutcome(outcome HandlerOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outcomes = append(e.outcomes, outcome)
}

// Outcomes returns the outcome log in completion order
func (e *ExecutionContext) Outcomes() []HandlerOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]HandlerOutcome, len(e.outcomes))
	copy(out, e.outcomes)
	return out
}
