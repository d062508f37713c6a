package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wisp/wisp/pkg/types"
)

// Sentinel errors for pipeline configuration, matchable with errors.Is
var (
	// ErrUnknownDependency indicates a dependsOn id that resolves to no
	// handler registered for the same event type
	ErrUnknownDependency = errors.New("unknown handler dependency")

	// ErrDependencyCycle indicates the dependency graph is not acyclic
	ErrDependencyCycle = errors.New("handler dependency cycle")

	// ErrDuplicateHandler indicates two descriptors share an id
	ErrDuplicateHandler = errors.New("duplicate handler id")

	// ErrInvalidDescriptor indicates a descriptor failed field validation
	ErrInvalidDescriptor = errors.New("invalid handler descriptor")
)

// ConfigurationError is raised once, at registration time, and never at run
// time. It carries the offending handler ids so external tooling can print
// a precise diagnostic before any event is processed.
type ConfigurationError struct {
	// Event is the event type whose subscriber subset failed validation
	Event types.EventType
	// HandlerIDs are the offending ids. For a cycle this is the full
	// cycle membership; for an unknown dependency, the unresolved ids.
	HandlerIDs []string
	// Reason is the sentinel classifying the failure
	Reason error
	// Detail is an optional human-readable elaboration
	Detail string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Event != "" {
		msg += fmt.Sprintf(" for event %s", e.Event)
	}
	msg += fmt.Sprintf(": %v", e.Reason)
	if len(e.HandlerIDs) > 0 {
		msg += fmt.Sprintf(" [%s]", strings.Join(e.HandlerIDs, ", "))
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the sentinel for errors.Is checks
func (e *ConfigurationError) Unwrap() error {
	return e.Reason
}
