// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/wisp/wisp/pkg/types"
)

// PipelineNotifier surfaces noteworthy run outcomes to the operator's
// desktop. Implementations must be safe to call from concurrent handler
// tasks; a nil notifier disables notifications.
type PipelineNotifier interface {
	NotifyBlocked(event types.EventType, reason string)
	NotifyAborted(event types.EventType, handlerID string)
	NotifyRunFailure(event types.EventType, failed []string)
}

// ConfigManager handles hooks configuration loading and validation
type ConfigManager interface {
	LoadConfig(path string) (*types.HooksConfig, error)
	ValidateConfig(config *types.HooksConfig) error
	ResolveDescriptors(config *types.HooksConfig) ([]*types.HandlerDescriptor, error)
}

// ProcessManager handles process lifecycle
type ProcessManager interface {
	RegisterShutdownHandler(handler func())
	Start(ctx context.Context)
	Stop()
	IsRunning() bool
}

// RunOptions carries per-run caller overrides
type RunOptions struct {
	// DefaultTimeout overrides the pipeline's default per-handler timeout
	// for this run only; zero keeps the pipeline default
	DefaultTimeout time.Duration
}
