// Package pipeline provides the hook orchestration core: dependency-aware
// scheduling of registered handlers in response to assistant lifecycle
// events, with per-handler timeouts and deterministic result aggregation.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wisp/wisp/pkg/interfaces"
	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/types"
)

// Options configures a Pipeline at construction time
type Options struct {
	// Concurrent enables fan-out of unrelated handlers within a ready layer
	Concurrent bool
	// DefaultTimeout bounds handlers that declare no timeout of their own;
	// zero means DefaultHandlerTimeout
	DefaultTimeout time.Duration
	// Notifier receives blocked, aborted, and handler-failure
	// notifications; nil disables them
	Notifier interfaces.PipelineNotifier
}

// Pipeline is the public entry point. It owns its own registry: multiple
// independent pipelines are instantiable in one process, with no ambient
// global state. Every event type's plan is built and validated eagerly at
// registration so configuration errors surface at startup, never mid-run.
type Pipeline struct {
	logger   logger.Logger
	opts     Options
	notifier interfaces.PipelineNotifier

	mu         sync.RWMutex
	registered []*types.HandlerDescriptor
	byEvent    map[types.EventType][]*types.HandlerDescriptor
	plans      map[types.EventType]*ExecutionPlan
}

// New creates an empty pipeline
func New(log logger.Logger, opts Options) *Pipeline {
	return &Pipeline{
		logger:   log,
		opts:     opts,
		notifier: opts.Notifier,
		byEvent:  make(map[types.EventType][]*types.HandlerDescriptor),
		plans:    make(map[types.EventType]*ExecutionPlan),
	}
}

// Register adds descriptors and eagerly rebuilds the plan for every event
// type they subscribe to. A ConfigurationError (duplicate id, unknown
// dependency, cycle) is returned synchronously and leaves the previous
// registration state untouched.
func (p *Pipeline) Register(descriptors ...*types.HandlerDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(p.registered)+len(descriptors))
	for _, d := range p.registered {
		seen[d.ID] = true
	}

	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return &ConfigurationError{
				HandlerIDs: []string{d.ID},
				Reason:     ErrInvalidDescriptor,
				Detail:     err.Error(),
			}
		}
		if seen[d.ID] {
			return &ConfigurationError{
				HandlerIDs: []string{d.ID},
				Reason:     ErrDuplicateHandler,
			}
		}
		seen[d.ID] = true
	}

	// Build candidate groupings, then validate every affected plan before
	// committing anything
	candidate := make(map[types.EventType][]*types.HandlerDescriptor, len(p.byEvent))
	for ev, subset := range p.byEvent {
		candidate[ev] = subset
	}
	for _, d := range descriptors {
		for _, ev := range d.Events {
			candidate[ev] = append(candidate[ev], d)
		}
	}

	plans := make(map[types.EventType]*ExecutionPlan, len(candidate))
	for ev, subset := range candidate {
		plan, err := BuildPlan(ev, subset)
		if err != nil {
			return err
		}
		plans[ev] = plan
	}

	p.registered = append(p.registered, descriptors...)
	p.byEvent = candidate
	p.plans = plans

	p.logger.Debug("Registered handlers",
		logger.WithField("count", len(descriptors)),
		logger.WithField("events", len(p.plans)))
	return nil
}

// Run executes the pipeline for one event. Handler failures and timeouts
// never escape as errors: every run, including a fully aborted one, yields
// a well-formed PipelineResult. The only error cases are an invalid event
// type and a caller context already cancelled.
func (p *Pipeline) Run(ctx context.Context, event types.HookEvent, initialState map[string]any) (*types.PipelineResult, error) {
	return p.RunWithOptions(ctx, event, initialState, interfaces.RunOptions{})
}

// RunWithOptions is Run with per-run caller overrides
func (p *Pipeline) RunWithOptions(
	ctx context.Context,
	event types.HookEvent,
	initialState map[string]any,
	runOpts interfaces.RunOptions,
) (*types.PipelineResult, error) {
	if !event.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type '%s'", event.Type)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	plan := p.plans[event.Type]
	subset := p.byEvent[event.Type]
	p.mu.RUnlock()

	start := time.Now()

	// No subscribers: a well-formed empty success
	if plan == nil || len(subset) == 0 {
		return Aggregate(event.Type, nil, nil, time.Since(start)), nil
	}

	descriptors := make(map[string]*types.HandlerDescriptor, len(subset))
	for _, d := range subset {
		descriptors[d.ID] = d
	}

	exec := types.NewExecutionContext(event, initialState)
	p.logger.Debug("Starting pipeline run",
		logger.WithField("run_id", exec.RunID),
		logger.WithField("event", event.Type),
		logger.WithField("handlers", len(descriptors)))

	defaultTimeout := p.opts.DefaultTimeout
	if runOpts.DefaultTimeout > 0 {
		defaultTimeout = runOpts.DefaultTimeout
	}

	scheduler := NewScheduler(p.logger, p.opts.Concurrent, defaultTimeout)
	aborted := scheduler.Run(ctx, plan, descriptors, exec)

	result := Aggregate(event.Type, exec.Outcomes(), descriptors, time.Since(start))

	p.notify(event.Type, result, aborted)
	p.logger.Debug("Pipeline run finished",
		logger.WithField("run_id", exec.RunID),
		logger.WithField("success", result.Success),
		logger.WithField("duration_ms", result.DurationMs))

	return result, nil
}

// ExplainPlan returns the resolved layered schedule for an event type
// without executing anything, so surrounding tooling can explain
// scheduling decisions to an operator.
func (p *Pipeline) ExplainPlan(event types.EventType) ([][]string, error) {
	if !event.IsValid() {
		return nil, fmt.Errorf("unknown event type '%s'", event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	plan, ok := p.plans[event]
	if !ok {
		return [][]string{}, nil
	}

	// Deep copy keeps the stored plan immutable
	layers := make([][]string, len(plan.Layers))
	for i, layer := range plan.Layers {
		layers[i] = append([]string(nil), layer...)
	}
	return layers, nil
}

// EventTypes returns the event types that have at least one subscriber
func (p *Pipeline) EventTypes() []types.EventType {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var events []types.EventType
	for _, ev := range types.KnownEventTypes() {
		if len(p.byEvent[ev]) > 0 {
			events = append(events, ev)
		}
	}
	return events
}

// HandlerCount returns the number of registered descriptors
func (p *Pipeline) HandlerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.registered)
}

func (p *Pipeline) notify(event types.EventType, result *types.PipelineResult, aborted bool) {
	if p.notifier == nil {
		return
	}
	if result.Blocked() {
		p.notifier.NotifyBlocked(event, result.Output.Reason)
	}
	if aborted && len(result.FailedHandlers) > 0 {
		p.notifier.NotifyAborted(event, result.FailedHandlers[0])
	} else if len(result.FailedHandlers) > 0 {
		p.notifier.NotifyRunFailure(event, result.FailedHandlers)
	}
}
