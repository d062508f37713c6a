package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/types"
)

// DefaultHandlerTimeout bounds a handler invocation when neither the
// descriptor nor the caller supplies one.
const DefaultHandlerTimeout = 30 * time.Second

// handlerState is the per-descriptor state machine:
// Pending -> Ready -> Running -> Completed | Skipped.
// Readiness is gated by dependency *completion*, not success; walking the
// precomputed layers enforces that implicitly.
type handlerState int

const (
	statePending handlerState = iota
	stateRunning
	stateCompleted
	stateSkipped
)

// pipelineAbortError signals that a stop-strategy handler failed and the
// run must not schedule anything further. Returned by concurrent layer
// tasks so the SafeGroup cancels running siblings.
type pipelineAbortError struct {
	handlerID string
	status    types.HandlerStatus
}

func (e *pipelineAbortError) Error() string {
	return fmt.Sprintf("pipeline aborted: handler '%s' %s with stop strategy", e.handlerID, e.status)
}

// Scheduler drives one ExecutionPlan to completion. It owns no cross-run
// state; a fresh run walks the shared immutable plan with its own
// bookkeeping.
type Scheduler struct {
	logger         logger.Logger
	concurrent     bool
	defaultTimeout time.Duration
}

// NewScheduler creates a scheduler with the given concurrency policy.
// A zero defaultTimeout falls back to DefaultHandlerTimeout.
func NewScheduler(log logger.Logger, concurrent bool, defaultTimeout time.Duration) *Scheduler {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultHandlerTimeout
	}
	return &Scheduler{
		logger:         log,
		concurrent:     concurrent,
		defaultTimeout: defaultTimeout,
	}
}

// Run executes the plan against the run's ExecutionContext. Handler
// failures and timeouts never escape as errors; they are folded into the
// outcome log. The returned flag reports whether the run ended in
// PipelineAbort.
func (s *Scheduler) Run(
	ctx context.Context,
	plan *ExecutionPlan,
	descriptors map[string]*types.HandlerDescriptor,
	exec *types.ExecutionContext,
) (aborted bool) {
	states := make(map[string]handlerState, len(descriptors))
	for id := range descriptors {
		states[id] = statePending
	}

	for i, layer := range plan.Layers {
		if aborted {
			s.skipLayer(layer, "skipped: pipeline aborted", states, exec)
			continue
		}
		if ctx.Err() != nil {
			s.skipLayer(layer, "skipped: run cancelled", states, exec)
			continue
		}

		s.logger.Debug("Scheduling layer",
			logger.WithField("layer", i),
			logger.WithField("handlers", layer))

		if s.concurrent && len(layer) > 1 {
			aborted = s.runLayerConcurrent(ctx, layer, descriptors, states, exec)
		} else {
			aborted = s.runLayerSequential(ctx, layer, descriptors, states, exec)
		}
	}

	return aborted
}

// runLayerSequential runs a layer strictly in its precomputed order, one
// handler at a time. On a stop-strategy failure the rest of the layer is
// skipped and the abort flag is returned. Caller cancellation is honored
// between handlers: the remainder of the layer is skipped, not invoked.
func (s *Scheduler) runLayerSequential(
	ctx context.Context,
	layer []string,
	descriptors map[string]*types.HandlerDescriptor,
	states map[string]handlerState,
	exec *types.ExecutionContext,
) bool {
	for i, id := range layer {
		if ctx.Err() != nil {
			s.skipLayer(layer[i:], "skipped: run cancelled", states, exec)
			return false
		}
		d := descriptors[id]
		states[id] = stateRunning
		outcome := s.invoke(ctx, d, exec)
		states[id] = stateCompleted
		exec.AppendOutcome(outcome)

		if outcome.Status.IsFailure() && d.ErrorStrategy == types.ErrorStrategyStop {
			s.logger.Warn("Stop-strategy handler failed, aborting pipeline",
				logger.WithField("handler", id),
				logger.WithField("status", outcome.Status))
			s.skipLayer(layer[i+1:], "skipped: pipeline aborted", states, exec)
			return true
		}
	}
	return false
}

// runLayerConcurrent launches every handler in the layer as an independent
// task and joins the whole layer before advancing. A stop-strategy failure
// cancels running siblings best-effort via the group context; tasks that
// never start (group context already cancelled) are recorded as skipped.
func (s *Scheduler) runLayerConcurrent(
	ctx context.Context,
	layer []string,
	descriptors map[string]*types.HandlerDescriptor,
	states map[string]handlerState,
	exec *types.ExecutionContext,
) bool {
	g, layerCtx := NewSafeGroup(ctx, s.logger)

	// Terminal states are recorded under a lock and folded back into the
	// caller's bookkeeping after the layer joins
	var mu sync.Mutex
	terminal := make(map[string]handlerState, len(layer))

	for _, id := range layer {
		d := descriptors[id]
		states[id] = stateRunning
		g.Go(func() error {
			if layerCtx.Err() != nil {
				// Cancelled before starting: never invoked
				mu.Lock()
				terminal[d.ID] = stateSkipped
				mu.Unlock()
				exec.AppendOutcome(types.HandlerOutcome{
					ID:     d.ID,
					Status: types.StatusSkipped,
					Error:  "skipped: pipeline aborted",
				})
				return nil
			}

			outcome := s.invoke(layerCtx, d, exec)
			mu.Lock()
			terminal[d.ID] = stateCompleted
			mu.Unlock()
			exec.AppendOutcome(outcome)

			if outcome.Status.IsFailure() && d.ErrorStrategy == types.ErrorStrategyStop {
				return &pipelineAbortError{handlerID: d.ID, status: outcome.Status}
			}
			return nil
		})
	}

	err := g.Wait()
	for id, st := range terminal {
		states[id] = st
	}
	if err == nil {
		return false
	}

	var abort *pipelineAbortError
	if errors.As(err, &abort) {
		s.logger.Warn("Stop-strategy handler failed, aborting pipeline",
			logger.WithField("handler", abort.handlerID),
			logger.WithField("status", abort.status))
	} else {
		// A task panicked outside the invocation wrapper
		s.logger.Error("Layer task failed unexpectedly", logger.WithField("error", err))
	}
	return true
}

// skipLayer marks every not-yet-completed handler in ids as skipped
// without invoking it
func (s *Scheduler) skipLayer(ids []string, reason string, states map[string]handlerState, exec *types.ExecutionContext) {
	for _, id := range ids {
		if states[id] == stateCompleted || states[id] == stateSkipped {
			continue
		}
		states[id] = stateSkipped
		exec.AppendOutcome(types.HandlerOutcome{
			ID:     id,
			Status: types.StatusSkipped,
			Error:  reason,
		})
	}
}

// invoke runs one handler with its own wall-clock deadline and full error
// isolation. The work runs in its own goroutine so a handler that ignores
// context cancellation still cannot stall the layer past its deadline.
func (s *Scheduler) invoke(ctx context.Context, d *types.HandlerDescriptor, exec *types.ExecutionContext) types.HandlerOutcome {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type workResult struct {
		output *types.HandlerOutput
		err    error
	}
	done := make(chan workResult, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Handler panic recovered",
					logger.WithField("handler", d.ID),
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				done <- workResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		output, err := d.Work(hctx, exec)
		done <- workResult{output: output, err: err}
	}()

	var outcome types.HandlerOutcome
	select {
	case res := <-done:
		outcome = types.HandlerOutcome{
			ID:         d.ID,
			DurationMs: time.Since(start).Milliseconds(),
			Output:     res.output,
		}
		switch {
		case res.err == nil:
			outcome.Status = types.StatusSucceeded
		case errors.Is(res.err, context.DeadlineExceeded) && hctx.Err() != nil:
			// The work noticed its own deadline and returned
			outcome.Status = types.StatusTimedOut
			outcome.Error = res.err.Error()
		default:
			outcome.Status = types.StatusFailed
			outcome.Error = res.err.Error()
		}

	case <-hctx.Done():
		outcome = types.HandlerOutcome{
			ID:         d.ID,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			outcome.Status = types.StatusTimedOut
			outcome.Error = fmt.Sprintf("handler exceeded %s timeout", timeout)
		} else {
			// Cancelled from outside: a sibling triggered PipelineAbort
			// or the caller gave up on the run
			outcome.Status = types.StatusFailed
			outcome.Error = "cancelled: " + hctx.Err().Error()
		}
	}

	s.logger.Debug("Handler completed",
		logger.WithField("handler", d.ID),
		logger.WithField("status", outcome.Status),
		logger.WithField("duration_ms", outcome.DurationMs))

	return outcome
}
