package pipeline

import (
	"strings"
	"time"

	"github.com/wisp/wisp/pkg/types"
)

// Aggregate folds the run's outcome log into one PipelineResult using the
// deterministic merge rules of the event's output contract. The log is in
// completion order, which under concurrent scheduling is not registration
// order; callers must not assume otherwise.
func Aggregate(
	event types.EventType,
	outcomes []types.HandlerOutcome,
	descriptors map[string]*types.HandlerDescriptor,
	elapsed time.Duration,
) *types.PipelineResult {
	result := &types.PipelineResult{
		Success:          true,
		ExecutedHandlers: []string{},
		FailedHandlers:   []string{},
		SkippedHandlers:  []string{},
		DurationMs:       elapsed.Milliseconds(),
	}

	var contexts []string
	env := map[string]string{}

	for _, o := range outcomes {
		switch o.Status {
		case types.StatusSucceeded:
			result.ExecutedHandlers = append(result.ExecutedHandlers, o.ID)
		case types.StatusFailed, types.StatusTimedOut:
			result.FailedHandlers = append(result.FailedHandlers, o.ID)
			// Only a stop-strategy failure flips the run; continue
			// failures are recorded without affecting success
			if d, ok := descriptors[o.ID]; ok && d.ErrorStrategy == types.ErrorStrategyStop {
				result.Success = false
			}
		case types.StatusSkipped:
			result.SkippedHandlers = append(result.SkippedHandlers, o.ID)
		}

		if o.Output == nil {
			continue
		}
		// Strongest decision wins; its reason travels with it
		if o.Output.Decision.Stronger(result.Output.Decision) {
			result.Output.Decision = o.Output.Decision
			result.Output.Reason = o.Output.Reason
		}
		if o.Output.Context != "" {
			contexts = append(contexts, o.Output.Context)
		}
		// Later completions overwrite earlier ones for the same name
		for k, v := range o.Output.Env {
			env[k] = v
		}
	}

	result.Output.Context = strings.Join(contexts, "\n\n")
	if len(env) > 0 {
		result.Output.Env = env
	}

	// Drop fields the event type's own output contract does not carry
	contract := types.ContractFor(event)
	if !contract.Decision {
		result.Output.Decision = types.DecisionUnset
		result.Output.Reason = ""
	}
	if !contract.Context {
		result.Output.Context = ""
	}
	if !contract.Env {
		result.Output.Env = nil
	}

	return result
}
