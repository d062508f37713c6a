package pipeline

import (
	"sort"

	"github.com/wisp/wisp/pkg/types"
)

// ExecutionPlan is the validated, layered schedule for one event type.
// Each layer lists handler ids whose dependencies are all satisfied by
// earlier layers; within a layer, ids are ordered for deterministic
// sequential execution by priority ascending, then registration order.
type ExecutionPlan struct {
	Event  types.EventType
	Layers [][]string
}

// HandlerIDs returns every id in the plan, layer by layer
func (p *ExecutionPlan) HandlerIDs() []string {
	var ids []string
	for _, layer := range p.Layers {
		ids = append(ids, layer...)
	}
	return ids
}

// BuildPlan constructs the execution plan for the descriptor subset
// subscribed to one event type. Descriptors must be passed in registration
// order; the same subset always yields the same plan.
//
// A dependsOn id that resolves to no descriptor in the subset, or a cycle
// among subset members, yields a ConfigurationError before any run.
func BuildPlan(event types.EventType, descriptors []*types.HandlerDescriptor) (*ExecutionPlan, error) {
	// Registration order index doubles as the final tie-break
	regIndex := make(map[string]int, len(descriptors))
	byID := make(map[string]*types.HandlerDescriptor, len(descriptors))
	for i, d := range descriptors {
		regIndex[d.ID] = i
		byID[d.ID] = d
	}

	// Resolve edges and in-degrees. Edge dep -> id means dep finishes first.
	var unknown []string
	inDegree := make(map[string]int, len(descriptors))
	dependents := make(map[string][]string, len(descriptors))
	for _, d := range descriptors {
		inDegree[d.ID] += 0
		for _, dep := range d.DependsOn {
			if _, ok := byID[dep]; !ok {
				unknown = append(unknown, dep)
				continue
			}
			inDegree[d.ID]++
			dependents[dep] = append(dependents[dep], d.ID)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &ConfigurationError{
			Event:      event,
			HandlerIDs: dedupe(unknown),
			Reason:     ErrUnknownDependency,
			Detail:     "dependsOn ids must name handlers registered for the same event type",
		}
	}

	// Kahn's algorithm: peel zero-in-degree nodes into ordered layers
	var layers [][]string
	consumed := 0
	current := zeroDegreeIDs(inDegree, nil)
	for len(current) > 0 {
		orderLayer(current, byID, regIndex)
		layers = append(layers, current)
		consumed += len(current)

		next := make(map[string]bool)
		for _, id := range current {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next[dep] = true
				}
			}
			delete(inDegree, id)
		}
		current = zeroDegreeIDs(inDegree, next)
	}

	// Anything left unconsumed sits on at least one cycle
	if consumed != len(descriptors) {
		var cyclic []string
		for id := range inDegree {
			cyclic = append(cyclic, id)
		}
		sort.Strings(cyclic)
		return nil, &ConfigurationError{
			Event:      event,
			HandlerIDs: cyclic,
			Reason:     ErrDependencyCycle,
		}
	}

	return &ExecutionPlan{Event: event, Layers: layers}, nil
}

// zeroDegreeIDs collects ids whose in-degree dropped to zero. On the first
// pass (filter nil) it scans everything; afterwards only the freed set.
func zeroDegreeIDs(inDegree map[string]int, filter map[string]bool) []string {
	var ids []string
	for id, deg := range inDegree {
		if deg != 0 {
			continue
		}
		if filter != nil && !filter[id] {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// orderLayer sorts a layer in place: priority ascending, then registration
// order ascending
func orderLayer(layer []string, byID map[string]*types.HandlerDescriptor, regIndex map[string]int) {
	sort.SliceStable(layer, func(i, j int) bool {
		a, b := byID[layer[i]], byID[layer[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return regIndex[a.ID] < regIndex[b.ID]
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
