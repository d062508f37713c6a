// Package hooks provides the handler builder API and the built-in handlers
// that ship with Wisp: session naming, command guarding, event logging, and
// external shell hooks.
package hooks

import (
	"time"

	"github.com/wisp/wisp/pkg/types"
)

// Option customizes a descriptor under construction
type Option func(*types.HandlerDescriptor)

// WithPriority sets the priority; lower runs earlier among unconstrained peers
func WithPriority(priority int) Option {
	return func(d *types.HandlerDescriptor) {
		d.Priority = priority
	}
}

// WithTimeout bounds one invocation of the handler
func WithTimeout(timeout time.Duration) Option {
	return func(d *types.HandlerDescriptor) {
		d.Timeout = timeout
	}
}

// After declares ordering dependencies: the named handlers must complete
// (not necessarily succeed) before this one starts
func After(ids ...string) Option {
	return func(d *types.HandlerDescriptor) {
		d.DependsOn = append(d.DependsOn, ids...)
	}
}

// OnEvents sets the event types the handler subscribes to
func OnEvents(events ...types.EventType) Option {
	return func(d *types.HandlerDescriptor) {
		d.Events = append([]types.EventType(nil), events...)
	}
}

// StopOnError makes a failure of this handler abort the whole pipeline
func StopOnError() Option {
	return func(d *types.HandlerDescriptor) {
		d.ErrorStrategy = types.ErrorStrategyStop
	}
}

// ContinueOnError records a failure of this handler without halting
// scheduling (the default)
func ContinueOnError() Option {
	return func(d *types.HandlerDescriptor) {
		d.ErrorStrategy = types.ErrorStrategyContinue
	}
}

// NewHandler builds one immutable HandlerDescriptor. The returned value is
// never mutated by the pipeline; callers should not mutate it either.
func NewHandler(id string, work types.WorkFunc, opts ...Option) (*types.HandlerDescriptor, error) {
	d := &types.HandlerDescriptor{
		ID:            id,
		Work:          work,
		ErrorStrategy: types.ErrorStrategyContinue,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustHandler is NewHandler for statically-known descriptors; it panics on
// a validation error
func MustHandler(id string, work types.WorkFunc, opts ...Option) *types.HandlerDescriptor {
	d, err := NewHandler(id, work, opts...)
	if err != nil {
		panic(err)
	}
	return d
}
