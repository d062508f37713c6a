package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/wisp/wisp/pkg/types"
)

// mockNotifier records notification calls for assertions
type mockNotifier struct {
	mu      sync.Mutex
	blocked []string
	aborted []string
	failed  [][]string
}

func (m *mockNotifier) NotifyBlocked(event types.EventType, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = append(m.blocked, reason)
}

func (m *mockNotifier) NotifyAborted(event types.EventType, handlerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = append(m.aborted, handlerID)
}

func (m *mockNotifier) NotifyRunFailure(event types.EventType, failed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, failed)
}

func pipeDescriptor(id string, events []types.EventType, work types.WorkFunc, mutate ...func(*types.HandlerDescriptor)) *types.HandlerDescriptor {
	d := &types.HandlerDescriptor{
		ID:            id,
		Events:        events,
		ErrorStrategy: types.ErrorStrategyContinue,
		Work:          work,
	}
	for _, m := range mutate {
		m(d)
	}
	return d
}

func okWork(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
	return nil, nil
}

func TestPipeline_RegisterRejectsDuplicates(t *testing.T) {
	p := New(testLogger(), Options{})

	if err := p.Register(pipeDescriptor("a", []types.EventType{types.EventStop}, okWork)); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	err := p.Register(pipeDescriptor("a", []types.EventType{types.EventStop}, okWork))
	if err == nil {
		t.Fatal("expected duplicate id rejection")
	}
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("expected ErrDuplicateHandler, got %v", err)
	}
}

func TestPipeline_RegisterValidatesEagerly(t *testing.T) {
	p := New(testLogger(), Options{})

	err := p.Register(
		pipeDescriptor("a", []types.EventType{types.EventStop}, okWork,
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"missing"} }),
	)
	if err == nil {
		t.Fatal("expected unknown dependency to surface at registration")
	}
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}

	// Failed registration must leave nothing behind
	if p.HandlerCount() != 0 {
		t.Errorf("failed registration left %d handlers registered", p.HandlerCount())
	}
}

func TestPipeline_RegisterCycleLeavesPriorStateIntact(t *testing.T) {
	p := New(testLogger(), Options{})

	if err := p.Register(pipeDescriptor("base", []types.EventType{types.EventStop}, okWork)); err != nil {
		t.Fatalf("register base: %v", err)
	}

	err := p.Register(
		pipeDescriptor("x", []types.EventType{types.EventStop}, okWork,
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"y"} }),
		pipeDescriptor("y", []types.EventType{types.EventStop}, okWork,
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"x"} }),
	)
	if err == nil {
		t.Fatal("expected cycle rejection")
	}
	if !errors.Is(err, ErrDependencyCycle) {
		t.Errorf("expected ErrDependencyCycle, got %v", err)
	}

	if p.HandlerCount() != 1 {
		t.Errorf("expected only base to remain registered, got %d handlers", p.HandlerCount())
	}

	// The surviving plan must still run
	result, err := p.Run(context.Background(), types.HookEvent{Type: types.EventStop}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !reflect.DeepEqual(result.ExecutedHandlers, []string{"base"}) {
		t.Errorf("ExecutedHandlers = %v, want [base]", result.ExecutedHandlers)
	}
}

func TestPipeline_RunUnknownEventType(t *testing.T) {
	p := New(testLogger(), Options{})

	if _, err := p.Run(context.Background(), types.HookEvent{Type: "Lunchtime"}, nil); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestPipeline_RunNoSubscribers(t *testing.T) {
	p := New(testLogger(), Options{})

	result, err := p.Run(context.Background(), types.HookEvent{Type: types.EventStop}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Success {
		t.Error("run with no subscribers must succeed")
	}
	if len(result.ExecutedHandlers) != 0 {
		t.Errorf("expected no executed handlers, got %v", result.ExecutedHandlers)
	}
}

// Guard-and-logger scenario: a stop-strategy guard blocks a dangerous
// command and the downstream audit logger is skipped.
func TestPipeline_GuardBlocksAndAborts(t *testing.T) {
	notif := &mockNotifier{}
	p := New(testLogger(), Options{Notifier: notif})

	logged := false
	err := p.Register(
		pipeDescriptor("guard", []types.EventType{types.EventPreToolUse},
			func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
				command, _ := exec.Event.Payload["command"].(string)
				if command == "rm -rf /" {
					return &types.HandlerOutput{
						Decision: types.DecisionBlock,
						Reason:   "refusing to delete the filesystem root",
					}, errors.New("blocked dangerous command")
				}
				return &types.HandlerOutput{Decision: types.DecisionApprove}, nil
			},
			func(d *types.HandlerDescriptor) { d.ErrorStrategy = types.ErrorStrategyStop }),
		pipeDescriptor("audit", []types.EventType{types.EventPreToolUse},
			func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
				logged = true
				return nil, nil
			},
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"guard"} }),
	)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	event := types.HookEvent{
		Type:    types.EventPreToolUse,
		Payload: map[string]any{"command": "rm -rf /"},
	}
	result, err := p.Run(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.Success {
		t.Error("stop-strategy failure must fail the run")
	}
	if !result.Blocked() {
		t.Error("expected block decision to survive aggregation")
	}
	if result.Output.Reason != "refusing to delete the filesystem root" {
		t.Errorf("Reason = %q", result.Output.Reason)
	}
	if logged {
		t.Error("audit handler must be skipped after abort")
	}
	if !reflect.DeepEqual(result.SkippedHandlers, []string{"audit"}) {
		t.Errorf("SkippedHandlers = %v, want [audit]", result.SkippedHandlers)
	}
	if len(notif.blocked) != 1 {
		t.Errorf("expected 1 blocked notification, got %d", len(notif.blocked))
	}
	if len(notif.aborted) != 1 {
		t.Errorf("expected 1 aborted notification, got %d", len(notif.aborted))
	}
}

func TestPipeline_GuardApprovesBenignCommand(t *testing.T) {
	p := New(testLogger(), Options{})

	err := p.Register(
		pipeDescriptor("guard", []types.EventType{types.EventPreToolUse},
			func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
				return &types.HandlerOutput{Decision: types.DecisionApprove}, nil
			},
			func(d *types.HandlerDescriptor) { d.ErrorStrategy = types.ErrorStrategyStop }),
		pipeDescriptor("audit", []types.EventType{types.EventPreToolUse}, okWork,
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"guard"} }),
	)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	event := types.HookEvent{
		Type:    types.EventPreToolUse,
		Payload: map[string]any{"command": "ls -la"},
	}
	result, err := p.Run(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !result.Success {
		t.Error("benign command must succeed")
	}
	if result.Output.Decision != types.DecisionApprove {
		t.Errorf("Decision = %q, want approve", result.Output.Decision)
	}
	if !reflect.DeepEqual(result.ExecutedHandlers, []string{"guard", "audit"}) {
		t.Errorf("ExecutedHandlers = %v, want [guard audit]", result.ExecutedHandlers)
	}
}

func TestPipeline_SharedStateFlowsBetweenLayers(t *testing.T) {
	p := New(testLogger(), Options{Concurrent: true})

	err := p.Register(
		pipeDescriptor("producer", []types.EventType{types.EventSessionStart},
			func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
				exec.Set("token", "abc123")
				return nil, nil
			}),
		pipeDescriptor("consumer", []types.EventType{types.EventSessionStart},
			func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
				token := exec.GetString("token")
				if token == "" {
					return nil, errors.New("token not visible to dependent")
				}
				return &types.HandlerOutput{Context: "token=" + token}, nil
			},
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"producer"} }),
	)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	result, err := p.Run(context.Background(), types.HookEvent{Type: types.EventSessionStart}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Success {
		t.Errorf("run failed: %v", result.FailedHandlers)
	}
	if result.Output.Context != "token=abc123" {
		t.Errorf("Context = %q", result.Output.Context)
	}
}

func TestPipeline_ExplainPlan(t *testing.T) {
	p := New(testLogger(), Options{})

	err := p.Register(
		pipeDescriptor("a", []types.EventType{types.EventPreToolUse}, okWork),
		pipeDescriptor("b", []types.EventType{types.EventPreToolUse}, okWork,
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"a"} }),
		pipeDescriptor("c", []types.EventType{types.EventPreToolUse}, okWork,
			func(d *types.HandlerDescriptor) { d.DependsOn = []string{"a"} }),
	)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	layers, err := p.ExplainPlan(types.EventPreToolUse)
	if err != nil {
		t.Fatalf("ExplainPlan() error: %v", err)
	}

	want := [][]string{{"a"}, {"b", "c"}}
	if !reflect.DeepEqual(layers, want) {
		t.Errorf("layers = %v, want %v", layers, want)
	}

	// Mutating the returned slices must not corrupt the stored plan
	layers[0][0] = "corrupted"
	again, _ := p.ExplainPlan(types.EventPreToolUse)
	if !reflect.DeepEqual(again, want) {
		t.Errorf("stored plan mutated through ExplainPlan result: %v", again)
	}

	// Unsubscribed event type yields an empty plan
	empty, err := p.ExplainPlan(types.EventSessionEnd)
	if err != nil {
		t.Fatalf("ExplainPlan() error for empty event: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty plan, got %v", empty)
	}

	if _, err := p.ExplainPlan("Lunchtime"); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestPipeline_EventScoping(t *testing.T) {
	p := New(testLogger(), Options{})

	var ran []string
	var mu sync.Mutex
	track := func(id string) types.WorkFunc {
		return func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
			mu.Lock()
			ran = append(ran, id)
			mu.Unlock()
			return nil, nil
		}
	}

	err := p.Register(
		pipeDescriptor("start-only", []types.EventType{types.EventSessionStart}, track("start-only")),
		pipeDescriptor("both", []types.EventType{types.EventSessionStart, types.EventStop}, track("both")),
	)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if _, err := p.Run(context.Background(), types.HookEvent{Type: types.EventStop}, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !reflect.DeepEqual(ran, []string{"both"}) {
		t.Errorf("expected only the subscribed handler to run, got %v", ran)
	}

	events := p.EventTypes()
	want := []types.EventType{types.EventSessionStart, types.EventStop}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("EventTypes() = %v, want %v", events, want)
	}
}

func TestPipeline_ConcurrentRunsAreIndependent(t *testing.T) {
	p := New(testLogger(), Options{Concurrent: true})

	err := p.Register(
		pipeDescriptor("echo", []types.EventType{types.EventUserPromptSubmit},
			func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
				prompt, _ := exec.Event.Payload["prompt"].(string)
				return &types.HandlerOutput{Context: prompt}, nil
			}),
	)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	const runs = 16
	var wg sync.WaitGroup
	errs := make(chan error, runs)

	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prompt := fmt.Sprintf("prompt-%d", i)
			event := types.HookEvent{
				Type:    types.EventUserPromptSubmit,
				Payload: map[string]any{"prompt": prompt},
			}
			result, err := p.Run(context.Background(), event, nil)
			if err != nil {
				errs <- err
				return
			}
			if result.Output.Context != prompt {
				errs <- fmt.Errorf("run %d saw context %q", i, result.Output.Context)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPipeline_ContinueFailureNotifiesRunFailure(t *testing.T) {
	notif := &mockNotifier{}
	p := New(testLogger(), Options{Notifier: notif})

	err := p.Register(
		pipeDescriptor("flaky", []types.EventType{types.EventPostToolUse},
			func(ctx context.Context, exec *types.ExecutionContext) (*types.HandlerOutput, error) {
				return nil, errors.New("boom")
			}),
		pipeDescriptor("steady", []types.EventType{types.EventPostToolUse}, okWork),
	)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	result, err := p.Run(context.Background(), types.HookEvent{Type: types.EventPostToolUse}, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !result.Success {
		t.Error("continue-strategy failure must not flip Success")
	}
	if !reflect.DeepEqual(result.FailedHandlers, []string{"flaky"}) {
		t.Errorf("FailedHandlers = %v, want [flaky]", result.FailedHandlers)
	}
	if len(notif.aborted) != 0 {
		t.Errorf("expected no aborted notification, got %v", notif.aborted)
	}
	if len(notif.failed) != 1 || !reflect.DeepEqual(notif.failed[0], []string{"flaky"}) {
		t.Errorf("run-failure notifications = %v, want [[flaky]]", notif.failed)
	}
}
