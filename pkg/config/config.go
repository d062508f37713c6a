// Package config handles hooks configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wisp/wisp/pkg/hooks"
	"github.com/wisp/wisp/pkg/logger"
	"github.com/wisp/wisp/pkg/types"
)

// Manager handles configuration operations
type Manager struct {
	logger logger.Logger
}

// NewManager creates a new configuration manager. The logger may be nil.
func NewManager(log logger.Logger) *Manager {
	return &Manager{logger: log}
}

// LoadConfig loads a hooks configuration from a file
func (m *Manager) LoadConfig(path string) (*types.HooksConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.HooksConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validated(&cfg)
	}

	// Try YAML - need special handling for json.RawMessage fields
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		// Convert YAML data to JSON, then unmarshal
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return m.validated(&cfg)
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// ValidateConfig validates a hooks configuration
func (m *Manager) ValidateConfig(config *types.HooksConfig) error {
	if config.Version != "1.0" {
		return fmt.Errorf("unsupported config version: %s", config.Version)
	}

	if len(config.Hooks) == 0 {
		return fmt.Errorf("no hooks defined")
	}

	validKinds := map[types.HookKind]bool{
		types.HookKindSessionName:  true,
		types.HookKindCommandGuard: true,
		types.HookKindLog:          true,
		types.HookKindShell:        true,
	}

	hookIDs := make(map[string]bool)
	for i, hook := range config.Hooks {
		if hook.ID == "" {
			return fmt.Errorf("hook %d: missing id", i)
		}
		if hookIDs[hook.ID] {
			return fmt.Errorf("duplicate hook id: %s", hook.ID)
		}
		hookIDs[hook.ID] = true

		if !validKinds[hook.Kind] {
			return fmt.Errorf("hook '%s': invalid kind: %s", hook.ID, hook.Kind)
		}

		for _, event := range hook.Events {
			if !event.IsValid() {
				return fmt.Errorf("hook '%s': unknown event type: %s", hook.ID, event)
			}
		}

		switch hook.OnError {
		case "", types.ErrorStrategyContinue, types.ErrorStrategyStop:
		default:
			return fmt.Errorf("hook '%s': invalid onError: %s", hook.ID, hook.OnError)
		}

		if hook.TimeoutMs < 0 {
			return fmt.Errorf("hook '%s': negative timeout", hook.ID)
		}
	}

	// Dependencies must name configured hooks. Cycle detection belongs to
	// the pipeline's plan builder, not here.
	for _, hook := range config.Hooks {
		for _, dep := range hook.DependsOn {
			if !hookIDs[dep] {
				return fmt.Errorf("hook '%s': depends on unknown hook: %s", hook.ID, dep)
			}
		}
	}

	return nil
}

// ResolveDescriptors turns the declarative hook records into normalized
// handler descriptors, in config order. Disabled hooks are skipped.
func (m *Manager) ResolveDescriptors(config *types.HooksConfig) ([]*types.HandlerDescriptor, error) {
	descriptors := make([]*types.HandlerDescriptor, 0, len(config.Hooks))

	for _, hook := range config.Hooks {
		if !hook.IsEnabled() {
			if m.logger != nil {
				m.logger.Debug("Skipping disabled hook", logger.WithField("id", hook.ID))
			}
			continue
		}

		descriptor, err := m.resolveHook(hook)
		if err != nil {
			return nil, fmt.Errorf("hook '%s': %w", hook.ID, err)
		}
		descriptors = append(descriptors, descriptor)
	}

	return descriptors, nil
}

func (m *Manager) resolveHook(hook types.HookConfig) (*types.HandlerDescriptor, error) {
	descriptor, err := m.buildHook(hook)
	if err != nil {
		return nil, err
	}

	// The configured id wins over the built-in default so dependsOn
	// references and duplicate detection work on config-file names
	descriptor.ID = hook.ID
	return descriptor, nil
}

func (m *Manager) buildHook(hook types.HookConfig) (*types.HandlerDescriptor, error) {
	opts := m.commonOptions(hook)

	switch hook.Kind {
	case types.HookKindSessionName:
		return hooks.NewSessionNameHandler(opts...)

	case types.HookKindCommandGuard:
		var settings struct {
			Rules []hooks.GuardRule `json:"rules"`
		}
		if err := decodeSettings(hook.Settings, &settings); err != nil {
			return nil, err
		}
		return hooks.NewCommandGuardHandler(settings.Rules, opts...)

	case types.HookKindLog:
		var settings struct {
			Path string `json:"path"`
		}
		if err := decodeSettings(hook.Settings, &settings); err != nil {
			return nil, err
		}
		if settings.Path == "" {
			return nil, fmt.Errorf("log hook requires settings.path")
		}
		return hooks.NewLoggingHandler(settings.Path, m.logger, opts...)

	case types.HookKindShell:
		var settings hooks.ShellHookConfig
		if err := decodeSettings(hook.Settings, &settings); err != nil {
			return nil, err
		}
		return hooks.NewShellHandler(hook.ID, settings, opts...)

	default:
		return nil, fmt.Errorf("unknown hook kind: %s", hook.Kind)
	}
}

// commonOptions maps the shared HookConfig fields onto builder options.
// The built-in constructors apply these after their own defaults, so
// configured values win.
func (m *Manager) commonOptions(hook types.HookConfig) []hooks.Option {
	var opts []hooks.Option

	if len(hook.Events) > 0 {
		opts = append(opts, hooks.OnEvents(hook.Events...))
	}
	if hook.Priority != 0 {
		opts = append(opts, hooks.WithPriority(hook.Priority))
	}
	if len(hook.DependsOn) > 0 {
		opts = append(opts, hooks.After(hook.DependsOn...))
	}
	switch hook.OnError {
	case types.ErrorStrategyStop:
		opts = append(opts, hooks.StopOnError())
	case types.ErrorStrategyContinue:
		opts = append(opts, hooks.ContinueOnError())
	}
	if hook.TimeoutMs > 0 {
		opts = append(opts, hooks.WithTimeout(time.Duration(hook.TimeoutMs)*time.Millisecond))
	}

	return opts
}

func decodeSettings(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// GetDefaultConfig returns a starter configuration with the built-in hooks
func (m *Manager) GetDefaultConfig() *types.HooksConfig {
	enabled := true

	return &types.HooksConfig{
		Version: "1.0",
		Hooks: []types.HookConfig{
			{
				ID:     "session-name",
				Kind:   types.HookKindSessionName,
				Events: []types.EventType{types.EventSessionStart},
			},
			{
				ID:      "command-guard",
				Kind:    types.HookKindCommandGuard,
				Events:  []types.EventType{types.EventPreToolUse},
				OnError: types.ErrorStrategyStop,
				Settings: json.RawMessage(
					`{"rules":[{"pattern":"rm -rf /*","reason":"refusing to delete the filesystem root"}]}`),
			},
			{
				ID:       "event-log",
				Kind:     types.HookKindLog,
				Events:   types.KnownEventTypes(),
				Priority: 90,
				Settings: json.RawMessage(`{"path":".wisp/events.jsonl"}`),
			},
		},
		Scheduling: &types.SchedulingConfig{
			Concurrent:       true,
			DefaultTimeoutMs: 30000,
		},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
	}
}

func (m *Manager) validated(cfg *types.HooksConfig) (*types.HooksConfig, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
