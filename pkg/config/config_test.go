package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wisp/wisp/pkg/config"
	"github.com/wisp/wisp/pkg/types"
)

func TestLoadConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "wisp.config.json")

	testConfig := map[string]interface{}{
		"version": "1.0",
		"hooks": []map[string]interface{}{
			{
				"id":     "session-name",
				"kind":   "session-name",
				"events": []string{"SessionStart"},
			},
			{
				"id":      "command-guard",
				"kind":    "command-guard",
				"events":  []string{"PreToolUse"},
				"onError": "stop",
				"settings": map[string]interface{}{
					"rules": []map[string]string{
						{"pattern": "rm -rf *", "reason": "recursive delete"},
					},
				},
			},
		},
		"scheduling": map[string]interface{}{
			"concurrent":       true,
			"defaultTimeoutMs": 5000,
		},
	}

	data, _ := json.Marshal(testConfig)
	os.WriteFile(configPath, data, 0644)

	manager := config.NewManager(nil)
	cfg, err := manager.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Version != "1.0" {
		t.Errorf("expected version 1.0, got %s", cfg.Version)
	}

	if len(cfg.Hooks) != 2 {
		t.Errorf("expected 2 hooks, got %d", len(cfg.Hooks))
	}

	if cfg.Scheduling == nil || !cfg.Scheduling.Concurrent {
		t.Error("scheduling config not loaded correctly")
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "wisp.config.yaml")

	testConfig := map[string]interface{}{
		"version": "1.0",
		"hooks": []map[string]interface{}{
			{
				"id":     "event-log",
				"kind":   "log",
				"events": []string{"SessionStart", "PreToolUse"},
				"settings": map[string]interface{}{
					"path": "events.jsonl",
				},
			},
		},
	}

	data, _ := yaml.Marshal(testConfig)
	os.WriteFile(configPath, data, 0644)

	manager := config.NewManager(nil)
	cfg, err := manager.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	if len(cfg.Hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(cfg.Hooks))
	}

	if cfg.Hooks[0].Kind != types.HookKindLog {
		t.Errorf("expected kind log, got %s", cfg.Hooks[0].Kind)
	}
}

func TestLoadConfig_JSONAndYAMLEquivalent(t *testing.T) {
	tmpDir := t.TempDir()

	jsonConfig := `{
		"version": "1.0",
		"hooks": [
			{"id": "guard", "kind": "command-guard", "events": ["PreToolUse"], "onError": "stop",
			 "settings": {"rules": [{"pattern": "sudo *", "reason": "no sudo"}]}}
		]
	}`
	yamlConfig := `
version: "1.0"
hooks:
  - id: guard
    kind: command-guard
    events: [PreToolUse]
    onError: stop
    settings:
      rules:
        - pattern: "sudo *"
          reason: "no sudo"
`

	jsonPath := filepath.Join(tmpDir, "cfg.json")
	yamlPath := filepath.Join(tmpDir, "cfg.yaml")
	os.WriteFile(jsonPath, []byte(jsonConfig), 0644)
	os.WriteFile(yamlPath, []byte(yamlConfig), 0644)

	manager := config.NewManager(nil)

	fromJSON, err := manager.LoadConfig(jsonPath)
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}
	fromYAML, err := manager.LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	jsonDescs, err := manager.ResolveDescriptors(fromJSON)
	if err != nil {
		t.Fatalf("failed to resolve JSON descriptors: %v", err)
	}
	yamlDescs, err := manager.ResolveDescriptors(fromYAML)
	if err != nil {
		t.Fatalf("failed to resolve YAML descriptors: %v", err)
	}

	if len(jsonDescs) != 1 || len(yamlDescs) != 1 {
		t.Fatalf("expected 1 descriptor each, got %d and %d", len(jsonDescs), len(yamlDescs))
	}

	j, y := jsonDescs[0], yamlDescs[0]
	if j.ID != y.ID || j.ErrorStrategy != y.ErrorStrategy || len(j.Events) != len(y.Events) {
		t.Errorf("JSON and YAML configs resolved differently: %+v vs %+v", j, y)
	}
}

func TestValidateConfig(t *testing.T) {
	manager := config.NewManager(nil)

	tests := []struct {
		name    string
		config  *types.HooksConfig
		wantErr string
	}{
		{
			name: "valid config",
			config: &types.HooksConfig{
				Version: "1.0",
				Hooks: []types.HookConfig{
					{ID: "a", Kind: types.HookKindSessionName, Events: []types.EventType{types.EventSessionStart}},
					{ID: "b", Kind: types.HookKindLog, Events: []types.EventType{types.EventSessionStart}, DependsOn: []string{"a"}},
				},
			},
		},
		{
			name:    "invalid version",
			config:  &types.HooksConfig{Version: "2.0", Hooks: []types.HookConfig{{ID: "a", Kind: types.HookKindLog}}},
			wantErr: "unsupported config version",
		},
		{
			name:    "no hooks",
			config:  &types.HooksConfig{Version: "1.0"},
			wantErr: "no hooks defined",
		},
		{
			name: "missing id",
			config: &types.HooksConfig{
				Version: "1.0",
				Hooks:   []types.HookConfig{{Kind: types.HookKindLog}},
			},
			wantErr: "missing id",
		},
		{
			name: "duplicate id",
			config: &types.HooksConfig{
				Version: "1.0",
				Hooks: []types.HookConfig{
					{ID: "a", Kind: types.HookKindLog},
					{ID: "a", Kind: types.HookKindLog},
				},
			},
			wantErr: "duplicate hook id",
		},
		{
			name: "invalid kind",
			config: &types.HooksConfig{
				Version: "1.0",
				Hooks:   []types.HookConfig{{ID: "a", Kind: "teleport"}},
			},
			wantErr: "invalid kind",
		},
		{
			name: "unknown event",
			config: &types.HooksConfig{
				Version: "1.0",
				Hooks:   []types.HookConfig{{ID: "a", Kind: types.HookKindLog, Events: []types.EventType{"BeforeLunch"}}},
			},
			wantErr: "unknown event type",
		},
		{
			name: "invalid error strategy",
			config: &types.HooksConfig{
				Version: "1.0",
				Hooks:   []types.HookConfig{{ID: "a", Kind: types.HookKindLog, OnError: "retry"}},
			},
			wantErr: "invalid onError",
		},
		{
			name: "unknown dependency",
			config: &types.HooksConfig{
				Version: "1.0",
				Hooks:   []types.HookConfig{{ID: "a", Kind: types.HookKindLog, DependsOn: []string{"ghost"}}},
			},
			wantErr: "unknown hook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.ValidateConfig(tt.config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateConfig() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestResolveDescriptors(t *testing.T) {
	manager := config.NewManager(nil)

	disabled := false
	cfg := &types.HooksConfig{
		Version: "1.0",
		Hooks: []types.HookConfig{
			{
				ID:     "name",
				Kind:   types.HookKindSessionName,
				Events: []types.EventType{types.EventSessionStart},
			},
			{
				ID:        "guard",
				Kind:      types.HookKindCommandGuard,
				Events:    []types.EventType{types.EventPreToolUse},
				Priority:  5,
				TimeoutMs: 2500,
				Settings:  json.RawMessage(`{"rules":[{"pattern":"rm -rf *"}]}`),
			},
			{
				ID:      "off",
				Kind:    types.HookKindLog,
				Events:  []types.EventType{types.EventSessionStart},
				Enabled: &disabled,
			},
		},
	}

	descriptors, err := manager.ResolveDescriptors(cfg)
	if err != nil {
		t.Fatalf("failed to resolve descriptors: %v", err)
	}

	if len(descriptors) != 2 {
		t.Fatalf("expected 2 descriptors (disabled hook skipped), got %d", len(descriptors))
	}

	guard := descriptors[1]
	if guard.ID != "guard" {
		t.Errorf("expected configured id to win, got %s", guard.ID)
	}
	if guard.Priority != 5 {
		t.Errorf("expected priority 5, got %d", guard.Priority)
	}
	if guard.Timeout != 2500*time.Millisecond {
		t.Errorf("expected timeout 2.5s, got %v", guard.Timeout)
	}
	if guard.ErrorStrategy != types.ErrorStrategyStop {
		t.Errorf("expected guard default stop strategy, got %s", guard.ErrorStrategy)
	}
}

func TestResolveDescriptors_LogRequiresPath(t *testing.T) {
	manager := config.NewManager(nil)

	cfg := &types.HooksConfig{
		Version: "1.0",
		Hooks: []types.HookConfig{
			{ID: "log", Kind: types.HookKindLog, Events: []types.EventType{types.EventSessionStart}},
		},
	}

	if _, err := manager.ResolveDescriptors(cfg); err == nil {
		t.Error("expected error for log hook without settings.path")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	manager := config.NewManager(nil)
	cfg := manager.GetDefaultConfig()

	if cfg.Version != "1.0" {
		t.Errorf("expected version 1.0, got %s", cfg.Version)
	}

	if err := manager.ValidateConfig(cfg); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}

	if _, err := manager.ResolveDescriptors(cfg); err != nil {
		t.Errorf("default config failed to resolve: %v", err)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	manager := config.NewManager(nil)

	// Non-existent file
	_, err := manager.LoadConfig("/non/existent/file.json")
	if err == nil {
		t.Error("expected error for non-existent file")
	}

	// Garbage content
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "invalid.json")
	os.WriteFile(invalidPath, []byte("{not json"), 0644)

	_, err = manager.LoadConfig(invalidPath)
	if err == nil {
		t.Error("expected error for invalid content")
	}
}

// Helper function
func contains(s, substr string) bool {
	return len(s) >= len(substr) && s[:len(substr)] == substr ||
		len(s) > len(substr) && contains(s[1:], substr)
}
