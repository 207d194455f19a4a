package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batonkit/baton/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Defaults.Mode != "autonomous" {
		t.Errorf("expected default mode 'autonomous', got %q", cfg.Defaults.Mode)
	}

	if cfg.Defaults.MaxRetries != 3 {
		t.Errorf("expected default max_retries 3, got %d", cfg.Defaults.MaxRetries)
	}

	if cfg.Defaults.TaskTimeout != 10*time.Minute {
		t.Errorf("expected task timeout 10m, got %v", cfg.Defaults.TaskTimeout)
	}

	if cfg.Defaults.QualityThreshold != 0.7 {
		t.Errorf("expected quality threshold 0.7, got %v", cfg.Defaults.QualityThreshold)
	}

	if cfg.Retry.InitialInterval != 100*time.Millisecond {
		t.Errorf("expected retry initial interval 100ms, got %v", cfg.Retry.InitialInterval)
	}

	if cfg.Retry.MaxInterval != 30*time.Second {
		t.Errorf("expected retry max interval 30s, got %v", cfg.Retry.MaxInterval)
	}

	if cfg.Retry.Multiplier != 2.0 {
		t.Errorf("expected retry multiplier 2.0, got %v", cfg.Retry.Multiplier)
	}

	if !cfg.History.Enabled {
		t.Error("expected history.enabled to be true")
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-sonnet-4-20250514
  max_tokens: 4096
  use_aws_bedrock: true
  aws_region: us-west-2
  aws_profile: work
defaults:
  mode: hybrid
  max_retries: 5
  task_timeout: 20m
  quality_threshold: 0.85
retry:
  initial_interval: 250ms
  max_interval: 1m
  multiplier: 1.5
history:
  enabled: false
  path: /tmp/custom-history.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("expected model 'claude-sonnet-4-20250514', got %q", cfg.Anthropic.Model)
	}

	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("expected max_tokens 4096, got %d", cfg.Anthropic.MaxTokens)
	}

	if !cfg.Anthropic.UseAWSBedrock {
		t.Error("expected use_aws_bedrock to be true")
	}

	if cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("expected aws_region 'us-west-2', got %q", cfg.Anthropic.AWSRegion)
	}

	if cfg.Defaults.Mode != "hybrid" {
		t.Errorf("expected mode 'hybrid', got %q", cfg.Defaults.Mode)
	}

	if cfg.Defaults.MaxRetries != 5 {
		t.Errorf("expected max_retries 5, got %d", cfg.Defaults.MaxRetries)
	}

	if cfg.Defaults.TaskTimeout != 20*time.Minute {
		t.Errorf("expected task_timeout 20m, got %v", cfg.Defaults.TaskTimeout)
	}

	if cfg.Defaults.QualityThreshold != 0.85 {
		t.Errorf("expected quality_threshold 0.85, got %v", cfg.Defaults.QualityThreshold)
	}

	if cfg.Retry.InitialInterval != 250*time.Millisecond {
		t.Errorf("expected retry initial_interval 250ms, got %v", cfg.Retry.InitialInterval)
	}

	if cfg.History.Enabled {
		t.Error("expected history.enabled to be false")
	}

	if cfg.History.Path != "/tmp/custom-history.db" {
		t.Errorf("expected history.path override, got %q", cfg.History.Path)
	}
}

func TestLoadFromPath_PartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
defaults:
  mode: manual
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Defaults.Mode != "manual" {
		t.Errorf("expected mode 'manual', got %q", cfg.Defaults.Mode)
	}

	// Unset keys fall back to defaults.
	if cfg.Defaults.MaxRetries != 3 {
		t.Errorf("expected default max_retries 3, got %d", cfg.Defaults.MaxRetries)
	}
	if cfg.Defaults.TaskTimeout != 10*time.Minute {
		t.Errorf("expected default task_timeout 10m, got %v", cfg.Defaults.TaskTimeout)
	}
	if !cfg.History.Enabled {
		t.Error("expected history enabled by default")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)
	os.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-roundtrip"
	cfg.Defaults.Mode = "hybrid"
	cfg.Defaults.MaxRetries = 4

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath after Save failed: %v", err)
	}

	if loaded.Anthropic.APIKey != "sk-ant-roundtrip" {
		t.Errorf("api_key = %q after roundtrip", loaded.Anthropic.APIKey)
	}
	if loaded.Defaults.Mode != "hybrid" {
		t.Errorf("mode = %q after roundtrip", loaded.Defaults.Mode)
	}
	if loaded.Defaults.MaxRetries != 4 {
		t.Errorf("max_retries = %d after roundtrip", loaded.Defaults.MaxRetries)
	}
	if loaded.Defaults.TaskTimeout != 10*time.Minute {
		t.Errorf("task_timeout = %v after roundtrip", loaded.Defaults.TaskTimeout)
	}
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/baton"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestMode(t *testing.T) {
	cfg := Default()
	if cfg.Mode() != models.ModeAutonomous {
		t.Errorf("Mode() = %v, want autonomous", cfg.Mode())
	}

	cfg.Defaults.Mode = "manual"
	if cfg.Mode() != models.ModeManual {
		t.Errorf("Mode() = %v, want manual", cfg.Mode())
	}

	cfg.Defaults.Mode = "bogus"
	if cfg.Mode() != models.ModeAutonomous {
		t.Errorf("Mode() = %v, want autonomous fallback for invalid value", cfg.Mode())
	}
}

func TestConstraints(t *testing.T) {
	cfg := Default()
	cfg.Defaults.MaxRetries = 0 // zero values are filled with defaults

	constraints := cfg.Constraints()
	if constraints.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", constraints.MaxRetries)
	}
	if constraints.TaskTimeout != 10*time.Minute {
		t.Errorf("TaskTimeout = %v, want 10m", constraints.TaskTimeout)
	}
	if constraints.QualityThreshold != 0.7 {
		t.Errorf("QualityThreshold = %v, want 0.7", constraints.QualityThreshold)
	}

	cfg.Defaults.MaxRetries = 7
	cfg.Defaults.QualityThreshold = 0.9
	constraints = cfg.Constraints()
	if constraints.MaxRetries != 7 || constraints.QualityThreshold != 0.9 {
		t.Errorf("explicit values not kept: %+v", constraints)
	}
}

func TestPolicy(t *testing.T) {
	cfg := Default()
	cfg.Retry.InitialInterval = 50 * time.Millisecond
	cfg.Retry.MaxInterval = 5 * time.Second
	cfg.Retry.Multiplier = 3.0

	pol := cfg.Policy()
	if pol.Retry.InitialInterval != 50*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 50ms", pol.Retry.InitialInterval)
	}
	if pol.Retry.MaxInterval != 5*time.Second {
		t.Errorf("MaxInterval = %v, want 5s", pol.Retry.MaxInterval)
	}
	if pol.Retry.Multiplier != 3.0 {
		t.Errorf("Multiplier = %v, want 3.0", pol.Retry.Multiplier)
	}

	// Zero retry config keeps the policy defaults.
	pol = (&Config{}).Policy()
	if pol.Retry.InitialInterval != 100*time.Millisecond {
		t.Errorf("default InitialInterval = %v, want 100ms", pol.Retry.InitialInterval)
	}
}
