package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("expected default model claude-sonnet-4-20250514, got %q", cfg.Anthropic.Model)
	}
	if cfg.Anthropic.Prompt != "decomposition" {
		t.Errorf("expected default prompt 'decomposition', got %q", cfg.Anthropic.Prompt)
	}
	if cfg.Anthropic.APIKey != "" {
		t.Error("default config must not carry an API key")
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr ':8080', got %q", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("expected cors_origins [*], got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected storage driver 'memory', got %q", cfg.Storage.Driver)
	}
	if want := filepath.Join(".armtask", "tasks.db"); cfg.Storage.Path != want {
		t.Errorf("expected storage path %q, got %q", want, cfg.Storage.Path)
	}
	if cfg.Executor.Backend != "simulated" {
		t.Errorf("expected backend 'simulated', got %q", cfg.Executor.Backend)
	}
	if cfg.Executor.Delay != 2*time.Second {
		t.Errorf("expected delay 2s, got %v", cfg.Executor.Delay)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearKeyEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-haiku-4-5-20251001
  max_tokens: 2048
  temperature: 0
  prompt: simple
server:
  addr: 127.0.0.1:9000
  cors_origins:
    - http://localhost:3000
storage:
  driver: sqlite
  path: /tmp/armtask.db
executor:
  backend: http
  delay: 500ms
  endpoint: http://arm.local/execute
  timeout: 45s
log:
  level: debug
  format: json
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
	if cfg.Anthropic.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("expected haiku model, got %q", cfg.Anthropic.Model)
	}
	if cfg.Anthropic.MaxTokens != 2048 {
		t.Errorf("expected max_tokens 2048, got %d", cfg.Anthropic.MaxTokens)
	}
	if cfg.Anthropic.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", cfg.Anthropic.Temperature)
	}
	if cfg.Anthropic.Prompt != "simple" {
		t.Errorf("expected prompt 'simple', got %q", cfg.Anthropic.Prompt)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("expected addr 127.0.0.1:9000, got %q", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected cors_origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/tmp/armtask.db" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Executor.Delay != 500*time.Millisecond {
		t.Errorf("expected delay 500ms, got %v", cfg.Executor.Delay)
	}
	if cfg.Executor.Timeout != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Executor.Timeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log %+v", cfg.Log)
	}

	// Untouched keys keep their defaults.
	if cfg.Executor.SignalsDir != filepath.Join(".armtask", "signals") {
		t.Errorf("expected default signals_dir, got %q", cfg.Executor.SignalsDir)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  addr: :1111\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("ARMTASK_SERVER_ADDR", ":2222")
	t.Setenv("ARMTASK_EXECUTOR_DELAY", "3s")
	t.Setenv("ARMTASK_STORAGE_DRIVER", "postgres")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Server.Addr != ":2222" {
		t.Errorf("env should override file: addr = %q", cfg.Server.Addr)
	}
	if cfg.Executor.Delay != 3*time.Second {
		t.Errorf("delay = %v, want 3s", cfg.Executor.Delay)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Storage.Driver)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("api_key = %q, want value from ANTHROPIC_API_KEY", cfg.Anthropic.APIKey)
	}
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	clearKeyEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	userDir := filepath.Join(xdg, "armtask")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	userConfig := "server:\n  addr: :7000\nlog:\n  level: warn\n"
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(userConfig), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, ProjectConfigName), []byte("server:\n  addr: :7001\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(project, "sub", "dir")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7001" {
		t.Errorf("project config should win: addr = %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("user config should apply: level = %q", cfg.Log.Level)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Storage.Driver = "sqlite3"
	cfg.Executor.Delay = 750 * time.Millisecond
	cfg.Server.CORSOrigins = []string{"http://a", "http://b"}

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Storage.Driver != "sqlite3" {
		t.Errorf("driver = %q, want sqlite3", loaded.Storage.Driver)
	}
	if loaded.Executor.Delay != 750*time.Millisecond {
		t.Errorf("delay = %v, want 750ms", loaded.Executor.Delay)
	}
	if len(loaded.Server.CORSOrigins) != 2 {
		t.Errorf("cors_origins = %v", loaded.Server.CORSOrigins)
	}
}

func TestSetValue(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := SetValue(path, "executor.backend", "http"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if err := SetValue(path, "server.cors_origins", "http://a, http://b"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Executor.Backend != "http" {
		t.Errorf("backend = %q, want http", cfg.Executor.Backend)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b" {
		t.Errorf("cors_origins = %v", cfg.Server.CORSOrigins)
	}

	if err := SetValue(path, "nope.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestKeys(t *testing.T) {
	for _, key := range []string{"anthropic.api_key", "server.addr", "storage.dsn", "executor.signals_dir", "log.format"} {
		if !IsKnownKey(key) {
			t.Errorf("expected %q to be a known key", key)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

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
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/armtask"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
