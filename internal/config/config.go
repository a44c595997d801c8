// Package config handles configuration loading and management for armtask.
// It supports XDG config paths, project-level overrides, a .env file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/armtask/internal/state"
)

// ProjectConfigName is the project-level override file, searched upward from the working directory.
const ProjectConfigName = ".armtask.yaml"

// EnvPrefix prefixes every environment override, e.g. ARMTASK_SERVER_ADDR.
const EnvPrefix = "ARMTASK"

// Config holds all configuration for armtask.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int64   `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	// Prompt is "decomposition" or "simple".
	Prompt  string        `mapstructure:"prompt" yaml:"prompt"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	UseBedrock bool   `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region" yaml:"aws_region,omitempty"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr" yaml:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	// URL is where clients (tui, tasks) reach the server.
	URL string `mapstructure:"url" yaml:"url"`
}

// StorageConfig selects the task store.
type StorageConfig struct {
	// Driver is memory, sqlite, sqlite3 or postgres.
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path,omitempty"`
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// ExecutorConfig selects the execution backend.
type ExecutorConfig struct {
	// Backend is simulated or http.
	Backend    string        `mapstructure:"backend" yaml:"backend"`
	Delay      time.Duration `mapstructure:"delay" yaml:"delay"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SignalsDir string        `mapstructure:"signals_dir" yaml:"signals_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Path   string `mapstructure:"path" yaml:"path,omitempty"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, ARMTASK_<SECTION>_<KEY>)
// 2. Project config (.armtask.yaml in current directory or parent)
// 3. User config (~/.config/armtask/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path. Environment
// overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The Anthropic key keeps its conventional name.
	v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in secrets.
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Executor.APIKey = expandEnv(cfg.Executor.APIKey)
	cfg.Storage.DSN = expandEnv(cfg.Storage.DSN)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(GetUserConfigPath(), cfg)
}

// SaveTo writes the configuration to path.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.temperature", cfg.Anthropic.Temperature)
	v.Set("anthropic.prompt", cfg.Anthropic.Prompt)
	v.Set("anthropic.base_url", cfg.Anthropic.BaseURL)
	v.Set("anthropic.timeout", cfg.Anthropic.Timeout.String())
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.cors_origins", cfg.Server.CORSOrigins)
	v.Set("server.url", cfg.Server.URL)
	v.Set("storage.driver", cfg.Storage.Driver)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("storage.dsn", cfg.Storage.DSN)
	v.Set("executor.backend", cfg.Executor.Backend)
	v.Set("executor.delay", cfg.Executor.Delay.String())
	v.Set("executor.endpoint", cfg.Executor.Endpoint)
	v.Set("executor.api_key", cfg.Executor.APIKey)
	v.Set("executor.timeout", cfg.Executor.Timeout.String())
	v.Set("executor.signals_dir", cfg.Executor.SignalsDir)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.path", cfg.Log.Path)

	return v.WriteConfigAs(path)
}

// SetValue updates a single key in the config file at path, creating it if needed.
func SetValue(path, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	if key == "server.cors_origins" {
		v.Set(key, splitList(value))
	} else {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Keys returns every configuration key in dotted form.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	return v.AllKeys()
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.temperature", d.Anthropic.Temperature)
	v.SetDefault("anthropic.prompt", d.Anthropic.Prompt)
	v.SetDefault("anthropic.base_url", d.Anthropic.BaseURL)
	v.SetDefault("anthropic.timeout", d.Anthropic.Timeout.String())
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", d.Anthropic.AWSProfile)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.url", d.Server.URL)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.dsn", d.Storage.DSN)

	v.SetDefault("executor.backend", d.Executor.Backend)
	v.SetDefault("executor.delay", d.Executor.Delay.String())
	v.SetDefault("executor.endpoint", d.Executor.Endpoint)
	v.SetDefault("executor.api_key", d.Executor.APIKey)
	v.SetDefault("executor.timeout", d.Executor.Timeout.String())
	v.SetDefault("executor.signals_dir", d.Executor.SignalsDir)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.path", d.Log.Path)
}

// getUserConfigDir returns the XDG config directory for armtask.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "armtask")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "armtask")
	}
	return filepath.Join(home, ".config", "armtask")
}

// findProjectConfig searches for .armtask.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   1024,
			Temperature: 0.2,
			Prompt:      "decomposition",
			Timeout:     60 * time.Second,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			URL:         "http://localhost:8080",
		},
		Storage: StorageConfig{
			Driver: "memory",
			Path:   state.DefaultDBPath("."),
		},
		Executor: ExecutorConfig{
			Backend:    "simulated",
			Delay:      2 * time.Second,
			Timeout:    30 * time.Second,
			SignalsDir: filepath.Join(".armtask", "signals"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
