package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no Anthropic API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

const anthropicKeyPrefix = "sk-ant-"

// KeySource represents where a credential was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// Credential is a secret setting. Its environment variables win over the
// config file, and config values may reference other variables as ${VAR}.
type Credential struct {
	// Key is the dot-notation config key.
	Key     string
	EnvVars []string
	// shown is the length of a public prefix that Mask keeps.
	shown int
	field func(*Config) *string
}

var (
	// AnthropicKey authenticates the LLM gateway against the direct API.
	AnthropicKey = Credential{
		Key:     "anthropic.api_key",
		EnvVars: []string{"ANTHROPIC_API_KEY", EnvPrefix + "_ANTHROPIC_API_KEY"},
		shown:   len(anthropicKeyPrefix),
		field:   func(c *Config) *string { return &c.Anthropic.APIKey },
	}

	// ExecutorKey is sent as a bearer token to the arm controller by the http backend.
	ExecutorKey = Credential{
		Key:     "executor.api_key",
		EnvVars: []string{EnvPrefix + "_EXECUTOR_API_KEY"},
		field:   func(c *Config) *string { return &c.Executor.APIKey },
	}

	// StorageDSN carries the Postgres password.
	StorageDSN = Credential{
		Key:     "storage.dsn",
		EnvVars: []string{EnvPrefix + "_STORAGE_DSN"},
		field:   func(c *Config) *string { return &c.Storage.DSN },
	}
)

// Credentials lists every secret setting.
var Credentials = []Credential{AnthropicKey, ExecutorKey, StorageDSN}

// LookupCredential returns the credential stored under key, if any.
func LookupCredential(key string) (Credential, bool) {
	key = strings.ToLower(key)
	for _, c := range Credentials {
		if c.Key == key {
			return c, true
		}
	}
	return Credential{}, false
}

// Resolve returns the credential value and where it came from.
func (c Credential) Resolve(cfg *Config) (string, KeySource) {
	for _, name := range c.EnvVars {
		if v := os.Getenv(name); v != "" {
			return v, KeySourceEnv
		}
	}
	if cfg == nil {
		return "", KeySourceNone
	}
	// An unset ${VAR} expands to nothing and counts as missing.
	if v := os.ExpandEnv(*c.field(cfg)); v != "" {
		return v, KeySourceConfig
	}
	return "", KeySourceNone
}

// Mask keeps the last four characters of v, plus the public prefix for
// Anthropic keys.
func (c Credential) Mask(v string) string {
	if v == "" {
		return "(not set)"
	}
	if len(v) <= c.shown+8 {
		return "***"
	}
	if c.shown == 0 {
		return "***" + v[len(v)-4:]
	}
	return v[:c.shown] + "..." + v[len(v)-4:]
}

// Masked returns a copy of cfg with every credential resolved and masked.
func Masked(cfg *Config) Config {
	masked := *cfg
	for _, c := range Credentials {
		v, _ := c.Resolve(cfg)
		*c.field(&masked) = c.Mask(v)
	}
	return masked
}

// GetAPIKey returns the Anthropic API key. Keys are never compiled in.
func GetAPIKey(cfg *Config) (string, error) {
	if key, _ := AnthropicKey.Resolve(cfg); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// ValidateAPIKey checks the key format without calling the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, anthropicKeyPrefix) {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}
