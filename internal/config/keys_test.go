package config

import (
	"testing"
)

// clearKeyEnv unsets every variable a credential consults.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, cred := range Credentials {
		for _, name := range cred.EnvVars {
			t.Setenv(name, "")
		}
	}
}

func TestCredentialResolve(t *testing.T) {
	tests := []struct {
		name       string
		cred       Credential
		env        map[string]string
		cfg        *Config
		wantValue  string
		wantSource KeySource
	}{
		{
			name:       "anthropic key from environment",
			cred:       AnthropicKey,
			env:        map[string]string{"ANTHROPIC_API_KEY": "sk-ant-env"},
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config"}},
			wantValue:  "sk-ant-env",
			wantSource: KeySourceEnv,
		},
		{
			name:       "anthropic key from prefixed variable",
			cred:       AnthropicKey,
			env:        map[string]string{"ARMTASK_ANTHROPIC_API_KEY": "sk-ant-prefixed"},
			cfg:        &Config{},
			wantValue:  "sk-ant-prefixed",
			wantSource: KeySourceEnv,
		},
		{
			name:       "anthropic key from config",
			cred:       AnthropicKey,
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config"}},
			wantValue:  "sk-ant-config",
			wantSource: KeySourceConfig,
		},
		{
			name:       "executor key from environment",
			cred:       ExecutorKey,
			env:        map[string]string{"ARMTASK_EXECUTOR_API_KEY": "controller-token"},
			cfg:        &Config{Executor: ExecutorConfig{APIKey: "from-file"}},
			wantValue:  "controller-token",
			wantSource: KeySourceEnv,
		},
		{
			name:       "executor key references a variable",
			cred:       ExecutorKey,
			env:        map[string]string{"ARM_CONTROLLER_TOKEN": "lab-token"},
			cfg:        &Config{Executor: ExecutorConfig{APIKey: "${ARM_CONTROLLER_TOKEN}"}},
			wantValue:  "lab-token",
			wantSource: KeySourceConfig,
		},
		{
			name:       "unset reference counts as missing",
			cred:       ExecutorKey,
			cfg:        &Config{Executor: ExecutorConfig{APIKey: "${ARMTASK_UNSET_VAR_FOR_TEST}"}},
			wantSource: KeySourceNone,
		},
		{
			name:       "dsn from config",
			cred:       StorageDSN,
			cfg:        &Config{Storage: StorageConfig{DSN: "postgres://arm@db/arm"}},
			wantValue:  "postgres://arm@db/arm",
			wantSource: KeySourceConfig,
		},
		{
			name:       "nil config",
			cred:       ExecutorKey,
			wantSource: KeySourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			value, source := tt.cred.Resolve(tt.cfg)
			if value != tt.wantValue || source != tt.wantSource {
				t.Errorf("Resolve() = (%q, %s), want (%q, %s)", value, source, tt.wantValue, tt.wantSource)
			}
		})
	}
}

func TestGetAPIKey(t *testing.T) {
	clearKeyEnv(t)

	if _, err := GetAPIKey(&Config{}); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")
	key, err := GetAPIKey(nil)
	if err != nil || key != "sk-ant-test-key" {
		t.Errorf("GetAPIKey() = %q, %v", key, err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "sk-ant-REDACTED", false},
		{"empty key", "", true},
		{"wrong prefix", "sk-openai-12345678901234567890", true},
		{"too short", "sk-ant-abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialMask(t *testing.T) {
	tests := []struct {
		cred Credential
		in   string
		want string
	}{
		{AnthropicKey, "sk-ant-REDACTED", "sk-ant-...wxyz"},
		{AnthropicKey, "sk-ant-shortkey", "***"},
		{AnthropicKey, "", "(not set)"},
		{ExecutorKey, "control-service-token", "***oken"},
		{ExecutorKey, "short", "***"},
		{StorageDSN, "postgres://arm:hunter2@db/arm", "***/arm"},
	}

	for _, tt := range tests {
		if got := tt.cred.Mask(tt.in); got != tt.want {
			t.Errorf("%s.Mask(%q) = %q, want %q", tt.cred.Key, tt.in, got, tt.want)
		}
	}
}

func TestMasked(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("ARMTASK_EXECUTOR_API_KEY", "controller-token-9876")

	cfg := &Config{
		Anthropic: AnthropicConfig{APIKey: "sk-ant-REDACTED"},
		Executor:  ExecutorConfig{APIKey: "from-file-1234"},
	}
	masked := Masked(cfg)

	if masked.Anthropic.APIKey != "sk-ant-...WXYZ" {
		t.Errorf("anthropic key = %q", masked.Anthropic.APIKey)
	}
	if masked.Executor.APIKey != "***9876" {
		t.Errorf("executor key = %q, want the environment value masked", masked.Executor.APIKey)
	}
	if masked.Storage.DSN != "(not set)" {
		t.Errorf("dsn = %q", masked.Storage.DSN)
	}
	if cfg.Executor.APIKey != "from-file-1234" {
		t.Error("Masked must not modify the original")
	}
}

func TestLookupCredential(t *testing.T) {
	for _, key := range []string{"anthropic.api_key", "EXECUTOR.API_KEY", "storage.dsn"} {
		if _, ok := LookupCredential(key); !ok {
			t.Errorf("%s should be a credential", key)
		}
	}
	if _, ok := LookupCredential("server.addr"); ok {
		t.Error("server.addr is not a credential")
	}
}
