package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/armtask/internal/config"
)

var configProject bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify armtask configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/armtask/config.yaml
Project-specific overrides can be placed in .armtask.yaml (use --project).
Secrets are always shown masked.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return displayAllConfig(out, cfg)
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			path := config.GetUserConfigPath()
			if configProject {
				path = config.ProjectConfigName
			}
			if err := config.SetValue(path, strings.ToLower(args[0]), args[1]); err != nil {
				return err
			}
			display := args[1]
			if cred, ok := config.LookupCredential(args[0]); ok {
				display = cred.Mask(args[1])
			}
			fmt.Fprintf(out, "Set %s = %s (%s)\n", args[0], display, path)
			return nil
		}
	},
}

func init() {
	configCmd.Flags().BoolVar(&configProject, "project", false, "Write to .armtask.yaml in the current directory")
}

// displayAllConfig prints the effective configuration as YAML.
func displayAllConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(config.Masked(cfg))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	for _, cred := range config.Credentials {
		_, source := cred.Resolve(cfg)
		fmt.Fprintf(w, "# %s source: %s\n", cred.Key, source)
	}
	_, err = w.Write(data)
	return err
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	data, err := yaml.Marshal(config.Masked(cfg))
	if err != nil {
		return "", err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return "", err
	}

	key = strings.ToLower(key)
	var node any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return "", fmt.Errorf("unknown configuration key: %s", key)
		}
		if node, ok = m[part]; !ok {
			// Empty optional values are omitted from the encoding.
			if config.IsKnownKey(key) {
				return "", nil
			}
			return "", fmt.Errorf("unknown configuration key: %s", key)
		}
	}

	switch v := node.(type) {
	case map[string]any:
		return "", fmt.Errorf("%s is a section, not a key", key)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ","), nil
	default:
		return fmt.Sprint(v), nil
	}
}
