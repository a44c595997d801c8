package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/armtask/internal/config"
)

var (
	initForce   bool
	initStorage string
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an armtask project",
	Long: `Initialize a directory for use with armtask.

This command:
  - Checks for an Anthropic API key
  - Creates the .armtask directory structure (logs, signals)
  - Writes a .armtask.yaml project config with the defaults
  - Adds .armtask/ and .env to .gitignore if one exists

The directory argument is optional and defaults to the current directory.

Examples:
  armtask init                   # Initialize current directory
  armtask init ./lab             # Initialize specific directory
  armtask init --storage sqlite  # Persist tasks in .armtask/tasks.db
  armtask init --force           # Overwrite an existing .armtask.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .armtask.yaml")
	initCmd.Flags().StringVar(&initStorage, "storage", "", "Storage driver for the project (memory, sqlite, sqlite3, postgres)")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initializing armtask in %s...\n\n", absPath)

	key, keyErr := config.GetAPIKey(nil)
	switch {
	case keyErr != nil:
		printStatus(out, "⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	case config.ValidateAPIKey(key) != nil:
		printStatus(out, "⚠", "ANTHROPIC_API_KEY is set but looks malformed", color.FgYellow)
	default:
		printStatus(out, "✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	for _, dir := range []string{"logs", "signals"} {
		if err := os.MkdirAll(filepath.Join(absPath, ".armtask", dir), 0755); err != nil {
			return fmt.Errorf("creating .armtask/%s directory: %w", dir, err)
		}
	}
	printStatus(out, "✓", "Created .armtask directory structure", color.FgGreen)

	configFile := filepath.Join(absPath, config.ProjectConfigName)
	if _, err := os.Stat(configFile); err == nil && !initForce {
		printStatus(out, "•", config.ProjectConfigName+" already exists (use --force to overwrite)", color.FgCyan)
	} else {
		if err := writeProjectConfig(configFile, initStorage); err != nil {
			return err
		}
		printStatus(out, "✓", "Wrote "+config.ProjectConfigName, color.FgGreen)
	}

	gitignore := filepath.Join(absPath, ".gitignore")
	if _, err := os.Stat(gitignore); err == nil {
		added, err := updateGitignore(gitignore)
		if err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		if added {
			printStatus(out, "✓", "Updated .gitignore", color.FgGreen)
		}
	}

	fmt.Fprintf(out, "\n%s armtask initialization complete!\n\n", color.GreenString("✓"))
	fmt.Fprintln(out, "Next steps:")
	if keyErr != nil {
		fmt.Fprintln(out, "  1. Set your API key (or put it in .env):")
		fmt.Fprintln(out, "     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "  2. Start the server:")
	fmt.Fprintln(out, "     armtask serve")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  3. Open http://localhost:8080 or run: armtask tui")
	return nil
}

// writeProjectConfig writes the defaults, without secrets, to path.
func writeProjectConfig(path, storage string) error {
	cfg := config.Default()
	if storage != "" {
		cfg.Storage.Driver = storage
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding project config: %w", err)
	}
	header := "# armtask project configuration.\n" +
		"# Secrets belong in the environment or .env, e.g. ANTHROPIC_API_KEY.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

var gitignoreEntries = []string{".armtask/", ".env"}

// updateGitignore appends missing entries and reports whether it changed the file.
func updateGitignore(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	existing := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		existing[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, e := range gitignoreEntries {
		if !existing[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	var b strings.Builder
	b.Write(content)
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n# armtask\n")
	for _, e := range missing {
		b.WriteString(e + "\n")
	}
	return true, os.WriteFile(path, []byte(b.String()), 0644)
}

// printStatus prints a status line with colored symbol
func printStatus(w io.Writer, symbol, message string, c color.Attribute) {
	colored := color.New(c).SprintFunc()
	fmt.Fprintf(w, "%s %s\n", colored(symbol), message)
}
