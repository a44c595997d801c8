package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/armtask/internal/client"
	"github.com/ShayCichocki/armtask/internal/config"
	"github.com/ShayCichocki/armtask/internal/logging"
)

var (
	configPath string
	serverURL  string
	logLevel   string

	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "armtask",
	Short: "Chat-driven task manager for a robotic arm",
	Long: `armtask turns natural language instructions into saved, repeatable
tasks for a robotic arm.

Run "armtask serve" to start the API and browser UI, then open the server URL
or use "armtask tui" for the terminal client.

Configuration is read from ~/.config/armtask/config.yaml, a project
.armtask.yaml, a .env file and ARMTASK_* environment variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user and project config)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL for client commands (default: server.url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(haltCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads .env, the configuration and the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	opts := logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Path:   cfg.Log.Path,
	}
	if logLevel != "" {
		opts.Level = logLevel
	}
	logger, logCloser, err = logging.New(opts)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	return nil
}

// newAPIClient returns a client for the configured server.
func newAPIClient() *client.HTTPClient {
	url := serverURL
	if url == "" {
		url = cfg.Server.URL
	}
	return client.NewHTTPClient(url)
}
