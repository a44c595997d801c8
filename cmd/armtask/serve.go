package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/armtask/internal/api"
	"github.com/ShayCichocki/armtask/internal/config"
	"github.com/ShayCichocki/armtask/internal/dispatch"
	"github.com/ShayCichocki/armtask/internal/server"
	"github.com/ShayCichocki/armtask/internal/state"
	"github.com/ShayCichocki/armtask/internal/tasks"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and browser UI",
	Long: `Start the HTTP server.

The server exposes the chat, task and execution endpoints and serves the
browser UI at /. It shuts down gracefully on SIGINT or SIGTERM.

Examples:
  armtask serve
  armtask serve --addr :9090
  ARMTASK_STORAGE_DRIVER=sqlite armtask serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiClient, err := newLLMClient(cfg)
	if err != nil {
		return err
	}
	gateway := api.NewGateway(api.GatewayConfig{
		Client: apiClient,
		Prompt: cfg.Anthropic.Prompt,
		Logger: logger.WithField("component", "gateway"),
	})

	dsn, _ := config.StorageDSN.Resolve(cfg)
	store, err := state.OpenStore(ctx, state.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    dsn,
	})
	if err != nil {
		return fmt.Errorf("opening task store: %w", err)
	}
	defer store.Close()
	storageDriver, storagePath := state.Describe(store)

	executorKey, _ := config.ExecutorKey.Resolve(cfg)
	backend, err := dispatch.NewBackend(dispatch.BackendOptions{
		Name:     cfg.Executor.Backend,
		Delay:    cfg.Executor.Delay,
		Endpoint: cfg.Executor.Endpoint,
		APIKey:   executorKey,
		Timeout:  cfg.Executor.Timeout,
	})
	if err != nil {
		return err
	}

	halt, err := dispatch.NewHaltSwitch(cfg.Executor.SignalsDir, logger.WithField("component", "halt"))
	if err != nil {
		return err
	}
	defer halt.Close()

	svc := tasks.NewService(store)
	dispatcher := dispatch.New(dispatch.Config{
		Tasks:   svc,
		Backend: backend,
		Halt:    halt,
		Logger:  logger.WithField("component", "dispatch"),
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(server.Config{
		Addr:        addr,
		CORSOrigins: cfg.Server.CORSOrigins,
		Gateway:     gateway,
		Tasks:       svc,
		Dispatcher:  dispatcher,
		Usage:       apiClient.Tracker().Snapshot,
		StorageName: storageDriver,
		Logger:      logger.WithField("component", "server"),
	})

	fields := logrus.Fields{
		"addr":    addr,
		"model":   apiClient.Model(),
		"bedrock": apiClient.IsBedrock(),
		"storage": storageDriver,
		"backend": backend.Name(),
	}
	if storagePath != "" {
		fields["db"] = storagePath
	}
	logger.WithFields(fields).Info("starting armtask")

	return srv.ListenAndServe(ctx)
}

// newLLMClient builds the Anthropic client. Direct API access needs a key
// from the environment or config; Bedrock uses AWS credentials instead.
func newLLMClient(cfg *config.Config) (*api.Client, error) {
	cc := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		BaseURL:       cfg.Anthropic.BaseURL,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		Temperature:   cfg.Anthropic.Temperature,
		Timeout:       cfg.Anthropic.Timeout,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}

	if !cc.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api_key", err)
		}
		if err := config.ValidateAPIKey(key); err != nil {
			logger.WithError(err).Warn("API key looks malformed")
		}
		cc.APIKey = key
	}

	c, err := api.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("creating Anthropic client: %w", err)
	}
	return c, nil
}
