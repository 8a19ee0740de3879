package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/statuslight"
	"github.com/jpalmerr/statuslight/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newRunCmd keeps the light in sync until interrupted.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the light in sync with the status",
		Long: `Run statuslight from a configuration file.

It will:
  - Load configuration from the specified YAML file
  - Connect the configured status source (push, static, http or mqtt)
  - Probe the light and write the mapped signal on every signal tick
  - Serve the HTTP API and /metrics if "listen" is set

It runs until interrupted (Ctrl+C) or it receives SIGTERM.

Example:
  statuslight run -c statuslight.yaml
  statuslight run --config /etc/statuslight/config.yaml --log-level debug`,
		RunE: runRun,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"device", cfg.Device.URL,
		"source", cfg.Status.Source.Type,
		"listen", cfg.Listen,
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}

	src, closeSource, err := config.BuildSource(cfg.Status.Source, logger)
	if err != nil {
		return fmt.Errorf("failed to create status source: %w", err)
	}
	defer closeSource()

	opts = append(opts, statuslight.WithLogger(logger))
	if src != nil {
		opts = append(opts, statuslight.WithStatusSource(src))
	}

	light, err := statuslight.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create light: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runUntilDone(ctx, light, logger)
}

// starter is the part of *statuslight.Light that runUntilDone needs.
type starter interface {
	Start(ctx context.Context) error
}

// runUntilDone starts the light and waits for it to finish, giving it
// shutdownTimeout to drain after ctx is cancelled.
func runUntilDone(ctx context.Context, light starter, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- light.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("statuslight error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("statuslight error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
