package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jpalmerr/statuslight"
	"github.com/spf13/cobra"
)

// newSendCmd runs one sync tick for a given status.
func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Show a status on the light once",
		Long: `Probe the light and, if it answers, write the signal for the given status.

The status goes through the same mapping as in "run", including the
config file's mapping overrides when -c is used. A status without a
signal writes nothing and fails.

Example:
  statuslight send --url http://10.0.0.30 --status Busy
  statuslight send -c statuslight.yaml --status "Be right back"`,
		RunE: runSend,
	}

	addDeviceFlags(cmd)
	cmd.Flags().String("status", "", "presence status to show (required)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	status, _ := cmd.Flags().GetString("status")
	status = strings.TrimSpace(status)
	if status == "" {
		return errors.New("--status must not be empty")
	}

	light, err := lightFromFlags(cmd, logger, statuslight.WithInitialStatus(status))
	if err != nil {
		return err
	}

	result := light.SyncOnce(cmd.Context())

	switch {
	case !result.Alive:
		return fmt.Errorf("%s is OFFLINE: %w", result.BaseURL, result.Error)
	case !result.Mapped:
		return fmt.Errorf("status %q has no signal (known: %s)", status, strings.Join(statuslight.KnownStatuses(), ", "))
	case result.Error != nil:
		return fmt.Errorf("failed to write signal: %w", result.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status, result.State)
	return nil
}
