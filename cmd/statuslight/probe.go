package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newProbeCmd checks once whether the light answers.
func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check whether the light is reachable",
		Long: `Send a single liveness probe (GET /) to the light and report the result.
Nothing is written to the light.

Exit codes:
  0 - The light answered
  1 - The light is offline or the settings are invalid

Example:
  statuslight probe --url http://10.0.0.30
  statuslight probe -c statuslight.yaml`,
		RunE: runProbe,
	}

	addDeviceFlags(cmd)
	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	light, err := lightFromFlags(cmd, logger)
	if err != nil {
		return err
	}

	result, err := light.Probe(cmd.Context())
	if err != nil {
		return err
	}

	if !result.Alive {
		return fmt.Errorf("%s is OFFLINE: %w", light.DeviceURL(), result.Err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is ONLINE (HTTP %d in %s)\n",
		light.DeviceURL(), result.StatusCode, result.Latency.Round(time.Millisecond))
	return nil
}
