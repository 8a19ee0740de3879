package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jpalmerr/statuslight/config"
	"github.com/spf13/cobra"
)

// newValidateCmd validates a config file without touching the device.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a statuslight configuration file without contacting the light.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  statuslight validate -c statuslight.yaml`,
		RunE: runValidate,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	red, yellow := cfg.Device.Channels.Red, cfg.Device.Channels.Yellow
	if red == "" {
		red = "4"
	}
	if yellow == "" {
		yellow = "5"
	}

	listen := cfg.Listen
	if listen == "" {
		listen = "disabled"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Device:           %s (red=%s, yellow=%s)\n", cfg.Device.URL, red, yellow)
	fmt.Fprintf(out, "  Signal interval:  %s\n", cfg.SignalInterval.Duration())
	fmt.Fprintf(out, "  Refresh interval: %s\n", cfg.RefreshInterval.Duration())
	fmt.Fprintf(out, "  Status source:    %s\n", describeSource(cfg.Status.Source))
	fmt.Fprintf(out, "  Initial status:   %s\n", cfg.Status.Initial)
	fmt.Fprintf(out, "  HTTP API:         %s\n", listen)
	fmt.Fprintf(out, "  Mapping:          %s\n", describeMapping(cfg.Mapping))

	return nil
}

func describeSource(sc config.SourceConfig) string {
	switch sc.Type {
	case config.SourceStatic:
		return fmt.Sprintf("static (%q)", sc.Label)
	case config.SourceHTTP:
		return "http " + sc.URL
	case config.SourceMQTT:
		return fmt.Sprintf("mqtt %s topic %s", sc.Broker, sc.Topic)
	default:
		return "push (PUT /api/status)"
	}
}

func describeMapping(mapping map[string][]string) string {
	if len(mapping) == 0 {
		return "built-in"
	}

	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, len(mapping[name])))
	}
	return "built-in + overrides (" + strings.Join(parts, ", ") + ")"
}
