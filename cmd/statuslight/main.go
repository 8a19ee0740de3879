// Package main is the entry point for the statuslight CLI.
//
// statuslight can be used as a library (SDK) or run as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	statuslight run -c config.yaml              # Keep the light in sync
//	statuslight validate -c config.yaml         # Validate configuration
//	statuslight probe --url http://10.0.0.30    # Check the device answers
//	statuslight send --url http://10.0.0.30 --status Busy
//	statuslight version                         # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd builds the command tree. It is rebuilt per invocation so flag
// state never leaks between runs.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "statuslight",
		Short: "Drive a red/yellow signal light from a presence status",
		Long: `statuslight keeps a two-channel signal light in step with a presence
status such as "Busy" or "Away".

Two periodic tasks run side by side: one reads the status from a source
(HTTP endpoint, MQTT topic, fixed label, or pushed over the HTTP API), the
other probes the light and writes the mapped signal:

  Busy, Do not disturb                red on,  yellow off
  Away, Appear away, Be right back    red off, yellow on
  Available                           both off

Quick start:
  1. Create a config file (statuslight.yaml)
  2. Run: statuslight run -c statuslight.yaml

Example config:
  device:
    url: http://10.0.0.30
  status:
    source:
      type: http
      url: http://localhost:9000/presence
      extractor: json:availability`,
		SilenceUsage: true,
		// No Run/RunE means this just shows help when called without subcommands
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newProbeCmd(),
		newSendCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

// newVersionCmd prints version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this statuslight binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "statuslight %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// newLogger creates a JSON logger on stderr at the level named by the
// --log-level flag.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", name, err)
	}

	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})), nil
}
