package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/statuslight"
	"github.com/jpalmerr/statuslight/config"
	"github.com/spf13/cobra"
)

// addDeviceFlags registers the flags shared by the one-shot device commands.
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file")
	cmd.Flags().String("url", "", "device base URL, e.g. http://10.0.0.30")
	cmd.MarkFlagsMutuallyExclusive("config", "url")
	cmd.MarkFlagsOneRequired("config", "url")
}

// lightFromFlags builds a Light from either --config or --url. The status
// source is never started; one-shot commands only use the device settings.
func lightFromFlags(cmd *cobra.Command, logger *slog.Logger, extra ...statuslight.Option) (*statuslight.Light, error) {
	configFile, _ := cmd.Flags().GetString("config")
	deviceURL, _ := cmd.Flags().GetString("url")

	var opts []statuslight.Option
	switch {
	case configFile != "":
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		opts, err = config.BuildOptions(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build options: %w", err)
		}
	case deviceURL != "":
		opts = append(opts, statuslight.WithDeviceURL(deviceURL))
	default:
		return nil, errors.New("either --config or --url is required")
	}

	opts = append(opts, statuslight.WithLogger(logger))
	opts = append(opts, extra...)

	light, err := statuslight.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create light: %w", err)
	}
	return light, nil
}
