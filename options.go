package statuslight

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// lightConfig holds mutable state during Light construction.
type lightConfig struct {
	deviceURL       string
	probeTimeout    time.Duration
	writeTimeout    time.Duration
	redChannel      string
	yellowChannel   string
	signalInterval  time.Duration
	refreshInterval time.Duration
	source          StatusSource
	initialStatus   string
	overrides       map[string]Category
	listenAddr      string
	logger          *slog.Logger
	syncCallbacks   []func(SyncResult)
}

// Option is a function that configures a [Light] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*lightConfig) error

// WithDeviceURL sets the device's base URL. Defaults to http://10.0.0.30.
//
// Returns an error if the URL has no http/https scheme or no host.
func WithDeviceURL(rawURL string) Option {
	return func(cfg *lightConfig) error {
		parsed, err := url.Parse(strings.TrimSpace(rawURL))
		if err != nil {
			return fmt.Errorf("invalid device URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("device URL must have a scheme (http:// or https://)")
		}
		if parsed.Host == "" {
			return errors.New("device URL must have a host")
		}
		cfg.deviceURL = rawURL
		return nil
	}
}

// WithProbeTimeout bounds the liveness probe. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithProbeTimeout(d time.Duration) Option {
	return func(cfg *lightConfig) error {
		if d <= 0 {
			return errors.New("probe timeout must be positive")
		}
		cfg.probeTimeout = d
		return nil
	}
}

// WithWriteTimeout bounds each channel write. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *lightConfig) error {
		if d <= 0 {
			return errors.New("write timeout must be positive")
		}
		cfg.writeTimeout = d
		return nil
	}
}

// WithChannels sets the device-side ids of the red and yellow channels.
// Defaults to "4" and "5".
func WithChannels(red, yellow string) Option {
	return func(cfg *lightConfig) error {
		red, yellow = strings.TrimSpace(red), strings.TrimSpace(yellow)
		if red == "" || yellow == "" {
			return errors.New("channel ids cannot be empty")
		}
		if red == yellow {
			return fmt.Errorf("red and yellow channels must differ, both are %q", red)
		}
		cfg.redChannel = red
		cfg.yellowChannel = yellow
		return nil
	}
}

// WithSignalInterval sets how often the device is probed and written.
// Defaults to 1 second.
//
// Returns an error if the duration is zero or negative.
func WithSignalInterval(d time.Duration) Option {
	return func(cfg *lightConfig) error {
		if d <= 0 {
			return errors.New("signal interval must be positive")
		}
		cfg.signalInterval = d
		return nil
	}
}

// WithRefreshInterval sets how often the status source is read.
// Defaults to 1 second.
//
// Returns an error if the duration is zero or negative.
func WithRefreshInterval(d time.Duration) Option {
	return func(cfg *lightConfig) error {
		if d <= 0 {
			return errors.New("refresh interval must be positive")
		}
		cfg.refreshInterval = d
		return nil
	}
}

// WithStatusSource sets where the presence label is read from.
//
// Without a source the label only changes through [Light.SetStatus] or the
// HTTP API.
//
// Example:
//
//	src, err := statuslight.HTTPStatusSource("http://presence.local/me",
//	    statuslight.WithLabelExtractor(statuslight.JSONField("availability")),
//	)
//	light, err := statuslight.New(statuslight.WithStatusSource(src))
//
// Returns an error if the source is nil.
func WithStatusSource(src StatusSource) Option {
	return func(cfg *lightConfig) error {
		if src == nil {
			return errors.New("status source cannot be nil")
		}
		cfg.source = src
		return nil
	}
}

// WithInitialStatus sets the label the light starts with, before the first
// refresh. Defaults to "Away".
func WithInitialStatus(label string) Option {
	return func(cfg *lightConfig) error {
		cfg.initialStatus = label
		return nil
	}
}

// WithOverrides reassigns labels to signal categories, consulted before the
// fixed status table. It is the only way to give a signal to a label the
// table does not know.
//
// Example:
//
//	statuslight.WithOverrides(map[string]statuslight.Category{
//	    "In a meeting": statuslight.CategoryRed,
//	    "Appear away":  statuslight.CategoryOff,
//	})
//
// Returns an error if any category is unknown.
func WithOverrides(overrides map[string]Category) Option {
	return func(cfg *lightConfig) error {
		for label, category := range overrides {
			if !category.Valid() {
				return fmt.Errorf("override for %q: unknown category %q", label, category)
			}
		}
		if cfg.overrides == nil {
			cfg.overrides = make(map[string]Category, len(overrides))
		}
		for label, category := range overrides {
			cfg.overrides[label] = category
		}
		return nil
	}
}

// WithListenAddr enables the HTTP API on addr, e.g. ":8080".
func WithListenAddr(addr string) Option {
	return func(cfg *lightConfig) error {
		if strings.TrimSpace(addr) == "" {
			return errors.New("listen address cannot be empty")
		}
		cfg.listenAddr = addr
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Light.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *lightConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSyncCallback registers a function called after every tick of either
// task.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks are invoked synchronously from a single goroutine and must not
// block. Panics within callbacks are recovered and logged.
//
// Example:
//
//	statuslight.WithSyncCallback(func(r statuslight.SyncResult) {
//	    if r.Task == statuslight.TaskSync && !r.Alive {
//	        log.Printf("light at %s is offline", r.BaseURL)
//	    }
//	})
//
// Nil callbacks are silently ignored.
func WithSyncCallback(cb func(SyncResult)) Option {
	return func(cfg *lightConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.syncCallbacks = append(cfg.syncCallbacks, cb)
		return nil
	}
}
