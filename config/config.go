// Package config provides YAML configuration parsing for statuslight.
//
// This package enables running statuslight as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	device:
//	  url: http://10.0.0.30
//	  probe_timeout: 5s
//	  write_timeout: 5s
//	  channels: {red: "4", yellow: "5"}
//
//	signal_interval: 1s
//	refresh_interval: 1s
//	listen: ":8080"
//
//	status:
//	  initial: Away
//	  source:
//	    type: http
//	    url: ${PRESENCE_URL:-http://localhost:9000/presence}
//	    extractor: json:availability
//
//	mapping:
//	  red: [In a meeting]
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/statuslight"
)

// minInterval is the shortest allowed tick period for either task.
const minInterval = 100 * time.Millisecond

// Source types accepted in status.source.type.
const (
	SourcePush   = "push"
	SourceStatic = "static"
	SourceHTTP   = "http"
	SourceMQTT   = "mqtt"
)

// Config is the root configuration structure for statuslight.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Device describes the signal light.
	Device DeviceConfig `yaml:"device"`

	// SignalInterval is the period of the sync task. Defaults to 1s.
	SignalInterval Duration `yaml:"signal_interval"`

	// RefreshInterval is the period of the refresh task. Defaults to 1s.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// Listen is the HTTP API address, e.g. ":8080". Empty disables the API.
	Listen string `yaml:"listen"`

	// Status configures the initial label and where labels come from.
	Status StatusConfig `yaml:"status"`

	// Mapping overrides the built-in label table. Keys are categories
	// (red, yellow, off); values are the labels assigned to them.
	Mapping map[string][]string `yaml:"mapping"`
}

// DeviceConfig describes how to reach the device.
type DeviceConfig struct {
	// URL is the device base URL. Defaults to http://10.0.0.30.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// ProbeTimeout bounds the liveness probe. Defaults to 5s.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// WriteTimeout bounds each channel write. Defaults to 5s.
	WriteTimeout Duration `yaml:"write_timeout"`

	Channels ChannelsConfig `yaml:"channels"`
}

// ChannelsConfig holds the device-side channel ids. Defaults are "4" and "5".
type ChannelsConfig struct {
	Red    string `yaml:"red"`
	Yellow string `yaml:"yellow"`
}

// StatusConfig configures the presence label.
type StatusConfig struct {
	// Initial is the label before any source reports. Defaults to "Away".
	Initial string `yaml:"initial"`

	Source SourceConfig `yaml:"source"`
}

// SourceConfig selects and configures the status source.
type SourceConfig struct {
	// Type is one of push, static, http, mqtt. Defaults to push.
	Type string `yaml:"type"`

	// Label is the fixed label for type static.
	Label string `yaml:"label"`

	// URL is polled for type http. Supports environment variable substitution.
	URL string `yaml:"url"`

	// Extractor turns a response body or message payload into a label:
	// "default", "text", "json:path" or "regex:pattern".
	Extractor string `yaml:"extractor"`

	// Timeout bounds each HTTP request, or the broker connect for mqtt.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with each HTTP request. Values support environment
	// variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Broker is the MQTT broker URL, e.g. tcp://localhost:1883.
	Broker string `yaml:"broker"`

	// Topic is the MQTT topic carrying the label.
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the device URL, source URL, header
// values, broker and MQTT credentials. Defaults are applied for the device
// URL, both intervals, the initial status and the source type. Timeouts and
// channel ids left empty take the SDK defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Device.URL == "" {
		cfg.Device.URL = statuslight.DefaultDeviceURL
	}
	if cfg.SignalInterval == 0 {
		cfg.SignalInterval = Duration(time.Second)
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = Duration(time.Second)
	}
	if cfg.Status.Initial == "" {
		cfg.Status.Initial = statuslight.DefaultInitialStatus
	}
	if cfg.Status.Source.Type == "" {
		cfg.Status.Source.Type = SourcePush
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if err := c.Device.expandAndValidate(); err != nil {
		return err
	}

	if c.SignalInterval.Duration() < minInterval {
		return fmt.Errorf("signal_interval must be at least %s, got %s", minInterval, c.SignalInterval.Duration())
	}
	if c.RefreshInterval.Duration() < minInterval {
		return fmt.Errorf("refresh_interval must be at least %s, got %s", minInterval, c.RefreshInterval.Duration())
	}

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("listen: invalid address %q: %w", c.Listen, err)
		}
	}

	if err := c.Status.Source.expandAndValidate(); err != nil {
		return err
	}

	if _, err := c.Overrides(); err != nil {
		return err
	}

	return nil
}

func (d *DeviceConfig) expandAndValidate() error {
	expanded, err := expandEnvVars(d.URL)
	if err != nil {
		return fmt.Errorf("device.url: %w", err)
	}
	d.URL = expanded

	if err := validateHTTPURL(d.URL); err != nil {
		return fmt.Errorf("device.url: %w", err)
	}

	if d.ProbeTimeout.Duration() < 0 {
		return fmt.Errorf("device.probe_timeout cannot be negative, got %s", d.ProbeTimeout.Duration())
	}
	if d.WriteTimeout.Duration() < 0 {
		return fmt.Errorf("device.write_timeout cannot be negative, got %s", d.WriteTimeout.Duration())
	}

	// channel ids only need to differ once both are resolved
	red, yellow := d.Channels.resolved()
	if red == yellow {
		return fmt.Errorf("device.channels: red and yellow must differ, both are %q", red)
	}
	return nil
}

// resolved returns the channel ids with unset ones replaced by the
// device defaults.
func (c ChannelsConfig) resolved() (red, yellow string) {
	red, yellow = c.Red, c.Yellow
	if red == "" {
		red = statuslight.DefaultRedChannel
	}
	if yellow == "" {
		yellow = statuslight.DefaultYellowChannel
	}
	return red, yellow
}

func (s *SourceConfig) expandAndValidate() error {
	if s.Timeout.Duration() < 0 {
		return fmt.Errorf("status.source.timeout cannot be negative, got %s", s.Timeout.Duration())
	}

	switch s.Type {
	case SourcePush:
		return nil

	case SourceStatic:
		if strings.TrimSpace(s.Label) == "" {
			return errors.New("status.source.label is required for type static")
		}
		return nil

	case SourceHTTP:
		if s.URL == "" {
			return errors.New("status.source.url is required for type http")
		}
		expanded, err := expandEnvVars(s.URL)
		if err != nil {
			return fmt.Errorf("status.source.url: %w", err)
		}
		s.URL = expanded
		if err := validateHTTPURL(s.URL); err != nil {
			return fmt.Errorf("status.source.url: %w", err)
		}

		for k, v := range s.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("status.source.headers[%s]: %w", k, err)
			}
			s.Headers[k] = expanded
		}

	case SourceMQTT:
		for _, field := range []struct {
			name  string
			value *string
		}{
			{"broker", &s.Broker},
			{"username", &s.Username},
			{"password", &s.Password},
		} {
			expanded, err := expandEnvVars(*field.value)
			if err != nil {
				return fmt.Errorf("status.source.%s: %w", field.name, err)
			}
			*field.value = expanded
		}

		if s.Broker == "" {
			return errors.New("status.source.broker is required for type mqtt")
		}
		if s.Topic == "" {
			return errors.New("status.source.topic is required for type mqtt")
		}
		if s.QoS < 0 || s.QoS > 2 {
			return fmt.Errorf("status.source.qos must be 0, 1 or 2, got %d", s.QoS)
		}

	default:
		return fmt.Errorf("status.source.type must be push, static, http or mqtt, got %q", s.Type)
	}

	if _, err := statuslight.ParseLabelExtractor(s.Extractor); err != nil {
		return fmt.Errorf("status.source.extractor: %w", err)
	}
	return nil
}

// Overrides turns the mapping section into label overrides.
//
// A label listed under two categories is an error.
func (c *Config) Overrides() (map[string]statuslight.Category, error) {
	if len(c.Mapping) == 0 {
		return nil, nil
	}

	overrides := make(map[string]statuslight.Category)
	for name, labels := range c.Mapping {
		category, err := statuslight.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("mapping: %w", err)
		}
		for _, label := range labels {
			label = strings.TrimSpace(label)
			if label == "" {
				return nil, fmt.Errorf("mapping.%s: empty label", name)
			}
			if prev, exists := overrides[label]; exists && prev != category {
				return nil, fmt.Errorf("mapping: label %q is listed under both %s and %s", label, prev, category)
			}
			overrides[label] = category
		}
	}
	return overrides, nil
}

// validateHTTPURL requires an absolute http or https URL with a host.
func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
