package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/statuslight"
)

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(``))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Device.URL != "http://10.0.0.30" {
		t.Errorf("Device.URL = %q, want %q", cfg.Device.URL, "http://10.0.0.30")
	}
	if cfg.SignalInterval.Duration() != time.Second {
		t.Errorf("SignalInterval = %v, want 1s", cfg.SignalInterval.Duration())
	}
	if cfg.RefreshInterval.Duration() != time.Second {
		t.Errorf("RefreshInterval = %v, want 1s", cfg.RefreshInterval.Duration())
	}
	if cfg.Status.Initial != "Away" {
		t.Errorf("Status.Initial = %q, want %q", cfg.Status.Initial, "Away")
	}
	if cfg.Status.Source.Type != SourcePush {
		t.Errorf("Status.Source.Type = %q, want %q", cfg.Status.Source.Type, SourcePush)
	}
	if cfg.Listen != "" {
		t.Errorf("Listen = %q, want empty", cfg.Listen)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
device:
  url: http://192.168.1.40
  probe_timeout: 2s
  write_timeout: 3s
  channels: {red: "12", yellow: "13"}

signal_interval: 500ms
refresh_interval: 10s
listen: ":9090"

status:
  initial: Available
  source:
    type: http
    url: https://presence.example.com/me
    extractor: json:presence.availability
    timeout: 4s
    headers:
      Authorization: Bearer token123

mapping:
  red: [In a meeting, Presenting]
  off: [Appear away]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Device.URL != "http://192.168.1.40" {
		t.Errorf("Device.URL = %q", cfg.Device.URL)
	}
	if cfg.Device.ProbeTimeout.Duration() != 2*time.Second {
		t.Errorf("Device.ProbeTimeout = %v, want 2s", cfg.Device.ProbeTimeout.Duration())
	}
	if cfg.Device.WriteTimeout.Duration() != 3*time.Second {
		t.Errorf("Device.WriteTimeout = %v, want 3s", cfg.Device.WriteTimeout.Duration())
	}
	if cfg.Device.Channels.Red != "12" || cfg.Device.Channels.Yellow != "13" {
		t.Errorf("Device.Channels = %+v, want 12/13", cfg.Device.Channels)
	}
	if cfg.SignalInterval.Duration() != 500*time.Millisecond {
		t.Errorf("SignalInterval = %v, want 500ms", cfg.SignalInterval.Duration())
	}
	if cfg.RefreshInterval.Duration() != 10*time.Second {
		t.Errorf("RefreshInterval = %v, want 10s", cfg.RefreshInterval.Duration())
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9090")
	}
	if cfg.Status.Initial != "Available" {
		t.Errorf("Status.Initial = %q, want %q", cfg.Status.Initial, "Available")
	}

	src := cfg.Status.Source
	if src.Type != SourceHTTP {
		t.Errorf("Source.Type = %q, want %q", src.Type, SourceHTTP)
	}
	if src.Extractor != "json:presence.availability" {
		t.Errorf("Source.Extractor = %q", src.Extractor)
	}
	if src.Timeout.Duration() != 4*time.Second {
		t.Errorf("Source.Timeout = %v, want 4s", src.Timeout.Duration())
	}
	if src.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Source.Headers[Authorization] = %q", src.Headers["Authorization"])
	}

	if len(cfg.Mapping["red"]) != 2 || len(cfg.Mapping["off"]) != 1 {
		t.Errorf("Mapping = %v", cfg.Mapping)
	}
}

func TestParse_MQTTSource(t *testing.T) {
	yaml := `
status:
  source:
    type: mqtt
    broker: tcp://broker.local:1883
    topic: presence/status
    client_id: desk-light
    username: light
    password: secret
    qos: 1
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	src := cfg.Status.Source
	if src.Broker != "tcp://broker.local:1883" {
		t.Errorf("Broker = %q", src.Broker)
	}
	if src.Topic != "presence/status" {
		t.Errorf("Topic = %q", src.Topic)
	}
	if src.ClientID != "desk-light" || src.Username != "light" || src.Password != "secret" {
		t.Errorf("client settings = %q/%q/%q", src.ClientID, src.Username, src.Password)
	}
	if src.QoS != 1 {
		t.Errorf("QoS = %d, want 1", src.QoS)
	}
}

func TestParse_StaticSource(t *testing.T) {
	yaml := `
status:
  source:
    type: static
    label: Busy
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Status.Source.Label != "Busy" {
		t.Errorf("Source.Label = %q, want %q", cfg.Status.Source.Label, "Busy")
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_LIGHT_HOST", "10.1.2.3")
	t.Setenv("TEST_PRESENCE_TOKEN", "secret123")

	yaml := `
device:
  url: http://${TEST_LIGHT_HOST}
status:
  source:
    type: http
    url: https://${TEST_PRESENCE_HOST:-presence.local}/me
    headers:
      Authorization: Bearer ${TEST_PRESENCE_TOKEN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Device.URL != "http://10.1.2.3" {
		t.Errorf("Device.URL = %q, want %q", cfg.Device.URL, "http://10.1.2.3")
	}
	if cfg.Status.Source.URL != "https://presence.local/me" {
		t.Errorf("Source.URL = %q, want %q", cfg.Status.Source.URL, "https://presence.local/me")
	}
	if cfg.Status.Source.Headers["Authorization"] != "Bearer secret123" {
		t.Errorf("Source.Headers[Authorization] = %q", cfg.Status.Source.Headers["Authorization"])
	}
}

func TestParse_EnvVarInMQTTCredentials(t *testing.T) {
	t.Setenv("TEST_MQTT_USER", "light")
	t.Setenv("TEST_MQTT_PASS", "hunter2")

	yaml := `
status:
  source:
    type: mqtt
    broker: ${TEST_MQTT_BROKER:-tcp://localhost:1883}
    topic: presence
    username: ${TEST_MQTT_USER}
    password: ${TEST_MQTT_PASS}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	src := cfg.Status.Source
	if src.Broker != "tcp://localhost:1883" {
		t.Errorf("Broker = %q, want default", src.Broker)
	}
	if src.Username != "light" || src.Password != "hunter2" {
		t.Errorf("credentials = %q/%q", src.Username, src.Password)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
device:
  url: http://${MISSING_LIGHT_HOST}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "device.url") || !strings.Contains(err.Error(), "MISSING_LIGHT_HOST") {
		t.Errorf("error = %v, want it to name the field and variable", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{
			name:        "device url without scheme",
			yaml:        "device: {url: 10.0.0.30}",
			wantErrLike: "device.url",
		},
		{
			name:        "device url wrong scheme",
			yaml:        "device: {url: ftp://10.0.0.30}",
			wantErrLike: "scheme must be http or https",
		},
		{
			name:        "negative probe timeout",
			yaml:        "device: {probe_timeout: -1s}",
			wantErrLike: "device.probe_timeout",
		},
		{
			name:        "negative write timeout",
			yaml:        "device: {write_timeout: -1s}",
			wantErrLike: "device.write_timeout",
		},
		{
			name:        "same channels",
			yaml:        `device: {channels: {red: "5"}}`,
			wantErrLike: "device.channels",
		},
		{
			name:        "signal interval too short",
			yaml:        "signal_interval: 10ms",
			wantErrLike: "signal_interval must be at least",
		},
		{
			name:        "refresh interval too short",
			yaml:        "refresh_interval: 1ms",
			wantErrLike: "refresh_interval must be at least",
		},
		{
			name:        "listen without port",
			yaml:        "listen: localhost",
			wantErrLike: "listen",
		},
		{
			name:        "unknown source type",
			yaml:        "status: {source: {type: teams}}",
			wantErrLike: "status.source.type",
		},
		{
			name:        "static without label",
			yaml:        "status: {source: {type: static}}",
			wantErrLike: "status.source.label is required",
		},
		{
			name:        "http without url",
			yaml:        "status: {source: {type: http}}",
			wantErrLike: "status.source.url is required",
		},
		{
			name:        "http bad url",
			yaml:        "status: {source: {type: http, url: presence.local}}",
			wantErrLike: "status.source.url",
		},
		{
			name:        "http bad extractor",
			yaml:        "status: {source: {type: http, url: http://presence.local, extractor: xml:status}}",
			wantErrLike: "status.source.extractor",
		},
		{
			name:        "http bad regex",
			yaml:        `status: {source: {type: http, url: http://presence.local, extractor: "regex:("}}`,
			wantErrLike: "status.source.extractor",
		},
		{
			name:        "negative source timeout",
			yaml:        "status: {source: {type: http, url: http://presence.local, timeout: -2s}}",
			wantErrLike: "status.source.timeout",
		},
		{
			name:        "mqtt without broker",
			yaml:        "status: {source: {type: mqtt, topic: presence}}",
			wantErrLike: "status.source.broker is required",
		},
		{
			name:        "mqtt without topic",
			yaml:        "status: {source: {type: mqtt, broker: tcp://localhost:1883}}",
			wantErrLike: "status.source.topic is required",
		},
		{
			name:        "mqtt bad qos",
			yaml:        "status: {source: {type: mqtt, broker: tcp://localhost:1883, topic: p, qos: 3}}",
			wantErrLike: "status.source.qos",
		},
		{
			name:        "unknown mapping category",
			yaml:        "mapping: {blue: [Busy]}",
			wantErrLike: "unknown category",
		},
		{
			name:        "empty mapping label",
			yaml:        `mapping: {red: [""]}`,
			wantErrLike: "empty label",
		},
		{
			name:        "label in two categories",
			yaml:        "mapping: {red: [Busy], off: [Busy]}",
			wantErrLike: "listed under both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("Parse() error = %q, want error containing %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("device: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v, want YAML parse error", err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("signal_interval: soon"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %v, want invalid duration", err)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"signal_interval: 1s", time.Second},
		{"signal_interval: 250ms", 250 * time.Millisecond},
		{"signal_interval: 1m30s", 90 * time.Second},
	}

	for _, tt := range tests {
		cfg, err := Parse([]byte(tt.input))
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tt.input, err)
			continue
		}
		if cfg.SignalInterval.Duration() != tt.want {
			t.Errorf("Parse(%q) SignalInterval = %v, want %v", tt.input, cfg.SignalInterval.Duration(), tt.want)
		}
	}
}

func TestConfig_Overrides(t *testing.T) {
	cfg := &Config{Mapping: map[string][]string{
		"Red":    {" In a meeting "},
		"yellow": {"Lunch"},
		"off":    {"Appear away"},
	}}

	overrides, err := cfg.Overrides()
	if err != nil {
		t.Fatalf("Overrides() error = %v", err)
	}

	want := map[string]statuslight.Category{
		"In a meeting": statuslight.CategoryRed,
		"Lunch":        statuslight.CategoryYellow,
		"Appear away":  statuslight.CategoryOff,
	}
	if len(overrides) != len(want) {
		t.Fatalf("Overrides() = %v, want %v", overrides, want)
	}
	for label, category := range want {
		if overrides[label] != category {
			t.Errorf("Overrides()[%q] = %q, want %q", label, overrides[label], category)
		}
	}
}

func TestConfig_Overrides_Empty(t *testing.T) {
	overrides, err := (&Config{}).Overrides()
	if err != nil {
		t.Fatalf("Overrides() error = %v", err)
	}
	if overrides != nil {
		t.Errorf("Overrides() = %v, want nil", overrides)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statuslight.yaml")
	if err := os.WriteFile(path, []byte("device: {url: http://10.0.0.31}\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.URL != "http://10.0.0.31" {
		t.Errorf("Device.URL = %q, want %q", cfg.Device.URL, "http://10.0.0.31")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %v, want read error", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}
