package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// executeCmd runs the root command with the given args and returns captured
// stdout and any error.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// writeConfig writes content to a temp config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "statuslight.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}

func TestRunValidate_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
device:
  url: http://10.0.0.30
  channels: {red: "4", yellow: "5"}
signal_interval: 2s
listen: ":8080"
status:
  initial: Available
  source:
    type: http
    url: https://presence.example.com/me
    extractor: json:availability
mapping:
  red: [In a meeting]
`)

	output, err := executeCmd(t, "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"http://10.0.0.30 (red=4, yellow=5)",
		"Signal interval:  2s",
		"Refresh interval: 1s",
		"http https://presence.example.com/me",
		"Initial status:   Available",
		"HTTP API:         :8080",
		"built-in + overrides (red=1)",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\ngot:\n%s", phrase, output)
		}
	}
}

func TestRunValidate_MinimalConfig(t *testing.T) {
	configPath := writeConfig(t, "status: {initial: Busy}\n")

	output, err := executeCmd(t, "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	for _, phrase := range []string{"push (PUT /api/status)", "HTTP API:         disabled", "Mapping:          built-in"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\ngot:\n%s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `
status:
  source:
    type: mqtt
    broker: tcp://localhost:1883
`)

	_, err := executeCmd(t, "validate", "-c", configPath)
	if err == nil {
		t.Fatal("validate command expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid config") || !strings.Contains(err.Error(), "status.source.topic") {
		t.Errorf("error = %v, want invalid config naming the field", err)
	}
}

func TestRunValidate_FileNotFound(t *testing.T) {
	_, err := executeCmd(t, "validate", "-c", "/nonexistent/path/statuslight.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %v, want read error", err)
	}
}

func TestRunValidate_RequiresConfigFlag(t *testing.T) {
	if _, err := executeCmd(t, "validate"); err == nil {
		t.Error("validate without -c expected error, got nil")
	}
}

func TestVersionCmd(t *testing.T) {
	output, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(output, "statuslight dev") {
		t.Errorf("output = %q, want version line", output)
	}
}
