package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseYAMLWithDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
zoom_client_type: desktop
transcript_interval: 5
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ZoomClientType != ClientDesktop {
		t.Fatalf("client = %q", cfg.ZoomClientType)
	}
	if cfg.TranscriptInterval != 5 {
		t.Fatalf("transcript_interval = %d", cfg.TranscriptInterval)
	}
	// Untouched keys pick up defaults.
	if cfg.PollInterval != 15 {
		t.Fatalf("poll_interval default = %d, want 15", cfg.PollInterval)
	}
	if cfg.CheckInterval != 30 {
		t.Fatalf("check_interval default = %d, want 30", cfg.CheckInterval)
	}
	if cfg.DisplayName != "Poll Generator" {
		t.Fatalf("display_name default = %q", cfg.DisplayName)
	}
	if got := cfg.TranscriptEvery(); got != 5*time.Minute {
		t.Fatalf("TranscriptEvery = %v", got)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.yaml", `
zoom_client_type: web
transcript_intervall: 5
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("typo key accepted")
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cases := []struct {
		mutate func(*Config)
		want   string
	}{
		{func(c *Config) { c.ZoomClientType = "mobile" }, "zoom_client_type"},
		{func(c *Config) { c.ChatGPTIntegrationMethod = "carrier-pigeon" }, "chatgpt_integration_method"},
		{func(c *Config) { c.TranscriptInterval = 0 }, "transcript_interval"},
		{func(c *Config) { c.PollInterval = -1 }, "poll_interval"},
		{func(c *Config) { c.CheckInterval = 0 }, "check_interval"},
		{func(c *Config) { c.ReschedulePolicy = "whenever" }, "reschedule_policy"},
		{func(c *Config) { c.Retry.BaseDelay = "soon" }, "retry.base_delay"},
		{func(c *Config) { c.CaptureSchedule = "every other tuesday" }, "capture_schedule"},
		{func(c *Config) { c.PostSchedule = "61 * * * *" }, "post_schedule"},
		{func(c *Config) { c.Storage = &StorageConfig{Driver: "postgres"} }, "storage.driver"},
		{func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} }, "storage.path"},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("expected validation error mentioning %q", tc.want)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("error %q does not mention %q", err, tc.want)
		}
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestPromptFallsBackToTemplate(t *testing.T) {
	cfg := Default()
	if !strings.Contains(cfg.Prompt(), "{transcript}") {
		t.Fatalf("default prompt lacks the transcript placeholder")
	}
	cfg.PollGenerationPrompt = "ask about {transcript}"
	if cfg.Prompt() != "ask about {transcript}" {
		t.Fatalf("custom prompt ignored")
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}
	// The strict decoder must accept what we wrote.
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Fatalf("overwrote an existing config")
	}
}

func TestLoadCommitGet(t *testing.T) {
	path := writeFile(t, "config.yaml", `zoom_client_type: web`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatalf("Get() did not return the committed config")
	}
}
