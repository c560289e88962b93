package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Remote.BaseURL != "https://craig.horse" {
		t.Fatalf("unexpected default base url %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.PollInterval != 2 || cfg.Remote.PollTimeout != 600 {
		t.Fatalf("unexpected polling defaults: %d/%d", cfg.Remote.PollInterval, cfg.Remote.PollTimeout)
	}
	if !cfg.Download.SpaceCheck {
		t.Fatal("expected space check enabled by default")
	}
	if cfg.Transcription.Workers != 1 {
		t.Fatalf("expected sequential transcription by default, got %d workers", cfg.Transcription.Workers)
	}
	if cfg.Transcription.SimilarityThreshold != 0.9 {
		t.Fatalf("unexpected similarity threshold %v", cfg.Transcription.SimilarityThreshold)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Mixdown.Format != "opus" {
		t.Fatalf("unexpected mixdown format %q", cfg.Mixdown.Format)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`output_root = "` + filepath.Join(dir, "out") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[remote]",
		`base_url = "https://example.test/"`,
		"[mixdown]",
		`format = "MP3"`,
		"[transcription]",
		"workers = 4",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Remote.BaseURL != "https://example.test" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Remote.BaseURL)
	}
	if cfg.Mixdown.Format != "mp3" {
		t.Fatalf("format not lowercased: %q", cfg.Mixdown.Format)
	}
	if cfg.Transcription.Workers != 4 {
		t.Fatalf("workers = %d, want 4", cfg.Transcription.Workers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mixdown format", func(c *Config) { c.Mixdown.Format = "wav" }},
		{"bad device", func(c *Config) { c.Transcription.Device = "tpu" }},
		{"bad threshold", func(c *Config) { c.Transcription.SimilarityThreshold = 1.5 }},
		{"bad webhook", func(c *Config) { c.Notifications.Webhooks = []string{"not a url"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"poll timeout below interval", func(c *Config) {
			c.Remote.PollInterval = 10
			c.Remote.PollTimeout = 5
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize: %v", err)
			}
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[remote]") {
		t.Fatal("sample config missing [remote] section")
	}
}
