package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemfetch/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromOptionsWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFromOptions("debug", "console", dir)
	if err != nil {
		t.Fatalf("NewFromOptions: %v", err)
	}
	logger.Info("hello", String("key", "value"))

	data, err := os.ReadFile(filepath.Join(dir, "stemfetch.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "key=value") {
		t.Fatalf("log file missing expected content: %q", string(data))
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithRecordingID(context.Background(), "abc123DEF456")
	ctx = services.WithStage(ctx, "download")

	fields := ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	if !keys[FieldRecordingID] || !keys[FieldStage] {
		t.Fatalf("missing context fields, got %v", keys)
	}
}

func TestWithContextNilLogger(t *testing.T) {
	if got := WithContext(context.Background(), nil); got == nil {
		t.Fatal("expected non-nil logger")
	}
}
