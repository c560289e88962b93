package transcript

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemfetch/internal/services"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantOK    bool
		wantStart float64
		wantText  string
	}{
		{"simple", "[0:00:05] hello there", true, 5, "hello there"},
		{"hours", "[1:02:03] deep in", true, 3723, "deep in"},
		{"fractional seconds", "[0:00:01.5] quick", true, 1.5, "quick"},
		{"no timestamp", "just words", true, 0, "just words"},
		{"blank", "   ", false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, ok := ParseLine(tt.line, "alice")
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if seg.Start != tt.wantStart {
				t.Fatalf("start = %v, want %v", seg.Start, tt.wantStart)
			}
			if seg.Text != tt.wantText {
				t.Fatalf("text = %q, want %q", seg.Text, tt.wantText)
			}
			if seg.Speaker != "alice" {
				t.Fatalf("speaker = %q", seg.Speaker)
			}
		})
	}
}

func TestMergeOrdersAcrossTracks(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, Speaker: "alice", Text: "hello"},
		{Start: 5.0, Speaker: "alice", Text: "world"},
		{Start: 1.0, Speaker: "bob", Text: "yo"},
	}
	merged := Merge(segments, Options{})
	var starts []float64
	for _, seg := range merged {
		starts = append(starts, seg.Start)
	}
	want := []float64{0.0, 1.0, 5.0}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("starts = %v, want %v", starts, want)
		}
	}
}

func TestMergeStableOnTies(t *testing.T) {
	segments := []Segment{
		{Start: 2, Speaker: "alice", Text: "first"},
		{Start: 2, Speaker: "bob", Text: "second"},
	}
	merged := Merge(segments, Options{})
	if merged[0].Speaker != "alice" || merged[1].Speaker != "bob" {
		t.Fatalf("tie order broken: %+v", merged)
	}
}

func TestMergeDedupe(t *testing.T) {
	t.Run("above threshold collapses", func(t *testing.T) {
		segments := []Segment{
			{Start: 1, Speaker: "alice", Text: "we should head out now"},
			{Start: 1.2, Speaker: "bob", Text: "we should head out now"},
		}
		merged := Merge(segments, Options{Dedupe: true, Threshold: 0.9})
		if len(merged) != 1 {
			t.Fatalf("len = %d, want 1: %+v", len(merged), merged)
		}
		if merged[0].Speaker != "alice" {
			t.Fatalf("retained = %+v, want first occurrence", merged[0])
		}
	})

	t.Run("below threshold retains both", func(t *testing.T) {
		segments := []Segment{
			{Start: 1, Speaker: "alice", Text: "we should head out now"},
			{Start: 1.2, Speaker: "bob", Text: "totally unrelated reply"},
		}
		merged := Merge(segments, Options{Dedupe: true, Threshold: 0.9})
		if len(merged) != 2 {
			t.Fatalf("len = %d, want 2: %+v", len(merged), merged)
		}
	})

	t.Run("distant repeats preserved", func(t *testing.T) {
		segments := []Segment{
			{Start: 1, Speaker: "alice", Text: "see you soon"},
			{Start: 10, Speaker: "bob", Text: "something in between"},
			{Start: 20, Speaker: "alice", Text: "see you soon"},
		}
		merged := Merge(segments, Options{Dedupe: true, Threshold: 0.9})
		if len(merged) != 3 {
			t.Fatalf("len = %d, want 3: %+v", len(merged), merged)
		}
	})
}

func TestEngineRun(t *testing.T) {
	root := t.TempDir()
	tracksDir := filepath.Join(root, "tracks")
	if err := os.MkdirAll(tracksDir, 0o755); err != nil {
		t.Fatal(err)
	}

	writeTrack := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(tracksDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeTrack("1-alice.txt", "[0:00:00] hello\n[0:00:05] world\n")
	writeTrack("2-bob.txt", "[0:00:01] yo\n")

	engine := NewEngine(nil)
	result, err := engine.Run(tracksDir, root, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Segments != 3 {
		t.Fatalf("segments = %d", result.Segments)
	}

	txt, err := os.ReadFile(result.TxtPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(txt)), "\n")
	want := []string{
		"[0:00:00] 1-alice: hello",
		"[0:00:01] 2-bob: yo",
		"[0:00:05] 1-alice: world",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	data, err := os.ReadFile(result.JSONPath)
	if err != nil {
		t.Fatal(err)
	}
	var parsed []Segment
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("merged.json invalid: %v", err)
	}
	if len(parsed) != 3 || parsed[1].Speaker != "2-bob" {
		t.Fatalf("parsed = %+v", parsed)
	}
}

func TestEngineRunNoSegments(t *testing.T) {
	root := t.TempDir()
	tracksDir := filepath.Join(root, "tracks")
	if err := os.MkdirAll(tracksDir, 0o755); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine(nil)
	_, err := engine.Run(tracksDir, root, Options{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
