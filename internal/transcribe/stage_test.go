package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"stemfetch/internal/services"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    int
	sources  []string
	segments []Segment
	err      error
}

func (f *fakeBackend) Transcribe(ctx context.Context, audioPath string, opts Options) ([]Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sources = append(f.sources, audioPath)
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func newStageInput(t *testing.T) Input {
	t.Helper()
	root := t.TempDir()
	in := Input{
		DownloadsDir: filepath.Join(root, "downloads"),
		WorkDir:      filepath.Join(root, "work"),
		FinalDir:     filepath.Join(root, "final"),
		TracksDir:    filepath.Join(root, "transcripts", "tracks"),
	}
	for _, dir := range []string{in.DownloadsDir, in.WorkDir, in.FinalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return in
}

func writeStem(t *testing.T, in Input, name string) {
	t.Helper()
	stemsDir := filepath.Join(in.WorkDir, "stems")
	if err := os.MkdirAll(stemsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stemsDir, name), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunTracksTranscribesEachStem(t *testing.T) {
	in := newStageInput(t)
	writeStem(t, in, "1-alice.flac")
	writeStem(t, in, "2-bob.flac")

	backend := &fakeBackend{segments: []Segment{{Start: 1, End: 2, Text: "hello"}}}
	stage := NewStage(backend, nil)

	result, err := stage.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backend.calls != 2 {
		t.Fatalf("backend calls = %d", backend.calls)
	}
	if len(result.Tracks) != 2 {
		t.Fatalf("tracks = %d", len(result.Tracks))
	}
	if result.Tracks[0].Track != "1-alice" {
		t.Fatalf("track name = %q", result.Tracks[0].Track)
	}
	data, err := os.ReadFile(result.Tracks[0].TxtPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[0:00:01] hello\n" {
		t.Fatalf("txt content = %q", data)
	}
}

func TestRunSkipsTrackWithExistingTranscript(t *testing.T) {
	in := newStageInput(t)
	writeStem(t, in, "1-alice.flac")

	if err := os.MkdirAll(in.TracksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	prior := filepath.Join(in.TracksDir, "1-alice.txt")
	if err := os.WriteFile(prior, []byte("[0:00:00] hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := &fakeBackend{}
	stage := NewStage(backend, nil)

	result, err := stage.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backend.calls != 0 {
		t.Fatalf("backend invoked %d times despite valid output", backend.calls)
	}
	if !result.Tracks[0].Skipped {
		t.Fatal("expected skip")
	}
}

func TestRunOverwriteReinvokesBackend(t *testing.T) {
	in := newStageInput(t)
	in.Overwrite = true
	writeStem(t, in, "1-alice.flac")

	if err := os.MkdirAll(in.TracksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	prior := filepath.Join(in.TracksDir, "1-alice.txt")
	if err := os.WriteFile(prior, []byte("[0:00:00] old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := &fakeBackend{segments: []Segment{{Start: 3, Text: "new"}}}
	stage := NewStage(backend, nil)

	if _, err := stage.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("backend calls = %d", backend.calls)
	}
	data, _ := os.ReadFile(prior)
	if string(data) != "[0:00:03] new\n" {
		t.Fatalf("txt content = %q", data)
	}
}

func TestRunTracksNoStemsFails(t *testing.T) {
	in := newStageInput(t)
	stage := NewStage(&fakeBackend{}, nil)
	_, err := stage.Run(context.Background(), in)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunMixedPrefersFinalArtifact(t *testing.T) {
	in := newStageInput(t)
	in.Mixed = true
	final := filepath.Join(in.FinalDir, "rec_base.opus")
	if err := os.WriteFile(final, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	download := filepath.Join(in.DownloadsDir, "rec_base.mp3")
	if err := os.WriteFile(download, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := &fakeBackend{segments: []Segment{{Start: 0, Text: "hi"}}}
	stage := NewStage(backend, nil)

	result, err := stage.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(backend.sources) != 1 || backend.sources[0] != final {
		t.Fatalf("sources = %v, want final artifact", backend.sources)
	}
	if result.Tracks[0].Track != "mixed" {
		t.Fatalf("track = %q", result.Tracks[0].Track)
	}
}

func TestRunMixedFallsBackToDownloads(t *testing.T) {
	in := newStageInput(t)
	in.Mixed = true
	download := filepath.Join(in.DownloadsDir, "rec_base.mp3")
	if err := os.WriteFile(download, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	backend := &fakeBackend{segments: []Segment{{Start: 0, Text: "hi"}}}
	stage := NewStage(backend, nil)

	if _, err := stage.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(backend.sources) != 1 || backend.sources[0] != download {
		t.Fatalf("sources = %v, want download fallback", backend.sources)
	}
}

func TestRunTracksWorkerPool(t *testing.T) {
	in := newStageInput(t)
	in.Workers = 3
	for _, name := range []string{"1-alice.flac", "2-bob.flac", "3-carol.flac", "4-dave.flac"} {
		writeStem(t, in, name)
	}

	backend := &fakeBackend{segments: []Segment{{Start: 2, Text: "line"}}}
	stage := NewStage(backend, nil)

	result, err := stage.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backend.calls != 4 {
		t.Fatalf("backend calls = %d", backend.calls)
	}
	if len(result.Tracks) != 4 {
		t.Fatalf("tracks = %d", len(result.Tracks))
	}
	for i, want := range []string{"1-alice", "2-bob", "3-carol", "4-dave"} {
		if result.Tracks[i].Track != want {
			t.Fatalf("track[%d] = %q, want %q", i, result.Tracks[i].Track, want)
		}
		if !fileNonEmptyForTest(result.Tracks[i].TxtPath) {
			t.Fatalf("missing output for %s", want)
		}
	}
}

func fileNonEmptyForTest(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func TestRunBackendErrorSurfaces(t *testing.T) {
	in := newStageInput(t)
	writeStem(t, in, "1-alice.flac")

	backend := &fakeBackend{err: services.Wrap(services.ErrConfiguration, "transcribe", "locate backend", "not installed", nil)}
	stage := NewStage(backend, nil)

	_, err := stage.Run(context.Background(), in)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
