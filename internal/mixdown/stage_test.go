package mixdown

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stemfetch/internal/services"
)

type fakeTranscoder struct {
	mixCalls       int
	mixInputs      []string
	transcodeCalls int
	lastOutput     string
	lastFormat     string
	lastBitrate    string
	err            error
}

func (f *fakeTranscoder) Mix(ctx context.Context, inputs []string, output, format, bitrate string) error {
	f.mixCalls++
	f.mixInputs = inputs
	f.lastOutput = output
	f.lastFormat = format
	f.lastBitrate = bitrate
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte("mixed"), 0o644)
}

func (f *fakeTranscoder) Transcode(ctx context.Context, input, output, format, bitrate string) error {
	f.transcodeCalls++
	f.lastOutput = output
	f.lastFormat = format
	f.lastBitrate = bitrate
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte("transcoded"), 0o644)
}

func writeStemArchive(t *testing.T, path string, names ...string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte("audio")); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
}

func stageInput(t *testing.T, download string) Input {
	t.Helper()
	root := t.TempDir()
	workDir := filepath.Join(root, "work")
	finalDir := filepath.Join(root, "final")
	for _, dir := range []string{workDir, finalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return Input{
		DownloadPath: download,
		WorkDir:      workDir,
		FinalDir:     finalDir,
		BaseName:     "rec_base",
		Format:       FormatOpus,
		OpusBitrate:  "24k",
		MP3Bitrate:   "128k",
	}
}

func TestRunMixesStemArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "rec_base.flac.zip")
	writeStemArchive(t, archive, "1-alice.flac", "2-bob.flac", "info.txt")

	transcoder := &fakeTranscoder{}
	stage := NewStage(transcoder, nil)

	in := stageInput(t, archive)
	result, err := stage.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if transcoder.mixCalls != 1 {
		t.Fatalf("mix calls = %d", transcoder.mixCalls)
	}
	if len(transcoder.mixInputs) != 2 {
		t.Fatalf("mix inputs = %v", transcoder.mixInputs)
	}
	if transcoder.lastBitrate != "24k" {
		t.Fatalf("bitrate = %q", transcoder.lastBitrate)
	}
	want := filepath.Join(in.FinalDir, "rec_base.opus")
	if result.FinalPath != want {
		t.Fatalf("final path = %q, want %q", result.FinalPath, want)
	}
	if _, err := os.Stat(filepath.Join(in.WorkDir, "stems")); !os.IsNotExist(err) {
		t.Fatal("stems dir not cleaned up")
	}
}

func TestRunKeepWorkRetainsStems(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "rec_base.flac.zip")
	writeStemArchive(t, archive, "1-alice.flac")

	stage := NewStage(&fakeTranscoder{}, nil)
	in := stageInput(t, archive)
	in.KeepWork = true

	if _, err := stage.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(in.WorkDir, "stems", "1-alice.flac")); err != nil {
		t.Fatalf("stems missing: %v", err)
	}
}

func TestRunEmptyArchiveFails(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "rec_base.flac.zip")
	writeStemArchive(t, archive, "readme.txt")

	stage := NewStage(&fakeTranscoder{}, nil)
	_, err := stage.Run(context.Background(), stageInput(t, archive))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunTranscodesSingleDownload(t *testing.T) {
	dir := t.TempDir()
	download := filepath.Join(dir, "rec_base.mp3")
	if err := os.WriteFile(download, []byte("mixed audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	transcoder := &fakeTranscoder{}
	stage := NewStage(transcoder, nil)
	in := stageInput(t, download)
	in.Format = FormatMP3

	result, err := stage.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if transcoder.transcodeCalls != 1 || transcoder.mixCalls != 0 {
		t.Fatalf("transcode=%d mix=%d", transcoder.transcodeCalls, transcoder.mixCalls)
	}
	if transcoder.lastBitrate != "128k" {
		t.Fatalf("bitrate = %q", transcoder.lastBitrate)
	}
	if filepath.Base(result.FinalPath) != "rec_base.mp3" {
		t.Fatalf("final path = %q", result.FinalPath)
	}
}

func TestRunSkipsExistingFinal(t *testing.T) {
	dir := t.TempDir()
	download := filepath.Join(dir, "rec_base.mp3")
	if err := os.WriteFile(download, []byte("mixed audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	transcoder := &fakeTranscoder{}
	stage := NewStage(transcoder, nil)
	in := stageInput(t, download)
	existing := filepath.Join(in.FinalDir, "rec_base.opus")
	if err := os.WriteFile(existing, []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := stage.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected skip")
	}
	if transcoder.transcodeCalls != 0 && transcoder.mixCalls != 0 {
		t.Fatal("transcoder invoked despite existing artifact")
	}
}

func TestFFmpegMixArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	ff := NewFFmpeg("")
	ff.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	if err := ff.Mix(context.Background(), []string{"a.flac", "b.flac"}, "out.opus", FormatOpus, "24k"); err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if gotName != "ffmpeg" {
		t.Fatalf("binary = %q", gotName)
	}
	joined := ""
	for _, a := range gotArgs {
		joined += a + " "
	}
	wantFilter := "amix=inputs=2:dropout_transition=0:normalize=0, aformat=channel_layouts=mono, aresample=48000"
	found := false
	for _, a := range gotArgs {
		if a == wantFilter {
			found = true
		}
	}
	if !found {
		t.Fatalf("filter_complex missing from args: %s", joined)
	}
	if gotArgs[len(gotArgs)-1] != "out.opus" {
		t.Fatalf("output not last arg: %s", joined)
	}
}

func TestFFmpegMixNoInputs(t *testing.T) {
	ff := NewFFmpeg("ffmpeg")
	err := ff.Mix(context.Background(), nil, "out.opus", FormatOpus, "24k")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
