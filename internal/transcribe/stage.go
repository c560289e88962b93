package transcribe

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stemfetch/internal/logging"
	"stemfetch/internal/mixdown"
	"stemfetch/internal/services"
)

const stageName = "transcribe"

// Input carries everything the stage needs for one recording.
type Input struct {
	DownloadsDir string
	WorkDir      string
	FinalDir     string
	TracksDir    string
	Mixed        bool
	Overwrite    bool
	Workers      int
	Options      Options
}

// TrackResult records one track's transcript artifacts.
type TrackResult struct {
	Track   string
	TxtPath string
	VTTPath string
	Skipped bool
}

// Result aggregates per-track outcomes.
type Result struct {
	Tracks []TrackResult
}

// Artifacts lists every transcript file the stage produced or reused.
func (r Result) Artifacts() []string {
	paths := make([]string, 0, len(r.Tracks)*2)
	for _, t := range r.Tracks {
		paths = append(paths, t.TxtPath, t.VTTPath)
	}
	return paths
}

// Stage runs speech recognition over a recording's audio.
type Stage struct {
	backend Backend
	logger  *slog.Logger
}

func NewStage(backend Backend, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{backend: backend, logger: logger}
}

// Run transcribes either every track stem or a single mixed source.
func (s *Stage) Run(ctx context.Context, in Input) (Result, error) {
	if err := os.MkdirAll(in.TracksDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "create tracks dir", "", err)
	}
	if in.Mixed {
		return s.runMixed(ctx, in)
	}
	return s.runTracks(ctx, in)
}

func (s *Stage) runMixed(ctx context.Context, in Input) (Result, error) {
	source, err := locateMixedSource(in.FinalDir, in.DownloadsDir)
	if err != nil {
		return Result{}, err
	}
	track, err := s.processTrack(ctx, in, "mixed", source)
	if err != nil {
		return Result{}, err
	}
	return Result{Tracks: []TrackResult{track}}, nil
}

func (s *Stage) runTracks(ctx context.Context, in Input) (Result, error) {
	stems, err := locateStems(in.WorkDir, in.DownloadsDir)
	if err != nil {
		return Result{}, err
	}

	workers := in.Workers
	if workers < 1 {
		workers = 1
	}
	if workers == 1 {
		results := make([]TrackResult, 0, len(stems))
		for _, stem := range stems {
			track, err := s.processTrack(ctx, in, trackName(stem), stem)
			if err != nil {
				return Result{}, err
			}
			results = append(results, track)
		}
		return Result{Tracks: results}, nil
	}

	results := make([]TrackResult, len(stems))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, stem := range stems {
		wg.Add(1)
		go func(i int, stem string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			track, err := s.processTrack(ctx, in, trackName(stem), stem)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[i] = track
		}(i, stem)
	}
	wg.Wait()
	if firstErr != nil {
		return Result{}, firstErr
	}
	return Result{Tracks: results}, nil
}

// processTrack applies the skip-if-done rule, invoking the backend only when
// no valid prior output exists or overwrite is requested.
func (s *Stage) processTrack(ctx context.Context, in Input, track, audioPath string) (TrackResult, error) {
	txtPath := filepath.Join(in.TracksDir, track+".txt")
	vttPath := filepath.Join(in.TracksDir, track+".vtt")
	result := TrackResult{Track: track, TxtPath: txtPath, VTTPath: vttPath}

	if !in.Overwrite && OutputValid(txtPath, vttPath) {
		s.logger.Info("transcript already present, skipping",
			logging.String("track", track))
		result.Skipped = true
		return result, nil
	}

	s.logger.Info("transcribing",
		logging.String("track", track),
		logging.String("source", audioPath))
	segments, err := s.backend.Transcribe(ctx, audioPath, in.Options)
	if err != nil {
		return TrackResult{}, err
	}
	if err := WriteOutputs(segments, txtPath, vttPath); err != nil {
		return TrackResult{}, services.Wrap(services.ErrTransient, stageName, "write outputs", track, err)
	}
	return result, nil
}

// locateMixedSource prefers a postprocessed final artifact and falls back to
// a single mixed download.
func locateMixedSource(finalDir, downloadsDir string) (string, error) {
	for _, dir := range []string{finalDir, downloadsDir} {
		files, err := mixdown.FindAudioFiles(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", services.Wrap(services.ErrValidation, stageName, "locate mixed audio", "", err)
		}
		if len(files) > 0 {
			return files[0], nil
		}
	}
	return "", services.Wrap(services.ErrValidation, stageName, "locate mixed audio",
		"no mixed audio found; download with mixed output or run the mixdown stage first", nil)
}

// locateStems returns the extracted track stems, unpacking a downloaded stem
// archive first when necessary.
func locateStems(workDir, downloadsDir string) ([]string, error) {
	stemsDir := filepath.Join(workDir, "stems")
	stems, err := mixdown.FindAudioFiles(stemsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, services.Wrap(services.ErrValidation, stageName, "scan stems", "", err)
	}
	if len(stems) > 0 {
		return stems, nil
	}

	archive, err := findStemArchive(downloadsDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stemsDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "create stems dir", "", err)
	}
	if err := mixdown.ExtractArchive(archive, stemsDir); err != nil {
		return nil, err
	}
	stems, err = mixdown.FindAudioFiles(stemsDir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "scan stems", "", err)
	}
	if len(stems) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "scan stems",
			"no audio stems found in archive", nil)
	}
	return stems, nil
}

func findStemArchive(downloadsDir string) (string, error) {
	entries, err := os.ReadDir(downloadsDir)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "scan downloads", "", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
			return filepath.Join(downloadsDir, entry.Name()), nil
		}
	}
	return "", services.Wrap(services.ErrValidation, stageName, "scan downloads",
		"no stem archive found; download with per-track output first", nil)
}

func trackName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
