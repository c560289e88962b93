package mixdown

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stemfetch/internal/logging"
	"stemfetch/internal/services"
)

const stageName = "mixdown"

// Supported final artifact formats.
const (
	FormatOpus = "opus"
	FormatMP3  = "mp3"
)

// Input carries everything the stage needs for one recording.
type Input struct {
	DownloadPath string
	WorkDir      string
	FinalDir     string
	BaseName     string
	Format       string
	OpusBitrate  string
	MP3Bitrate   string
	KeepWork     bool
	Overwrite    bool
}

// Result reports the final artifact produced (or reused) by the stage.
type Result struct {
	FinalPath string
	Format    string
	Skipped   bool
}

// Stage produces the final downmixed artifact.
type Stage struct {
	transcoder Transcoder
	logger     *slog.Logger
}

func NewStage(transcoder Transcoder, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{transcoder: transcoder, logger: logger}
}

// Run derives the final artifact. Zip downloads are treated as stem archives
// and downmixed; anything else is transcoded as a single mixed file.
func (s *Stage) Run(ctx context.Context, in Input) (Result, error) {
	format := in.Format
	if format == "" {
		format = FormatOpus
	}
	finalPath := filepath.Join(in.FinalDir, in.BaseName+"."+format)
	result := Result{FinalPath: finalPath, Format: format}

	if _, err := os.Stat(finalPath); err == nil && !in.Overwrite {
		s.logger.Info("final artifact already present, skipping",
			logging.String("path", finalPath))
		result.Skipped = true
		return result, nil
	}

	bitrate := in.OpusBitrate
	if format == FormatMP3 {
		bitrate = in.MP3Bitrate
	}

	if strings.EqualFold(filepath.Ext(in.DownloadPath), ".zip") {
		stemsDir := filepath.Join(in.WorkDir, "stems")
		if err := os.MkdirAll(stemsDir, 0o755); err != nil {
			return Result{}, services.Wrap(services.ErrValidation, stageName, "create stems dir", "", err)
		}
		if err := ExtractArchive(in.DownloadPath, stemsDir); err != nil {
			return Result{}, err
		}
		stems, err := FindAudioFiles(stemsDir)
		if err != nil {
			return Result{}, services.Wrap(services.ErrValidation, stageName, "scan stems", "", err)
		}
		if len(stems) == 0 {
			return Result{}, services.Wrap(services.ErrValidation, stageName, "scan stems",
				"no audio stems found in archive", nil)
		}
		s.logger.Info("downmixing stems",
			logging.Int("stems", len(stems)),
			logging.String("format", format))
		if err := s.transcoder.Mix(ctx, stems, finalPath, format, bitrate); err != nil {
			return Result{}, err
		}
		if !in.KeepWork {
			if err := os.RemoveAll(stemsDir); err != nil {
				s.logger.Warn("failed to clean stems dir", logging.Error(err))
			}
		}
	} else {
		s.logger.Info("transcoding mixed download",
			logging.String("source", in.DownloadPath),
			logging.String("format", format))
		if err := s.transcoder.Transcode(ctx, in.DownloadPath, finalPath, format, bitrate); err != nil {
			return Result{}, err
		}
	}

	s.logger.Info("final artifact ready", logging.String("path", finalPath))
	return result, nil
}

// ExtractArchive unpacks a zip archive into destDir, refusing entries that
// would escape it.
func ExtractArchive(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "open archive", "", err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		target := filepath.Join(destDir, filepath.Clean(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return services.Wrap(services.ErrValidation, stageName, "extract",
				"archive entry escapes destination: "+entry.Name, nil)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return services.Wrap(services.ErrValidation, stageName, "extract", "", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return services.Wrap(services.ErrValidation, stageName, "extract", "", err)
		}
		if err := extractEntry(entry, target); err != nil {
			return services.Wrap(services.ErrValidation, stageName, "extract", entry.Name, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// FindAudioFiles returns every audio file under root in sorted path order so
// mix input ordering is stable across runs.
func FindAudioFiles(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".flac", ".wav", ".ogg", ".opus", ".mp3", ".aac":
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
