// Package download fetches the finished job's output artifact with
// skip-if-present resume semantics and an optional free-space preflight.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"stemfetch/internal/fileutil"
	"stemfetch/internal/logging"
	"stemfetch/internal/services"
)

const stageName = "download"

// Fetcher streams remote artifacts.
type Fetcher interface {
	Download(ctx context.Context, filename string) (io.ReadCloser, error)
	DownloadURL(filename string) string
}

// Input is the explicit stage input record.
type Input struct {
	RemoteFile   string
	ExpectedSize int64
	BaseName     string
	DownloadsDir string
	Overwrite    bool
	SpaceCheck   bool
}

// Result reports where the artifact landed.
type Result struct {
	LocalPath string
	URL       string
	Skipped   bool
}

// Stage downloads a job's output artifact.
type Stage struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewStage constructs a download stage.
func NewStage(fetcher Fetcher, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{fetcher: fetcher, logger: logger}
}

// LocalFileName renames the remote artifact after the recording's base name
// while preserving the remote extension, including multi-part extensions
// like ".flac.zip".
func LocalFileName(remoteFile, baseName string) string {
	if dot := strings.Index(remoteFile, "."); dot >= 0 {
		return baseName + remoteFile[dot:]
	}
	return baseName
}

// Run downloads the artifact unless a prior run already produced it. With
// overwrite disabled the destination is opened with exclusive create, so a
// concurrent writer loses cleanly instead of clobbering.
func (s *Stage) Run(ctx context.Context, in Input) (Result, error) {
	localPath := filepath.Join(in.DownloadsDir, LocalFileName(in.RemoteFile, in.BaseName))
	url := s.fetcher.DownloadURL(in.RemoteFile)
	result := Result{LocalPath: localPath, URL: url}

	if _, err := os.Stat(localPath); err == nil && !in.Overwrite {
		s.logger.Info("download already present, skipping",
			logging.String("path", localPath))
		result.Skipped = true
		return result, nil
	}

	if in.SpaceCheck && in.ExpectedSize > 0 {
		free, err := fileutil.FreeSpace(in.DownloadsDir)
		if err != nil {
			return Result{}, services.Wrap(services.ErrValidation, stageName, "preflight", "check free space", err)
		}
		if free < uint64(in.ExpectedSize) {
			return Result{}, services.Wrap(services.ErrValidation, stageName, "preflight",
				fmt.Sprintf("insufficient free space: need %s, have %s (free space or disable download.space_check)",
					humanize.Bytes(uint64(in.ExpectedSize)), humanize.Bytes(free)), nil)
		}
	}

	s.logger.Info("downloading artifact",
		logging.String("url", url),
		logging.String("path", localPath),
		logging.String("expected_size", humanize.Bytes(uint64(max(in.ExpectedSize, 0)))))

	body, err := s.fetcher.Download(ctx, in.RemoteFile)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "fetch", "", err)
	}
	defer body.Close()

	flags := os.O_WRONLY | os.O_CREATE
	if in.Overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(localPath, flags, 0o644)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "create destination", "", err)
	}

	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		_ = os.Remove(localPath)
		return Result{}, services.Wrap(services.ErrTransient, stageName, "stream", "", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(localPath)
		return Result{}, services.Wrap(services.ErrTransient, stageName, "flush destination", "", err)
	}

	s.logger.Info("download complete", logging.String("path", localPath))
	return result, nil
}
