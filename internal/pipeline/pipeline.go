// Package pipeline coordinates the full recording workflow: identity
// resolution, remote job management, download, mixdown, transcription, and
// transcript merging, with manifest bookkeeping so every stage is resumable.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"stemfetch/internal/catalog"
	"stemfetch/internal/config"
	"stemfetch/internal/download"
	"stemfetch/internal/fileutil"
	"stemfetch/internal/identity"
	"stemfetch/internal/jobs"
	"stemfetch/internal/logging"
	"stemfetch/internal/manifest"
	"stemfetch/internal/mixdown"
	"stemfetch/internal/notifications"
	"stemfetch/internal/services"
	"stemfetch/internal/services/craig"
	"stemfetch/internal/transcribe"
	"stemfetch/internal/transcript"
)

// Stage names recorded in the manifest.
const (
	StageDownload   = "download"
	StageMixdown    = "mixdown"
	StageTranscribe = "transcribe"
	StageMerge      = "merge"
)

const lockFileName = ".stemfetch.lock"

// Remote is the recording service surface the pipeline drives.
type Remote interface {
	Metadata(ctx context.Context, id, key string) (*craig.Metadata, error)
	Duration(ctx context.Context, id, key string) (int, error)
	Job(ctx context.Context, id, key string) (*craig.Job, error)
	CreateJob(ctx context.Context, id, key string, req craig.JobRequest) (*craig.Job, error)
	DeleteJob(ctx context.Context, id, key string) error
	Download(ctx context.Context, filename string) (io.ReadCloser, error)
	DownloadURL(filename string) string
}

// Options select what one invocation does.
type Options struct {
	RecordingID string
	Key         string

	// Mixed requests a single server-side mix instead of per-track stems.
	Mixed bool
	// SourceFormat is the audio format requested from the remote service.
	SourceFormat string
	// FinalFormat overrides the configured mixdown format when set.
	FinalFormat string

	// ResumeDir resumes into an explicit recording directory.
	ResumeDir string
	// Resume discovers the newest existing directory for the derived base
	// name instead of creating a new one.
	Resume bool
	// Overwrite reuses existing directories and re-runs completed stages.
	Overwrite bool

	ForceJobRecreate  bool
	WithMixdown       bool
	WithTranscription bool
	WithMerge         bool
}

// Summary reports what a run produced.
type Summary struct {
	RequestID    string
	BaseName     string
	Dirs         identity.Dirs
	DownloadPath string
	FinalPath    string
	Transcripts  []string
	MergedTxt    string
	MergedJSON   string
}

// Pipeline wires the stages together over shared configuration.
type Pipeline struct {
	cfg        *config.Config
	remote     Remote
	transcoder mixdown.Transcoder
	backend    transcribe.Backend
	store      *catalog.Store
	notifier   notifications.Service
	logger     *slog.Logger
}

func New(cfg *config.Config, remote Remote, transcoder mixdown.Transcoder, backend transcribe.Backend, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:        cfg,
		remote:     remote,
		transcoder: transcoder,
		backend:    backend,
		notifier:   notifications.NewService(cfg, logger),
		logger:     logger,
	}
}

// WithCatalog records runs in the given store.
func (p *Pipeline) WithCatalog(store *catalog.Store) *Pipeline {
	p.store = store
	return p
}

// WithNotifier replaces the webhook notifier.
func (p *Pipeline) WithNotifier(svc notifications.Service) *Pipeline {
	p.notifier = svc
	return p
}

// Run executes the selected stages for one recording. Completed stages are
// skipped on resume; an in-progress stage left by a crashed run fails loudly
// unless overwrite is requested.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	if !craig.ValidRecordingID(opts.RecordingID) {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "validate input",
			fmt.Sprintf("invalid recording id %q", opts.RecordingID), nil)
	}
	if opts.Key == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "validate input",
			"access key required", nil)
	}

	requestID := uuid.NewString()
	ctx = services.WithRecordingID(ctx, opts.RecordingID)
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, p.logger)

	meta, err := p.remote.Metadata(ctx, opts.RecordingID, opts.Key)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "fetch metadata", "", err)
	}
	if meta.Duration <= 0 {
		if seconds, err := p.remote.Duration(ctx, opts.RecordingID, opts.Key); err == nil && seconds > 0 {
			meta.Duration = seconds
		} else {
			logger.Debug("recording duration unknown")
		}
	}

	baseName := identity.BaseName(identity.SourceFromMetadata(meta), nil)
	dirs, err := p.resolveDirs(baseName, opts)
	if err != nil {
		return nil, err
	}
	logger = logger.With(logging.String("record_dir", dirs.Root))

	lock := flock.New(filepath.Join(dirs.Root, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "acquire lock", "", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "acquire lock",
			"another stemfetch run is active in "+dirs.Root, nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	var run *catalog.Run
	if p.store != nil {
		run, err = p.store.RecordStart(ctx, opts.RecordingID, dirs.Root)
		if err != nil {
			logger.Warn("failed to record run in catalog", logging.Error(err))
		}
	}

	summary := &Summary{RequestID: requestID, BaseName: baseName, Dirs: dirs}
	if err := p.execute(ctx, logger, opts, meta, dirs, baseName, summary); err != nil {
		if run != nil {
			if markErr := p.store.MarkFailed(ctx, run.ID, err.Error()); markErr != nil {
				logger.Warn("failed to mark run failed", logging.Error(markErr))
			}
		}
		if notifyErr := p.notifier.NotifyError(ctx, err, "recording "+opts.RecordingID); notifyErr != nil {
			logger.Warn("error notification failed", logging.Error(notifyErr))
		}
		return nil, err
	}

	if run != nil {
		artifact := summary.FinalPath
		if artifact == "" {
			artifact = summary.DownloadPath
		}
		if markErr := p.store.MarkCompleted(ctx, run.ID, artifact); markErr != nil {
			logger.Warn("failed to mark run completed", logging.Error(markErr))
		}
	}
	transcripts := summary.Transcripts
	if summary.MergedTxt != "" {
		transcripts = append(append([]string{}, transcripts...), summary.MergedTxt, summary.MergedJSON)
	}
	if notifyErr := p.notifier.NotifyRunCompleted(ctx, opts.RecordingID, summary.FinalPath, transcripts); notifyErr != nil {
		logger.Warn("completion notification failed", logging.Error(notifyErr))
	}
	return summary, nil
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, opts Options, meta *craig.Metadata, dirs identity.Dirs, baseName string, summary *Summary) error {
	if _, err := manifest.Update(dirs.Root, manifest.Document{
		Input: &manifest.Input{ID: opts.RecordingID, Key: opts.Key},
		Artifacts: &manifest.Artifacts{
			RecordDir:    dirs.Root,
			DownloadsDir: dirs.Downloads,
			WorkDir:      dirs.Work,
			FinalDir:     dirs.Final,
		},
	}); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "write manifest", "", err)
	}
	p.snapshot(logger, dirs.Meta, "metadata.json", meta)

	if err := p.runDownload(ctx, logger, opts, dirs, baseName, summary); err != nil {
		return err
	}
	if opts.WithMixdown {
		if err := p.runMixdown(ctx, logger, opts, dirs, baseName, summary); err != nil {
			return err
		}
	}
	if opts.WithTranscription {
		if err := p.runTranscription(ctx, logger, opts, dirs, summary); err != nil {
			return err
		}
	}
	if opts.WithMerge {
		if err := p.runMerge(ctx, logger, opts, dirs, summary); err != nil {
			return err
		}
	}
	return nil
}

// beginStage applies the shared stage-status protocol. It returns true when
// the stage is already done and should be skipped.
func beginStage(root, name string, overwrite bool) (bool, error) {
	switch manifest.Read(root).Stage(name) {
	case manifest.StageDone:
		if !overwrite {
			return true, nil
		}
	case manifest.StageInProgress:
		if !overwrite {
			return false, services.Wrap(services.ErrValidation, name, "resume",
				"stage left in-progress by a prior run; rerun with overwrite to redo it", nil)
		}
	}
	_, err := manifest.SetStage(root, name, manifest.StageInProgress)
	return false, err
}

func finishStage(root, name string) error {
	_, err := manifest.SetStage(root, name, manifest.StageDone)
	return err
}

func (p *Pipeline) runDownload(ctx context.Context, logger *slog.Logger, opts Options, dirs identity.Dirs, baseName string, summary *Summary) error {
	if doc := manifest.Read(dirs.Root); doc.Stage(StageDownload) == manifest.StageDone && !opts.Overwrite &&
		doc.Download != nil && fileutil.FileNonEmpty(doc.Download.LocalFile) {
		logger.Info("download stage already complete", logging.String("path", doc.Download.LocalFile))
		summary.DownloadPath = doc.Download.LocalFile
		return nil
	}
	if _, err := beginStage(dirs.Root, StageDownload, opts.Overwrite); err != nil {
		return err
	}

	controller := jobs.NewController(p.remote, logger,
		time.Duration(p.cfg.Remote.PollInterval)*time.Second,
		time.Duration(p.cfg.Remote.PollTimeout)*time.Second)
	job, err := controller.Ensure(ctx, jobs.Request{
		RecordingID:   opts.RecordingID,
		Key:           opts.Key,
		Body:          craig.NewJobRequest(opts.Mixed, opts.SourceFormat),
		ForceRecreate: opts.ForceJobRecreate,
	})
	if err != nil {
		return err
	}
	p.snapshot(logger, dirs.Meta, "job.json", job)

	stage := download.NewStage(p.remote, logger)
	result, err := stage.Run(ctx, download.Input{
		RemoteFile:   job.OutputFileName,
		ExpectedSize: job.OutputSize,
		BaseName:     baseName,
		DownloadsDir: dirs.Downloads,
		Overwrite:    opts.Overwrite,
		SpaceCheck:   p.cfg.Download.SpaceCheck,
	})
	if err != nil {
		return err
	}

	if _, err := manifest.Update(dirs.Root, manifest.Document{
		Download: &manifest.Download{
			RemoteFile:   job.OutputFileName,
			LocalFile:    result.LocalPath,
			URL:          result.URL,
			ExpectedSize: job.OutputSize,
			Completed:    true,
		},
		Stages: map[string]manifest.StageStatus{StageDownload: manifest.StageDone},
	}); err != nil {
		return services.Wrap(services.ErrTransient, StageDownload, "write manifest", "", err)
	}

	summary.DownloadPath = result.LocalPath
	if notifyErr := p.notifier.NotifyDownloadCompleted(ctx, opts.RecordingID, result.LocalPath); notifyErr != nil {
		logger.Warn("download notification failed", logging.Error(notifyErr))
	}
	return nil
}

func (p *Pipeline) runMixdown(ctx context.Context, logger *slog.Logger, opts Options, dirs identity.Dirs, baseName string, summary *Summary) error {
	if doc := manifest.Read(dirs.Root); doc.Stage(StageMixdown) == manifest.StageDone && !opts.Overwrite &&
		doc.Final != nil && fileutil.FileNonEmpty(doc.Final.File) {
		logger.Info("mixdown stage already complete", logging.String("path", doc.Final.File))
		summary.FinalPath = doc.Final.File
		return nil
	}
	format := opts.FinalFormat
	if format == "" {
		format = p.cfg.Mixdown.Format
	}
	if format == "none" {
		logger.Info("mixdown disabled by format setting")
		return nil
	}
	if _, err := beginStage(dirs.Root, StageMixdown, opts.Overwrite); err != nil {
		return err
	}
	stage := mixdown.NewStage(p.transcoder, logger)
	result, err := stage.Run(ctx, mixdown.Input{
		DownloadPath: summary.DownloadPath,
		WorkDir:      dirs.Work,
		FinalDir:     dirs.Final,
		BaseName:     baseName,
		Format:       format,
		OpusBitrate:  p.cfg.Mixdown.OpusBitrate,
		MP3Bitrate:   p.cfg.Mixdown.MP3Bitrate,
		KeepWork:     p.cfg.Mixdown.KeepWork,
		Overwrite:    opts.Overwrite,
	})
	if err != nil {
		return err
	}

	if _, err := manifest.Update(dirs.Root, manifest.Document{
		Final:  &manifest.Final{File: result.FinalPath, Format: result.Format},
		Stages: map[string]manifest.StageStatus{StageMixdown: manifest.StageDone},
	}); err != nil {
		return services.Wrap(services.ErrTransient, StageMixdown, "write manifest", "", err)
	}
	summary.FinalPath = result.FinalPath
	return nil
}

func (p *Pipeline) runTranscription(ctx context.Context, logger *slog.Logger, opts Options, dirs identity.Dirs, summary *Summary) error {
	if doc := manifest.Read(dirs.Root); doc.Stage(StageTranscribe) == manifest.StageDone && !opts.Overwrite &&
		doc.Transcription != nil && len(doc.Transcription.Artifacts) > 0 {
		logger.Info("transcription stage already complete")
		summary.Transcripts = doc.Transcription.Artifacts
		return nil
	}
	if _, err := beginStage(dirs.Root, StageTranscribe, opts.Overwrite); err != nil {
		return err
	}
	if err := dirs.EnsureTranscripts(); err != nil {
		return services.Wrap(services.ErrValidation, StageTranscribe, "create transcripts dir", "", err)
	}

	stage := transcribe.NewStage(p.backend, logger)
	result, err := stage.Run(ctx, transcribe.Input{
		DownloadsDir: dirs.Downloads,
		WorkDir:      dirs.Work,
		FinalDir:     dirs.Final,
		TracksDir:    dirs.TrackDir(),
		Mixed:        opts.Mixed,
		Overwrite:    opts.Overwrite,
		Workers:      p.cfg.Transcription.Workers,
		Options: transcribe.Options{
			Model:            p.cfg.Transcription.Model,
			Device:           p.cfg.Transcription.Device,
			Language:         p.cfg.Transcription.Language,
			ClipLimitSeconds: p.cfg.Transcription.ClipLimitSeconds,
		},
	})
	if err != nil {
		return err
	}

	if _, err := manifest.Update(dirs.Root, manifest.Document{
		Transcription: &manifest.Transcription{
			Backend:   p.cfg.Transcription.Backend,
			Model:     p.cfg.Transcription.Model,
			Artifacts: result.Artifacts(),
		},
		Stages: map[string]manifest.StageStatus{StageTranscribe: manifest.StageDone},
	}); err != nil {
		return services.Wrap(services.ErrTransient, StageTranscribe, "write manifest", "", err)
	}
	summary.Transcripts = result.Artifacts()
	return nil
}

func (p *Pipeline) runMerge(ctx context.Context, logger *slog.Logger, opts Options, dirs identity.Dirs, summary *Summary) error {
	mergedTxt := filepath.Join(dirs.Transcripts, transcript.MergedTxtName)
	mergedJSON := filepath.Join(dirs.Transcripts, transcript.MergedJSONName)
	if doc := manifest.Read(dirs.Root); doc.Stage(StageMerge) == manifest.StageDone && !opts.Overwrite &&
		fileutil.FileNonEmpty(mergedTxt) {
		logger.Info("merge stage already complete", logging.String("path", mergedTxt))
		summary.MergedTxt = mergedTxt
		summary.MergedJSON = mergedJSON
		return nil
	}
	if _, err := beginStage(dirs.Root, StageMerge, opts.Overwrite); err != nil {
		return err
	}

	engine := transcript.NewEngine(logger)
	result, err := engine.Run(dirs.TrackDir(), dirs.Transcripts, transcript.Options{
		Dedupe:    p.cfg.Transcription.Dedupe,
		Threshold: p.cfg.Transcription.SimilarityThreshold,
	})
	if err != nil {
		return err
	}
	if err := finishStage(dirs.Root, StageMerge); err != nil {
		return services.Wrap(services.ErrTransient, StageMerge, "write manifest", "", err)
	}
	summary.MergedTxt = result.TxtPath
	summary.MergedJSON = result.JSONPath
	return nil
}

func (p *Pipeline) resolveDirs(baseName string, opts Options) (identity.Dirs, error) {
	if opts.ResumeDir != "" {
		resumeDir, err := config.ExpandPath(opts.ResumeDir)
		if err != nil {
			return identity.Dirs{}, services.Wrap(services.ErrValidation, "pipeline", "resolve resume dir", "", err)
		}
		dirs, err := identity.Resume(resumeDir)
		if err != nil {
			return identity.Dirs{}, services.Wrap(services.ErrValidation, "pipeline", "resolve resume dir", "", err)
		}
		return dirs, nil
	}
	if opts.Resume {
		if existing, ok := identity.FindExisting(p.cfg.Paths.OutputRoot, baseName); ok {
			dirs, err := identity.Resume(existing)
			if err != nil {
				return identity.Dirs{}, services.Wrap(services.ErrValidation, "pipeline", "resume directory", "", err)
			}
			return dirs, nil
		}
	}
	dirs, err := identity.CreateDirs(p.cfg.Paths.OutputRoot, baseName, opts.Overwrite)
	if err != nil {
		return identity.Dirs{}, services.Wrap(services.ErrValidation, "pipeline", "create record dir", "", err)
	}
	return dirs, nil
}

// snapshot persists a JSON document under meta/ best-effort; failures are
// logged, never fatal.
func (p *Pipeline) snapshot(logger *slog.Logger, metaDir, name string, value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		logger.Warn("failed to encode meta snapshot", logging.String("name", name), logging.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(metaDir, name), append(data, '\n'), 0o644); err != nil {
		logger.Warn("failed to write meta snapshot", logging.String("name", name), logging.Error(err))
	}
}
