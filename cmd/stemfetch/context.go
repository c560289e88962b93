package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"stemfetch/internal/catalog"
	"stemfetch/internal/config"
	"stemfetch/internal/logging"
	"stemfetch/internal/mixdown"
	"stemfetch/internal/pipeline"
	"stemfetch/internal/services/craig"
	"stemfetch/internal/transcribe"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		c.logger, c.loggerErr = logging.NewFromOptions(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) remoteClient() (*craig.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Remote.RequestTimeout) * time.Second
	return craig.NewClient(cfg.Remote.BaseURL, cfg.Remote.UserAgent, timeout, nil), nil
}

// buildPipeline assembles the pipeline from configuration. The returned
// cleanup closes the run catalog and must be called when the command exits.
func (c *commandContext) buildPipeline() (*pipeline.Pipeline, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	remote, err := c.remoteClient()
	if err != nil {
		return nil, nil, err
	}

	transcoder := mixdown.NewFFmpeg(cfg.FFmpegBinary())
	backend := transcribe.NewWhisperCLI(cfg.Transcription.Backend)
	p := pipeline.New(cfg, remote, transcoder, backend, logger)

	cleanup := func() {}
	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Warn("run catalog unavailable", logging.Error(err))
	} else {
		p = p.WithCatalog(store)
		cleanup = func() { _ = store.Close() }
	}

	return p, cleanup, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
