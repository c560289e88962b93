package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeMixdown()
	c.normalizeTranscription()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputRoot, err = expandPath(c.Paths.OutputRoot); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogDir) == "" {
		c.Paths.CatalogDir = defaultCatalogDir
	}
	if c.Paths.CatalogDir, err = expandPath(c.Paths.CatalogDir); err != nil {
		return fmt.Errorf("paths.catalog_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = defaultRemoteBaseURL
	}
	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultRemoteUserAgent
	}
	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = defaultRequestTimeout
	}
	if c.Remote.PollInterval <= 0 {
		c.Remote.PollInterval = defaultPollInterval
	}
	if c.Remote.PollTimeout <= 0 {
		c.Remote.PollTimeout = defaultPollTimeout
	}
}

func (c *Config) normalizeMixdown() {
	c.Mixdown.Format = strings.ToLower(strings.TrimSpace(c.Mixdown.Format))
	if c.Mixdown.Format == "" {
		c.Mixdown.Format = "none"
	}
	if strings.TrimSpace(c.Mixdown.OpusBitrate) == "" {
		c.Mixdown.OpusBitrate = defaultOpusBitrate
	}
	if strings.TrimSpace(c.Mixdown.MP3Bitrate) == "" {
		c.Mixdown.MP3Bitrate = defaultMP3Bitrate
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = defaultBackend
	}
	if strings.TrimSpace(c.Transcription.Model) == "" {
		c.Transcription.Model = defaultModel
	}
	c.Transcription.Device = strings.ToLower(strings.TrimSpace(c.Transcription.Device))
	if c.Transcription.Device == "" {
		c.Transcription.Device = defaultDevice
	}
	if strings.TrimSpace(c.Transcription.Language) == "" {
		c.Transcription.Language = defaultLanguage
	}
	if c.Transcription.Workers <= 0 {
		c.Transcription.Workers = 1
	}
	if c.Transcription.SimilarityThreshold == 0 {
		c.Transcription.SimilarityThreshold = defaultSimilarityThreshold
	}
}

func (c *Config) normalizeNotifications() {
	cleaned := c.Notifications.Webhooks[:0]
	for _, hook := range c.Notifications.Webhooks {
		if hook = strings.TrimSpace(hook); hook != "" {
			cleaned = append(cleaned, hook)
		}
	}
	c.Notifications.Webhooks = cleaned
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
