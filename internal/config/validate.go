package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateMixdown(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	parsed, err := url.Parse(c.Remote.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("remote.base_url %q is not an absolute URL", c.Remote.BaseURL)
	}
	if c.Remote.PollTimeout < c.Remote.PollInterval {
		return fmt.Errorf("remote.poll_timeout (%ds) must not be below remote.poll_interval (%ds)",
			c.Remote.PollTimeout, c.Remote.PollInterval)
	}
	return nil
}

func (c *Config) validateMixdown() error {
	switch c.Mixdown.Format {
	case "none", "opus", "mp3":
		return nil
	default:
		return fmt.Errorf("mixdown.format must be one of none, opus, mp3 (got %q)", c.Mixdown.Format)
	}
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Device {
	case "cpu", "cuda":
	default:
		return fmt.Errorf("transcription.device must be cpu or cuda (got %q)", c.Transcription.Device)
	}
	if c.Transcription.ClipLimitSeconds < 0 {
		return fmt.Errorf("transcription.clip_limit_seconds must not be negative")
	}
	if c.Transcription.SimilarityThreshold < 0 || c.Transcription.SimilarityThreshold > 1 {
		return fmt.Errorf("transcription.similarity_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	for _, hook := range c.Notifications.Webhooks {
		parsed, err := url.Parse(hook)
		if err != nil || !strings.HasPrefix(parsed.Scheme, "http") {
			return fmt.Errorf("notifications.webhooks entry %q is not an HTTP URL", hook)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
