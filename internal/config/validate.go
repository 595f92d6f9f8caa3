package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"vidsqueeze/internal/jobs"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEncoder() error {
	if _, ok := containerMuxers[c.Encoder.Container]; !ok {
		return fmt.Errorf("encoder.container: unsupported value %q (want mp4, mov, mkv, or webm)", c.Encoder.Container)
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > maxCRF {
		return fmt.Errorf("encoder.crf must be between 0 and %d", maxCRF)
	}
	if strings.HasPrefix(c.Encoder.VideoCodec, "libx26") && !slices.Contains(x264Presets, c.Encoder.Preset) {
		return fmt.Errorf("encoder.preset: unsupported value %q", c.Encoder.Preset)
	}
	return nil
}

func (c *Config) validateJobs() error {
	if _, err := jobs.ParseResolution(c.Jobs.DefaultResolution); err != nil {
		return fmt.Errorf("jobs.default_resolution: %w", err)
	}
	if c.Jobs.MaxConcurrent < 0 {
		return errors.New("jobs.max_concurrent must be zero (unbounded) or positive")
	}
	if c.Jobs.ProgressIntervalMS < 0 || c.Jobs.ProgressIntervalMS > maxProgressIntervalMS {
		return fmt.Errorf("jobs.progress_interval_ms must be between 0 and %d", maxProgressIntervalMS)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 || c.Notifications.RequestTimeout > maxNotifyTimeoutSeconds {
		return fmt.Errorf("notifications.request_timeout must be between 0 and %d seconds", maxNotifyTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
