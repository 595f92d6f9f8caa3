package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoder()
	if err := c.normalizeJobs(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = os.Getenv("VIDSQUEEZE_API_TOKEN")
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeEncoder() {
	if value, ok := os.LookupEnv("VIDSQUEEZE_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Encoder.FFmpegBinary = value
	}
	if value, ok := os.LookupEnv("VIDSQUEEZE_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Encoder.FFprobeBinary = value
	}
	c.Encoder.FFmpegBinary = defaultString(c.Encoder.FFmpegBinary, defaultFFmpegBinary)
	c.Encoder.FFprobeBinary = defaultString(c.Encoder.FFprobeBinary, defaultFFprobeBinary)
	c.Encoder.VideoCodec = defaultString(c.Encoder.VideoCodec, defaultVideoCodec)
	c.Encoder.AudioCodec = defaultString(c.Encoder.AudioCodec, defaultAudioCodec)
	c.Encoder.Container = strings.ToLower(strings.TrimPrefix(defaultString(c.Encoder.Container, defaultContainer), "."))
	c.Encoder.Preset = strings.ToLower(defaultString(c.Encoder.Preset, defaultPreset))
	c.Encoder.PixelFormat = defaultString(c.Encoder.PixelFormat, defaultPixelFormat)
}

func (c *Config) normalizeJobs() error {
	c.Jobs.DefaultResolution = strings.ToLower(defaultString(c.Jobs.DefaultResolution, defaultResolution))
	if c.Jobs.DefaultResolution != "" && !strings.HasSuffix(c.Jobs.DefaultResolution, "p") {
		c.Jobs.DefaultResolution += "p"
	}
	var err error
	if c.Jobs.OutputDir, err = expandPath(strings.TrimSpace(c.Jobs.OutputDir)); err != nil {
		return fmt.Errorf("jobs.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(defaultString(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaultString(c.Logging.Level, defaultLogLevel))
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
