package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Transport credentials are
// checked separately by ValidateTransport.
func (c *Config) Validate() error {
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	switch c.Bot.Language {
	case "en", "ar":
	default:
		return fmt.Errorf("bot.language: unsupported value %q (expected en or ar)", c.Bot.Language)
	}
	switch c.Telegram.Mode {
	case ModePolling, ModeWebhook:
	default:
		return fmt.Errorf("telegram.mode: unsupported value %q (expected polling or webhook)", c.Telegram.Mode)
	}
	return nil
}

// ValidateTransport ensures the bot can connect. It is separate from Validate so
// CLI commands that never touch the transport work without a token.
func (c *Config) ValidateTransport() error {
	if c.Telegram.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("telegram.token is required. Set CLIPPER_BOT_TOKEN env var or edit %s (create with 'clipper config init')", defaultPath)
	}
	if c.Telegram.Mode == ModeWebhook {
		if c.Telegram.WebhookURL == "" {
			return errors.New("telegram.webhook_url is required in webhook mode (or set RENDER_EXTERNAL_URL)")
		}
		parsed, err := url.Parse(c.Telegram.WebhookURL)
		if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
			return fmt.Errorf("telegram.webhook_url must be an absolute https URL, got %q", c.Telegram.WebhookURL)
		}
	}
	if c.Telegram.APIURL != "" {
		parsed, err := url.Parse(c.Telegram.APIURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("telegram.api_url must be an absolute URL, got %q", c.Telegram.APIURL)
		}
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxPartBytes <= 0 {
		return errors.New("limits.max_part_bytes must be positive")
	}
	if c.Limits.MaxRangeSeconds < 0 {
		return errors.New("limits.max_range_seconds must be zero or positive")
	}
	if c.Limits.MinFreeBytes < 0 {
		return errors.New("limits.min_free_bytes must be zero or positive")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.FallbackHeight < 0 {
		return errors.New("quality.fallback_height must be zero or positive")
	}
	return nil
}

func (c *Config) validateTools() error {
	switch c.Tools.AcquireMode {
	case AcquireDownload, AcquireStream:
	default:
		return fmt.Errorf("tools.acquire_mode: unsupported value %q (expected download or stream)", c.Tools.AcquireMode)
	}
	for name, value := range map[string]string{
		"tools.ffmpeg":  c.Tools.FFmpeg,
		"tools.ffprobe": c.Tools.FFprobe,
		"tools.ytdlp":   c.Tools.YtDlp,
	} {
		if strings.ContainsAny(value, "\n\r") {
			return fmt.Errorf("%s contains a line break", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
