package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizeQuality()
	c.normalizeTools()
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	c.Bot.Language = strings.ToLower(strings.TrimSpace(c.Bot.Language))
	if c.Bot.Language == "" {
		c.Bot.Language = defaultLanguage
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StagingMaxAgeHours <= 0 {
		c.Paths.StagingMaxAgeHours = defaultStagingMaxAgeHours
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	if c.Telegram.Token == "" {
		c.Telegram.Token = firstEnv("CLIPPER_BOT_TOKEN", "BOT_TOKEN")
	}
	c.Telegram.Mode = strings.ToLower(strings.TrimSpace(c.Telegram.Mode))
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = ModePolling
	}
	c.Telegram.WebhookURL = strings.TrimSpace(c.Telegram.WebhookURL)
	if c.Telegram.WebhookURL == "" {
		if value := firstEnv("CLIPPER_WEBHOOK_URL"); value != "" {
			c.Telegram.WebhookURL = value
		} else if base := firstEnv("RENDER_EXTERNAL_URL"); base != "" {
			c.Telegram.WebhookURL = strings.TrimRight(base, "/") + "/webhook"
		}
	}
	c.Telegram.Listen = strings.TrimSpace(c.Telegram.Listen)
	if port := firstEnv("PORT"); port != "" && (c.Telegram.Listen == "" || c.Telegram.Listen == defaultListen) {
		c.Telegram.Listen = ":" + port
	}
	if c.Telegram.Listen == "" {
		c.Telegram.Listen = defaultListen
	}
	c.Telegram.APIURL = strings.TrimRight(strings.TrimSpace(c.Telegram.APIURL), "/")
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
}

func (c *Config) normalizeQuality() {
	ladder := make([]int, 0, len(c.Quality.Ladder))
	for _, height := range c.Quality.Ladder {
		if height > 0 && !slices.Contains(ladder, height) {
			ladder = append(ladder, height)
		}
	}
	if len(ladder) == 0 {
		ladder = append(ladder, DefaultLadder...)
	}
	slices.Sort(ladder)
	c.Quality.Ladder = ladder
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = defaultString(c.Tools.FFmpeg, "ffmpeg")
	c.Tools.FFprobe = defaultString(c.Tools.FFprobe, "ffprobe")
	c.Tools.YtDlp = defaultString(c.Tools.YtDlp, "yt-dlp")
	c.Tools.AcquireMode = strings.ToLower(defaultString(c.Tools.AcquireMode, AcquireDownload))
	if c.Tools.AcquireTimeout <= 0 {
		c.Tools.AcquireTimeout = defaultAcquireTimeout
	}
	if c.Tools.TrimTimeout <= 0 {
		c.Tools.TrimTimeout = defaultTrimTimeout
	}
	if c.Tools.ProbeTimeout <= 0 {
		c.Tools.ProbeTimeout = defaultProbeTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(defaultString(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaultString(c.Logging.Level, defaultLogLevel))
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
