package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Telegram contains transport settings for the bot.
type Telegram struct {
	Token       string `toml:"token"`
	Mode        string `toml:"mode"`
	WebhookURL  string `toml:"webhook_url"`
	Listen      string `toml:"listen"`
	APIURL      string `toml:"api_url"`
	PollTimeout int    `toml:"poll_timeout"`
}

// Limits bounds run sizes.
type Limits struct {
	// MaxPartBytes is the per-message ceiling, kept below the transport's hard limit.
	MaxPartBytes int64 `toml:"max_part_bytes"`
	// MaxRangeSeconds rejects longer ranges at input time. Zero disables the guard.
	MaxRangeSeconds int   `toml:"max_range_seconds"`
	MinFreeBytes    int64 `toml:"min_free_bytes"`
}

// Quality controls the offered height ladder and the degraded fallback.
type Quality struct {
	Ladder []int `toml:"ladder"`
	// FallbackHeight pins the degraded selection to one height class. Zero keeps "best".
	FallbackHeight int  `toml:"fallback_height"`
	OfferAudio     bool `toml:"offer_audio"`
}

// Paths contains directory configuration.
type Paths struct {
	StagingDir         string `toml:"staging_dir"`
	StateDir           string `toml:"state_dir"`
	LogDir             string `toml:"log_dir"`
	StagingMaxAgeHours int    `toml:"staging_max_age_hours"`
}

// Tools names the external binaries and their timeouts.
type Tools struct {
	FFmpeg         string `toml:"ffmpeg"`
	FFprobe        string `toml:"ffprobe"`
	YtDlp          string `toml:"ytdlp"`
	AcquireMode    string `toml:"acquire_mode"`
	AcquireTimeout int    `toml:"acquire_timeout"`
	TrimTimeout    int    `toml:"trim_timeout"`
	ProbeTimeout   int    `toml:"probe_timeout"`
}

// API contains the optional HTTP helper API settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunFailures    bool   `toml:"run_failures"`
	Startup        bool   `toml:"startup"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Bot contains user-facing conversation settings.
type Bot struct {
	Language string `toml:"language"`
}

// Config encapsulates all configuration values for clipper.
//
// Configuration sections by subsystem:
//   - Telegram: bot token, polling or webhook transport
//   - Limits: per-part size ceiling, range guard, free-space floor
//   - Quality: canonical height ladder and degraded fallback
//   - Paths: staging, state, and log directories
//   - Tools: ffmpeg/ffprobe/yt-dlp binaries and timeouts
//   - API: optional HTTP helper API
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
//   - Bot: message language
type Config struct {
	Telegram      Telegram      `toml:"telegram"`
	Limits        Limits        `toml:"limits"`
	Quality       Quality       `toml:"quality"`
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Bot           Bot           `toml:"bot"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Transport credentials are not required here;
// call ValidateTransport before starting the bot.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionDBPath returns the SQLite session database location.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.StateDir, "sessions.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "clipper.lock")
}

// StagingMaxAge is the age after which abandoned run directories are swept.
func (c *Config) StagingMaxAge() time.Duration {
	return time.Duration(c.Paths.StagingMaxAgeHours) * time.Hour
}

// AcquireTimeout bounds one yt-dlp acquisition.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Tools.AcquireTimeout) * time.Second
}

// TrimTimeout bounds one ffmpeg invocation.
func (c *Config) TrimTimeout() time.Duration {
	return time.Duration(c.Tools.TrimTimeout) * time.Second
}

// ProbeTimeout bounds one format probe.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Tools.ProbeTimeout) * time.Second
}

// Webhook reports whether the bot receives updates through a webhook.
func (c *Config) Webhook() bool {
	return c.Telegram.Mode == ModeWebhook
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with the bot token masked.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	clone.Quality.Ladder = append([]int(nil), c.Quality.Ladder...)
	if clone.Telegram.Token != "" {
		clone.Telegram.Token = maskSecret(clone.Telegram.Token)
	}
	if clone.API.Token != "" {
		clone.API.Token = maskSecret(clone.API.Token)
	}
	return toml.Marshal(clone)
}

func maskSecret(value string) string {
	if len(value) <= 6 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-3:]
}
