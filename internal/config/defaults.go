package config

const (
	defaultConfigPath         = "~/.config/clipper/config.toml"
	defaultStagingDir         = "~/.local/share/clipper/staging"
	defaultStateDir           = "~/.local/share/clipper"
	defaultLogDir             = "~/.local/share/clipper/logs"
	defaultStagingMaxAgeHours = 6
	defaultMaxPartBytes       = 48 << 20
	defaultMinFreeBytes       = 512 << 20
	defaultPollTimeout        = 10
	defaultListen             = ":8443"
	defaultAcquireTimeout     = 900
	defaultTrimTimeout        = 600
	defaultProbeTimeout       = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultLanguage           = "en"
	defaultNotifyTimeout      = 10
)

// Transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Acquisition modes.
const (
	AcquireDownload = "download"
	AcquireStream   = "stream"
)

// DefaultLadder is the canonical set of offered height classes.
var DefaultLadder = []int{144, 240, 360, 480, 720, 1080}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Telegram: Telegram{
			Mode:        ModePolling,
			Listen:      defaultListen,
			PollTimeout: defaultPollTimeout,
		},
		Limits: Limits{
			MaxPartBytes: defaultMaxPartBytes,
			MinFreeBytes: defaultMinFreeBytes,
		},
		Quality: Quality{
			Ladder: append([]int(nil), DefaultLadder...),
		},
		Paths: Paths{
			StagingDir:         defaultStagingDir,
			StateDir:           defaultStateDir,
			LogDir:             defaultLogDir,
			StagingMaxAgeHours: defaultStagingMaxAgeHours,
		},
		Tools: Tools{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			YtDlp:          "yt-dlp",
			AcquireMode:    AcquireDownload,
			AcquireTimeout: defaultAcquireTimeout,
			TrimTimeout:    defaultTrimTimeout,
			ProbeTimeout:   defaultProbeTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunFailures:    true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Bot: Bot{
			Language: defaultLanguage,
		},
	}
}
