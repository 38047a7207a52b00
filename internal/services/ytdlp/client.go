package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/services"
)

// Format is one downloadable encoding as reported by yt-dlp.
type Format struct {
	ID             string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	FileSize       int64   `json:"filesize"`
	FileSizeApprox int64   `json:"filesize_approx"`
	TBR            float64 `json:"tbr"`
	URL            string  `json:"url"`
}

// HasVideo reports whether the format carries a video stream.
func (f Format) HasVideo() bool { return codecPresent(f.VCodec) }

// HasAudio reports whether the format carries an audio stream.
func (f Format) HasAudio() bool { return codecPresent(f.ACodec) }

// Progressive reports whether the format carries both video and audio.
func (f Format) Progressive() bool { return f.HasVideo() && f.HasAudio() }

// Size returns the exact or approximate byte size, 0 when unknown.
func (f Format) Size() int64 {
	if f.FileSize > 0 {
		return f.FileSize
	}
	return f.FileSizeApprox
}

func codecPresent(codec string) bool {
	codec = strings.TrimSpace(codec)
	return codec != "" && codec != "none"
}

// Media is the probe result for one resource.
type Media struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Duration float64  `json:"duration"`
	IsLive   bool     `json:"is_live"`
	Formats  []Format `json:"formats"`
}

// Handle is an acquired source: a local file or a remote URL ffmpeg can read.
type Handle struct {
	Path     string
	Remote   bool
	Selector string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

// Option customizes a Client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithTimeouts bounds probe and acquisition calls. Zero leaves a call unbounded.
func WithTimeouts(probe, acquire time.Duration) Option {
	return func(c *Client) {
		c.probeTimeout = probe
		c.acquireTimeout = acquire
	}
}

// Client wraps the yt-dlp binary.
type Client struct {
	binary         string
	exec           Executor
	probeTimeout   time.Duration
	acquireTimeout time.Duration
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Probe lists title, duration, and formats without downloading.
func (c *Client) Probe(ctx context.Context, url string) (Media, error) {
	ctx, cancel := withTimeout(ctx, c.probeTimeout)
	defer cancel()

	stdout, stderr, err := c.exec.Run(ctx, c.binary, []string{"-J", "--no-warnings", "--no-playlist", "--", url})
	if err != nil {
		return Media{}, c.classify(ctx, "probe", stderr, err)
	}
	var media Media
	if err := json.Unmarshal(stdout, &media); err != nil {
		return Media{}, services.Wrap(services.ErrExternalTool, "ytdlp", "probe", "decode metadata", err)
	}
	return media, nil
}

// Acquire downloads url using selector into dir and returns the file path.
func (c *Client) Acquire(ctx context.Context, url, selector, dir string) (Handle, error) {
	if strings.TrimSpace(dir) == "" {
		return Handle{}, services.Wrap(services.ErrValidation, "ytdlp", "acquire", "destination directory required", nil)
	}
	ctx, cancel := withTimeout(ctx, c.acquireTimeout)
	defer cancel()

	args := []string{
		"-f", selector,
		"--no-playlist",
		"--no-part",
		"--no-warnings",
		"--merge-output-format", "mp4",
		"-o", filepath.Join(dir, "source.%(ext)s"),
		"--print", "after_move:filepath",
		"--no-simulate",
		"--", url,
	}
	stdout, stderr, err := c.exec.Run(ctx, c.binary, args)
	if err != nil {
		return Handle{}, c.classify(ctx, "acquire", stderr, err)
	}
	path := lastLine(stdout)
	if path == "" {
		return Handle{}, services.Wrap(services.ErrAcquire, "ytdlp", "acquire", "yt-dlp reported no output file", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return Handle{}, services.Wrap(services.ErrAcquire, "ytdlp", "acquire", "downloaded file missing", err)
	}
	return Handle{Path: path, Selector: selector}, nil
}

// DirectURL resolves selector to a media URL ffmpeg can read remotely. Merged
// selectors yield two URLs; only single-stream selectors are usable here.
func (c *Client) DirectURL(ctx context.Context, url, selector string) (Handle, error) {
	ctx, cancel := withTimeout(ctx, c.probeTimeout)
	defer cancel()

	stdout, stderr, err := c.exec.Run(ctx, c.binary, []string{"-f", selector, "-g", "--no-warnings", "--no-playlist", "--", url})
	if err != nil {
		return Handle{}, c.classify(ctx, "direct_url", stderr, err)
	}
	lines := nonEmptyLines(stdout)
	if len(lines) != 1 {
		return Handle{}, services.Wrap(services.ErrFormatUnavailable, "ytdlp", "direct_url",
			fmt.Sprintf("selector %q resolved to %d urls", selector, len(lines)), nil)
	}
	return Handle{Path: lines[0], Remote: true, Selector: selector}, nil
}

func (c *Client) classify(ctx context.Context, op string, stderr []byte, err error) error {
	if ctxErr := services.FromContext(ctx, "ytdlp"); ctxErr != nil {
		return ctxErr
	}
	detail := strings.TrimSpace(lastLine(stderr))
	if detail == "" {
		detail = err.Error()
	}
	lower := strings.ToLower(string(stderr))
	switch {
	case strings.Contains(lower, "requested format is not available"):
		return services.Wrap(services.ErrFormatUnavailable, "ytdlp", op, detail, err)
	case errors.Is(err, exec.ErrNotFound):
		return services.Wrap(services.ErrConfiguration, "ytdlp", op, "yt-dlp binary not found", err)
	case op == "probe":
		return services.Wrap(services.ErrExternalTool, "ytdlp", op, detail, err)
	default:
		return services.Wrap(services.ErrAcquire, "ytdlp", op, detail, err)
	}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func nonEmptyLines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func lastLine(data []byte) string {
	lines := nonEmptyLines(data)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
