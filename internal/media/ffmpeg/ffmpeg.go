package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipper/internal/media/ffprobe"
)

// Codec selects how Trim produces its output.
type Codec int

const (
	// Copy remuxes the selected range without re-encoding.
	Copy Codec = iota
	// Reencode transcodes to H.264/AAC, used when a stream copy fails.
	Reencode
	// Audio drops video and encodes MP3.
	Audio
)

func (c Codec) String() string {
	switch c {
	case Copy:
		return "copy"
	case Reencode:
		return "reencode"
	case Audio:
		return "audio"
	default:
		return "codec(" + strconv.Itoa(int(c)) + ")"
	}
}

// TrimRequest describes one cut.
type TrimRequest struct {
	// Input is a local path or a remote URL ffmpeg can read.
	Input string
	// Start is the offset in seconds into Input.
	Start float64
	// Duration is the length in seconds. Zero keeps everything after Start.
	Duration float64
	Output   string
	Codec    Codec
}

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option customizes a Tool.
type Option func(*Tool)

// WithRunner injects a custom command runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(t *Tool) {
		if r != nil {
			t.run = r
		}
	}
}

// WithTimeout bounds every ffmpeg invocation. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(t *Tool) {
		t.timeout = d
	}
}

// Tool wraps the ffmpeg and ffprobe binaries.
type Tool struct {
	ffmpeg  string
	ffprobe string
	run     Runner
	timeout time.Duration
}

// New constructs a Tool for the given binaries.
func New(ffmpegBinary, ffprobeBinary string, opts ...Option) *Tool {
	tool := &Tool{
		ffmpeg:  defaultBinary(ffmpegBinary, "ffmpeg"),
		ffprobe: defaultBinary(ffprobeBinary, "ffprobe"),
		run:     commandRunner{},
	}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

// Trim cuts the requested range into req.Output.
func (t *Tool) Trim(ctx context.Context, req TrimRequest) error {
	if strings.TrimSpace(req.Input) == "" || strings.TrimSpace(req.Output) == "" {
		return errors.New("ffmpeg trim: input and output are required")
	}
	if req.Start < 0 || req.Duration < 0 {
		return fmt.Errorf("ffmpeg trim: invalid range start=%.3f duration=%.3f", req.Start, req.Duration)
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if output, err := t.run.Run(ctx, t.ffmpeg, TrimArgs(req)); err != nil {
		_ = os.Remove(req.Output)
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg %s: %w", req.Codec, ctx.Err())
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", req.Codec, err, lastLines(string(output), 5))
	}
	return nil
}

// TrimArgs builds the ffmpeg argument list for req.
func TrimArgs(req TrimRequest) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(req.Start),
	}
	if req.Duration > 0 {
		args = append(args, "-t", formatSeconds(req.Duration))
	}
	args = append(args, "-i", req.Input)

	switch req.Codec {
	case Audio:
		args = append(args, "-vn", "-sn", "-dn", "-c:a", "libmp3lame", "-q:a", "2")
	case Reencode:
		args = append(args,
			"-map", "0:v:0?", "-map", "0:a:0?",
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
			"-c:a", "aac", "-b:a", "128k",
			"-movflags", "+faststart",
		)
	default:
		args = append(args,
			"-map", "0:v?", "-map", "0:a?",
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
		)
		if isMP4(req.Output) {
			args = append(args, "-movflags", "+faststart")
		}
	}
	return append(args, req.Output)
}

// ProbeDuration returns the media duration of path in seconds.
func (t *Tool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	result, err := ffprobe.InspectWith(ctx, t.output, t.ffprobe, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

// ProbeSize returns the on-disk size of path in bytes.
func (t *Tool) ProbeSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("stat %s: is a directory", filepath.Base(path))
	}
	return info.Size(), nil
}

func (t *Tool) output(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return t.run.Run(ctx, binary, args)
}

type commandRunner struct{}

func (commandRunner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if strings.Contains(filepath.Base(binary), "ffprobe") {
		var stderr strings.Builder
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			return []byte(stderr.String()), err
		}
		return out, nil
	}
	return cmd.CombinedOutput()
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

func isMP4(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".m4a", ".mov":
		return true
	}
	return false
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func defaultBinary(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
