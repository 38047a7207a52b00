package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/services"
	"clipper/internal/services/ytdlp"
	"clipper/internal/session"
)

// Provider fetches the source stream for a resource.
type Provider interface {
	Acquire(ctx context.Context, url, selector, dir string) (ytdlp.Handle, error)
	DirectURL(ctx context.Context, url, selector string) (ytdlp.Handle, error)
}

// Trimmer cuts and measures media files.
type Trimmer interface {
	Trim(ctx context.Context, req ffmpeg.TrimRequest) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ProbeSize(path string) (int64, error)
}

// Request names the resource, range, and encoding to extract.
type Request struct {
	Resource string
	// Start and End bound the range in whole seconds.
	Start int
	End   int
	// Height caps the fallback rungs; 0 goes straight to "best".
	Height int
	// Selector is the exact offered format, empty when none was offered.
	Selector string
	Mode     session.Mode
}

// Duration returns the range length in seconds.
func (r Request) Duration() int {
	return r.End - r.Start
}

// Segment is the trimmed clip of one run.
type Segment struct {
	Path     string
	Duration float64
	Size     int64
	Mode     session.Mode
	// Selector is the provider format actually used.
	Selector string
	// Degraded is set when a lower rung of the selector ladder was used.
	Degraded bool
}

// Extractor acquires a resource and trims the requested range from it.
type Extractor struct {
	provider Provider
	trimmer  Trimmer
	mode     string
	logger   *slog.Logger
}

// New constructs an Extractor. mode is config.AcquireDownload or
// config.AcquireStream; anything else downloads.
func New(provider Provider, trimmer Trimmer, mode string, logger *slog.Logger) *Extractor {
	return &Extractor{
		provider: provider,
		trimmer:  trimmer,
		mode:     mode,
		logger:   logging.NewComponentLogger(logger, "extract"),
	}
}

const (
	audioSelector = "bestaudio/best"
	bestSelector  = "best"
)

// Ladder lists the selectors tried for req, most specific first.
func Ladder(req Request) []string {
	if req.Mode == session.ModeAudio {
		return []string{audioSelector}
	}
	var rungs []string
	if sel := strings.TrimSpace(req.Selector); sel != "" {
		rungs = append(rungs, sel)
	}
	if req.Height > 0 {
		rungs = append(rungs,
			fmt.Sprintf("best[height<=%d][vcodec!=none][acodec!=none]", req.Height),
			fmt.Sprintf("bestvideo[height<=%d]+bestaudio", req.Height),
		)
	}
	return append(rungs, bestSelector)
}

// Extract produces the segment for req inside workdir.
func (e *Extractor) Extract(ctx context.Context, req Request, workdir string) (Segment, error) {
	ctx = services.WithStage(ctx, "extract")
	logger := logging.WithContext(ctx, e.logger)

	if req.End <= req.Start || req.Start < 0 {
		return Segment{}, services.Wrap(services.ErrValidation, "extract", "range",
			fmt.Sprintf("invalid range %d-%d", req.Start, req.End), nil)
	}

	handle, rung, err := e.acquire(ctx, req, workdir)
	if err != nil {
		return Segment{}, err
	}
	if !handle.Remote {
		defer func() {
			if rmErr := os.Remove(handle.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Debug("source removal failed", logging.Error(rmErr))
			}
		}()
	}
	logger.Info("source acquired",
		logging.String("selector", handle.Selector),
		logging.Bool("remote", handle.Remote),
		logging.Int("rung", rung),
		logging.String(logging.FieldEventType, "source_acquired"),
	)

	seg, err := e.trim(ctx, req, handle, workdir)
	if err != nil {
		return Segment{}, err
	}
	seg.Selector = handle.Selector
	seg.Degraded = rung > 0
	logger.Info("segment ready",
		logging.Float64("duration_seconds", seg.Duration),
		logging.Int64("size_bytes", seg.Size),
		logging.Bool("degraded", seg.Degraded),
		logging.String(logging.FieldEventType, "segment_ready"),
	)
	return seg, nil
}

func (e *Extractor) acquire(ctx context.Context, req Request, workdir string) (ytdlp.Handle, int, error) {
	logger := logging.WithContext(ctx, e.logger)
	var lastErr error
	for i, selector := range Ladder(req) {
		var (
			handle ytdlp.Handle
			err    error
		)
		if e.mode == config.AcquireStream {
			handle, err = e.provider.DirectURL(ctx, req.Resource, selector)
		} else {
			handle, err = e.provider.Acquire(ctx, req.Resource, selector, workdir)
		}
		if err == nil {
			return handle, i, nil
		}
		if services.Terminal(err) {
			if ctxErr := services.FromContext(ctx, "extract"); ctxErr != nil {
				return ytdlp.Handle{}, i, ctxErr
			}
			if errors.Is(err, services.ErrAcquire) || errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrCanceled) || errors.Is(err, services.ErrTimeout) {
				return ytdlp.Handle{}, i, err
			}
			return ytdlp.Handle{}, i, services.Wrap(services.ErrAcquire, "extract", "acquire", selector, err)
		}
		logger.Debug("selector unavailable, stepping down",
			logging.String("selector", selector),
			logging.Error(err),
		)
		lastErr = err
	}
	return ytdlp.Handle{}, 0, services.Wrap(services.ErrAcquire, "extract", "acquire", "no selector could be acquired", lastErr)
}

func (e *Extractor) trim(ctx context.Context, req Request, handle ytdlp.Handle, workdir string) (Segment, error) {
	logger := logging.WithContext(ctx, e.logger)
	trimReq := ffmpeg.TrimRequest{
		Input:    handle.Path,
		Start:    float64(req.Start),
		Duration: float64(req.Duration()),
	}

	if req.Mode == session.ModeAudio {
		trimReq.Output = filepath.Join(workdir, "clip.mp3")
		trimReq.Codec = ffmpeg.Audio
		if err := e.trimmer.Trim(ctx, trimReq); err != nil {
			return Segment{}, e.trimError(ctx, "audio", err)
		}
		return e.measure(ctx, trimReq.Output, session.ModeAudio)
	}

	trimReq.Output = filepath.Join(workdir, "clip.mp4")
	trimReq.Codec = ffmpeg.Copy
	err := e.trimmer.Trim(ctx, trimReq)
	if err == nil {
		if size, sizeErr := e.trimmer.ProbeSize(trimReq.Output); sizeErr == nil && size > 0 {
			return e.measure(ctx, trimReq.Output, session.ModeVideo)
		}
		err = errors.New("stream copy produced an empty file")
	}
	if ctxErr := services.FromContext(ctx, "extract"); ctxErr != nil {
		return Segment{}, ctxErr
	}
	logger.Warn("stream copy failed, re-encoding",
		logging.Error(err),
		logging.String(logging.FieldEventType, "trim_reencode"),
		logging.String(logging.FieldImpact, "trim takes longer"),
	)
	_ = os.Remove(trimReq.Output)

	trimReq.Codec = ffmpeg.Reencode
	if err := e.trimmer.Trim(ctx, trimReq); err != nil {
		return Segment{}, e.trimError(ctx, "reencode", err)
	}
	return e.measure(ctx, trimReq.Output, session.ModeVideo)
}

func (e *Extractor) trimError(ctx context.Context, op string, err error) error {
	if ctxErr := services.FromContext(ctx, "extract"); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "extract", op, "ffmpeg exceeded tools.trim_timeout", err)
	}
	return services.Wrap(services.ErrTrim, "extract", op, "ffmpeg failed", err)
}

func (e *Extractor) measure(ctx context.Context, path string, mode session.Mode) (Segment, error) {
	size, err := e.trimmer.ProbeSize(path)
	if err != nil {
		return Segment{}, services.Wrap(services.ErrTrim, "extract", "measure", "stat segment", err)
	}
	if size == 0 {
		return Segment{}, services.Wrap(services.ErrTrim, "extract", "measure", "segment is empty", nil)
	}
	duration, err := e.trimmer.ProbeDuration(ctx, path)
	if err != nil {
		if ctxErr := services.FromContext(ctx, "extract"); ctxErr != nil {
			return Segment{}, ctxErr
		}
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "segment duration unknown", "duration_unknown",
			logging.Error(err),
			logging.String(logging.FieldImpact, "segment cannot be split"),
			logging.String(logging.FieldErrorHint, "check ffprobe"),
		)
		duration = math.NaN()
	}
	return Segment{Path: path, Duration: duration, Size: size, Mode: mode}, nil
}
