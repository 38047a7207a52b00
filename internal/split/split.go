package split

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"clipper/internal/extract"
	"clipper/internal/logging"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/services"
)

// Range is a time window in seconds.
type Range struct {
	Start float64
	End   float64
}

// Duration returns the window length.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// Part is one deliverable piece of a segment.
type Part struct {
	Path    string
	Ordinal int
	Size    int64
	Start   float64
	End     float64
}

// Plan divides a segment of size bytes and duration seconds into windows
// expected to stay under maxBytes, assuming a constant byte rate. A segment
// that fits, or whose duration is unknown, is returned as one window.
func Plan(size int64, duration float64, maxBytes int64) []Range {
	whole := []Range{{Start: 0, End: duration}}
	if maxBytes <= 0 || size <= maxBytes {
		return whole
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return whole
	}
	n := int((size + maxBytes - 1) / maxBytes)
	out := make([]Range, n)
	for i := range n {
		out[i] = Range{
			Start: duration * float64(i) / float64(n),
			End:   duration * float64(i+1) / float64(n),
		}
	}
	out[n-1].End = duration
	return out
}

// Trimmer is the cutting capability the splitter needs.
type Trimmer interface {
	Trim(ctx context.Context, req ffmpeg.TrimRequest) error
	ProbeSize(path string) (int64, error)
}

// Splitter materializes a Plan with stream-copy cuts.
type Splitter struct {
	trimmer  Trimmer
	maxBytes int64
	logger   *slog.Logger
}

// New constructs a Splitter bounded by maxBytes per part.
func New(trimmer Trimmer, maxBytes int64, logger *slog.Logger) *Splitter {
	return &Splitter{
		trimmer:  trimmer,
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "split"),
	}
}

// Split returns the parts of seg in ordinal order. A segment that needs no
// split comes back as its single part without any tool call.
func (s *Splitter) Split(ctx context.Context, seg extract.Segment, workdir string) ([]Part, error) {
	ctx = services.WithStage(ctx, "split")
	logger := logging.WithContext(ctx, s.logger)

	plan := Plan(seg.Size, seg.Duration, s.maxBytes)
	if len(plan) == 1 {
		return []Part{{Path: seg.Path, Ordinal: 1, Size: seg.Size, Start: 0, End: seg.Duration}}, nil
	}
	logger.Info("splitting segment",
		logging.Int("parts", len(plan)),
		logging.Int64("size_bytes", seg.Size),
		logging.Float64("bytes_per_second", float64(seg.Size)/seg.Duration),
		logging.String(logging.FieldEventType, "split_planned"),
	)

	ext := strings.ToLower(filepath.Ext(seg.Path))
	if ext == "" {
		ext = ".mp4"
	}
	parts := make([]Part, 0, len(plan))
	for i, window := range plan {
		if ctxErr := services.FromContext(ctx, "split"); ctxErr != nil {
			return nil, ctxErr
		}
		out := filepath.Join(workdir, fmt.Sprintf("part-%02d%s", i+1, ext))
		err := s.trimmer.Trim(ctx, ffmpeg.TrimRequest{
			Input:    seg.Path,
			Start:    window.Start,
			Duration: window.Duration(),
			Output:   out,
			Codec:    ffmpeg.Copy,
		})
		if err != nil {
			if ctxErr := services.FromContext(ctx, "split"); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, services.Wrap(services.ErrSplit, "split", "cut", fmt.Sprintf("part %d/%d", i+1, len(plan)), err)
		}
		size, err := s.trimmer.ProbeSize(out)
		if err != nil {
			return nil, services.Wrap(services.ErrSplit, "split", "measure", fmt.Sprintf("part %d/%d", i+1, len(plan)), err)
		}
		if size > s.maxBytes {
			logger.Warn("part above ceiling after cut",
				logging.Int("ordinal", i+1),
				logging.Int64("size_bytes", size),
				logging.String(logging.FieldEventType, "split_part_oversized"),
				logging.String(logging.FieldImpact, "delivery will reject this part"),
			)
		}
		parts = append(parts, Part{Path: out, Ordinal: i + 1, Size: size, Start: window.Start, End: window.End})
	}
	return parts, nil
}
