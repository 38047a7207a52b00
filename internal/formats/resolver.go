package formats

import (
	"context"
	"log/slog"
	"slices"

	"clipper/internal/logging"
	"clipper/internal/services/ytdlp"
)

// BestSelector is the provider-chosen selector used when nothing was offered.
const BestSelector = "best"

// Option is one offered quality for a resource.
type Option struct {
	Height   int    `json:"height"`
	Selector string `json:"selector"`
	Ext      string `json:"ext,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Resolution is the outcome of probing a resource. A degraded resolution has
// no options and carries the reason for the operator log.
type Resolution struct {
	Options  []Option
	Title    string
	Duration float64
	Degraded bool
	Reason   string
}

// Prober lists a resource's formats.
type Prober interface {
	Probe(ctx context.Context, url string) (ytdlp.Media, error)
}

// Resolver turns provider formats into the offered quality ladder.
type Resolver struct {
	prober Prober
	ladder []int
	logger *slog.Logger
}

// NewResolver constructs a Resolver restricted to ladder.
func NewResolver(prober Prober, ladder []int, logger *slog.Logger) *Resolver {
	return &Resolver{
		prober: prober,
		ladder: append([]int(nil), ladder...),
		logger: logging.NewComponentLogger(logger, "formats"),
	}
}

// Resolve probes resource. It never fails: a probe error yields a degraded
// resolution so the conversation can continue with the fallback selector.
func (r *Resolver) Resolve(ctx context.Context, resource string) Resolution {
	logger := logging.WithContext(ctx, r.logger)
	media, err := r.prober.Probe(ctx, resource)
	if err != nil {
		logging.WarnWithContext(logger, "format probe failed; falling back to best available", "format_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "user cannot choose a quality for this resource"),
			logging.String(logging.FieldErrorHint, "check yt-dlp version and network access"),
		)
		return Resolution{Degraded: true, Reason: err.Error()}
	}

	options := Select(media.Formats, r.ladder)
	res := Resolution{Options: options, Title: media.Title, Duration: media.Duration}
	if len(options) == 0 {
		res.Degraded = true
		res.Reason = "no video+audio format on the quality ladder"
	}
	logger.Info("formats resolved",
		logging.Int("formats_total", len(media.Formats)),
		logging.Any("heights", Heights(options)),
		logging.Bool("degraded", res.Degraded),
		logging.String(logging.FieldEventType, "formats_resolved"),
	)
	return res
}

// Select keeps progressive formats whose height is on ladder, one per height,
// preferring the highest bitrate and then the largest size. The result is
// ascending by height.
func Select(formats []ytdlp.Format, ladder []int) []Option {
	best := make(map[int]ytdlp.Format)
	for _, f := range formats {
		if f.ID == "" || !f.Progressive() || !slices.Contains(ladder, f.Height) {
			continue
		}
		if current, ok := best[f.Height]; !ok || better(f, current) {
			best[f.Height] = f
		}
	}
	options := make([]Option, 0, len(best))
	for height, f := range best {
		options = append(options, Option{Height: height, Selector: f.ID, Ext: f.Ext, Size: f.Size()})
	}
	slices.SortFunc(options, func(a, b Option) int { return a.Height - b.Height })
	return options
}

func better(candidate, current ytdlp.Format) bool {
	if candidate.TBR != current.TBR {
		return candidate.TBR > current.TBR
	}
	return candidate.Size() > current.Size()
}

// Heights returns the heights of options in order.
func Heights(options []Option) []int {
	heights := make([]int, 0, len(options))
	for _, opt := range options {
		heights = append(heights, opt.Height)
	}
	return heights
}

// Find returns the option with the given height.
func Find(options []Option, height int) (Option, bool) {
	for _, opt := range options {
		if opt.Height == height {
			return opt, true
		}
	}
	return Option{}, false
}

// BestProgressive returns the tallest video+audio format at or below
// maxHeight. A maxHeight of zero means no limit.
func BestProgressive(formats []ytdlp.Format, maxHeight int) (ytdlp.Format, bool) {
	var best ytdlp.Format
	found := false
	for _, f := range formats {
		if !f.Progressive() || f.Height <= 0 {
			continue
		}
		if maxHeight > 0 && f.Height > maxHeight {
			continue
		}
		if !found || f.Height > best.Height || (f.Height == best.Height && better(f, best)) {
			best, found = f, true
		}
	}
	return best, found
}

// Progressive returns every video+audio format with a known height, ascending.
func Progressive(formats []ytdlp.Format) []ytdlp.Format {
	out := make([]ytdlp.Format, 0, len(formats))
	for _, f := range formats {
		if f.Progressive() && f.Height > 0 {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b ytdlp.Format) int { return a.Height - b.Height })
	return out
}
