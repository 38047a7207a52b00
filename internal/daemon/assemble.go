package daemon

import (
	"context"
	"log/slog"

	"clipper/internal/config"
	"clipper/internal/delivery"
	"clipper/internal/extract"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/pipeline"
	"clipper/internal/preflight"
	"clipper/internal/services/ytdlp"
	"clipper/internal/split"
)

// NewProvider builds the yt-dlp client configured by cfg.
func NewProvider(cfg *config.Config) *ytdlp.Client {
	return ytdlp.New(cfg.Tools.YtDlp, ytdlp.WithTimeouts(cfg.ProbeTimeout(), cfg.AcquireTimeout()))
}

// NewRunner assembles extract, split, and delivery into a pipeline runner
// that uploads through transport.
func NewRunner(ctx context.Context, cfg *config.Config, transport delivery.Transport, caption delivery.CaptionFunc, logger *slog.Logger, opts ...pipeline.Option) *pipeline.Runner {
	tool := ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, ffmpeg.WithTimeout(cfg.TrimTimeout()))
	extractor := extract.New(NewProvider(cfg), tool, cfg.Tools.AcquireMode, logger)
	splitter := split.New(tool, cfg.Limits.MaxPartBytes, logger)
	coordinator := delivery.NewCoordinator(transport, cfg.Limits.MaxPartBytes, logger, delivery.WithCaption(caption))

	minFree := cfg.Limits.MinFreeBytes
	all := append([]pipeline.Option{
		pipeline.WithSpaceCheck(func(ctx context.Context, dir string) error {
			return preflight.EnsureFreeSpace(ctx, dir, minFree)
		}),
	}, opts...)
	return pipeline.NewRunner(ctx, cfg.Paths.StagingDir, extractor, splitter, coordinator, logger, all...)
}
