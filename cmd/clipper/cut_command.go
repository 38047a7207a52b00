package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"clipper/internal/conversation"
	"clipper/internal/daemon"
	"clipper/internal/delivery"
	"clipper/internal/formats"
	"clipper/internal/pipeline"
	"clipper/internal/preflight"
	"clipper/internal/services"
	"clipper/internal/session"
)

type cutArgs struct {
	resource string
	start    int
	end      int
}

func parseCutArgs(args []string, maxRange int) (cutArgs, error) {
	start, err := conversation.ParseSeconds(args[1])
	if err != nil {
		return cutArgs{}, fmt.Errorf("start %q: %w", args[1], err)
	}
	end, err := conversation.ParseSeconds(args[2])
	if err != nil {
		return cutArgs{}, fmt.Errorf("end %q: %w", args[2], err)
	}
	if end <= start {
		return cutArgs{}, errors.New("end must be after start")
	}
	if maxRange > 0 && end-start > maxRange {
		return cutArgs{}, fmt.Errorf("range is %ds, limit is %ds (limits.max_range_seconds)", end-start, maxRange)
	}
	return cutArgs{resource: args[0], start: start, end: end}, nil
}

func newCutCommand(ctx *commandContext) *cobra.Command {
	var (
		height int
		audio  bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "cut <url> <start> <end>",
		Short: "Cut a range locally and write the parts to a directory",
		Long: "Run the full pipeline without Telegram: acquire, trim, split at limits.max_part_bytes,\n" +
			"and copy each part into --out. Times accept SS, MM:SS, or HH:MM:SS.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parsed, err := parseCutArgs(args, cfg.Limits.MaxRangeSeconds)
			if err != nil {
				return err
			}
			if err := preflight.EnsureFreeSpace(cmd.Context(), cfg.Paths.StagingDir, cfg.Limits.MinFreeBytes); err != nil {
				return err
			}

			logger := ctx.cliLogger()
			out := cmd.OutOrStdout()
			target, err := filepath.Abs(outDir)
			if err != nil {
				return err
			}
			transport := &delivery.DirTransport{
				Dir:    target,
				Printf: func(format string, a ...any) { fmt.Fprintf(out, format, a...) },
			}

			req := pipeline.Request{
				Resource: parsed.resource,
				Start:    parsed.start,
				End:      parsed.end,
				Mode:     session.ModeVideo,
			}
			if audio {
				req.Mode = session.ModeAudio
			}
			resolution := formats.NewResolver(daemon.NewProvider(cfg), cfg.Quality.Ladder, logger).Resolve(cmd.Context(), parsed.resource)
			req.Title = resolution.Title
			req.Height = height
			if opt, ok := formats.Find(resolution.Options, height); ok {
				req.Selector = opt.Selector
			} else if height > 0 {
				fmt.Fprintf(out, "%dp not offered; using the best format at or below it\n", height)
			}

			runner := daemon.NewRunner(cmd.Context(), cfg, transport, delivery.DefaultCaption, logger)
			runID := fmt.Sprintf("chat0-r%d", time.Now().UnixNano())
			res := runner.Run(services.WithRunID(cmd.Context(), runID), runID, req)
			if res.Err != nil {
				if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, services.ErrCanceled) {
					return context.Canceled
				}
				if hint := services.Hint(res.Err); hint != "" {
					return fmt.Errorf("%w\nhint: %s", res.Err, hint)
				}
				return res.Err
			}
			for _, path := range transport.Written {
				fmt.Fprintln(out, path)
			}
			suffix := ""
			if res.Degraded {
				suffix = " (fallback encoding)"
			}
			fmt.Fprintf(out, "Wrote %d part(s), %d bytes in %s%s\n", res.Parts, res.Bytes, res.Elapsed.Round(time.Millisecond), suffix)
			return nil
		},
	}
	cmd.Flags().IntVar(&height, "height", 0, "Preferred height class such as 720; 0 lets the provider choose")
	cmd.Flags().BoolVar(&audio, "audio", false, "Extract audio only")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory receiving the parts")
	return cmd
}
