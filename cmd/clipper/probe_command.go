package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipper/internal/conversation"
	"clipper/internal/daemon"
	"clipper/internal/formats"
	"clipper/internal/services/ytdlp"
)

type probeOutput struct {
	Title    string           `json:"title"`
	Duration float64          `json:"duration"`
	Offered  []formats.Option `json:"offered"`
	Formats  []ytdlp.Format   `json:"progressive"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "List the qualities the bot would offer for a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			media, err := daemon.NewProvider(cfg).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result := probeOutput{
				Title:    media.Title,
				Duration: media.Duration,
				Offered:  formats.Select(media.Formats, cfg.Quality.Ladder),
				Formats:  formats.Progressive(media.Formats),
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintf(out, "Title:    %s\n", result.Title)
			fmt.Fprintf(out, "Duration: %s\n", conversation.FormatSeconds(int(result.Duration)))
			if len(result.Offered) == 0 {
				fmt.Fprintln(out, "No quality on the ladder is available; the bot would fall back to best.")
				return nil
			}
			fmt.Fprintln(out, renderOfferedTable(result.Offered))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func renderOfferedTable(options []formats.Option) string {
	rows := make([][]string, 0, len(options))
	for _, opt := range options {
		size := "?"
		if opt.Size > 0 {
			size = fmt.Sprintf("%.1f MiB", float64(opt.Size)/(1<<20))
		}
		rows = append(rows, []string{strconv.Itoa(opt.Height) + "p", opt.Selector, opt.Ext, size})
	}
	return newTable("Quality", "Format", "Ext", "Size").alignRight(0, 3).render(rows)
}
