package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/deps"
	"clipper/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check directories, disk space, external tools, and the bot token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg, !offline)
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if cfg.Telegram.Token == "" {
				fmt.Fprintln(out, renderStatusLine("Telegram", statusWarn, "telegram.token not set", colorize))
			}
			if cfg.API.Bind != "" && cfg.API.Token == "" {
				fmt.Fprintln(out, renderStatusLine("HTTP API", statusWarn, "listening on "+cfg.API.Bind+" without api.token", colorize))
			}

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("External tools", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderDependencyTable(statuses))

			if len(preflight.Failed(results)) > 0 || len(deps.Missing(statuses)) > 0 {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Telegram getMe check")
	return cmd
}

func renderDependencyTable(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		detail := s.Version
		if !s.Available {
			detail = s.Detail
		}
		rows = append(rows, []string{s.Name, s.Command, yesNo(s.Available), strings.TrimSpace(detail)})
	}
	return newTable("Tool", "Command", "Available", "Version / Detail").render(rows)
}
