package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipper/internal/daemon"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot in the foreground",
		Long: "Run the bot in the foreground until interrupted.\n\n" +
			"Updates arrive by long polling or, with telegram.mode = \"webhook\", on telegram.listen.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemon.Run(cmd.Context(), cfg, daemon.Options{LogLevel: ctx.logLevel()})
		},
	}
}
