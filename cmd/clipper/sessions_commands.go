package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipper/internal/conversation"
	"clipper/internal/session"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and reset stored chat sessions",
	}
	cmd.AddCommand(newSessionsListCommand(ctx))
	cmd.AddCommand(newSessionsResetCommand(ctx))
	return cmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *session.SQLiteStore) error {
				sessions, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions stored")
					return nil
				}
				fmt.Fprintln(out, renderSessionsTable(sessions, time.Now()))
				return nil
			})
		},
	}
}

func renderSessionsTable(sessions []session.Session, now time.Time) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rangeText := ""
		if s.RangeEnd > s.RangeStart {
			rangeText = conversation.FormatSeconds(s.RangeStart) + "-" + conversation.FormatSeconds(s.RangeEnd)
		}
		quality := ""
		if s.Quality > 0 {
			quality = strconv.Itoa(s.Quality) + "p"
			if s.Fallback {
				quality += " (fallback)"
			}
		}
		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = now.Sub(s.UpdatedAt).Round(time.Second).String() + " ago"
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.ChatID, 10),
			string(s.State),
			s.Title,
			rangeText,
			quality,
			string(s.Mode),
			s.RunID,
			updated,
		})
	}
	return newTable("Chat", "State", "Title", "Range", "Quality", "Mode", "Run", "Updated").
		alignRight(0).
		withCaption("%d session(s)", len(rows)).
		render(rows)
}

func newSessionsResetCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset [chat-id...]",
		Short: "Return sessions to the awaiting-link state",
		Long:  "Return sessions to the awaiting-link state. Use while the bot is stopped; a running bot keeps its in-flight runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("pass one or more chat ids or --all")
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid chat id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(store *session.SQLiteStore) error {
				if all {
					listed, err := allChatIDs(cmd.Context(), store)
					if err != nil {
						return err
					}
					ids = listed
				}
				for _, id := range ids {
					if err := store.Reset(cmd.Context(), id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d session(s)\n", len(ids))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reset every stored session")
	return cmd
}

func allChatIDs(ctx context.Context, store *session.SQLiteStore) ([]int64, error) {
	sessions, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ChatID)
	}
	return ids, nil
}
