// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/util"
)

// historyConcurrency bounds parallel requests for multi-id commands.
const historyConcurrency = 4

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   "Manage your conversations on the service",
		Long:    `List, show, rename and delete the conversations stored by the service. Requires a token.`,
	}

	var skip, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}
			return OutputJSON(app.out, app.jsonOut, "history list", func() (interface{}, error) {
				convs, err := client.ListConversations(cmd.Context(), skip, limit)
				if err != nil {
					return nil, err
				}
				if !app.jsonOut {
					fmt.Fprint(app.out, formatConversations(convs))
				}
				return convs, nil
			})
		},
	}
	list.Flags().IntVar(&skip, "skip", 0, "conversations to skip")
	list.Flags().IntVar(&limit, "limit", 20, "conversations to list")

	show := &cobra.Command{
		Use:   "show <id>...",
		Short: "Print conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}

			details := make([]*model.ConversationDetail, len(ids))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(historyConcurrency)
			for i, id := range ids {
				g.Go(func() error {
					d, err := client.GetConversation(ctx, id)
					if err != nil {
						return fmt.Errorf("conversation %d: %w", id, err)
					}
					details[i] = d
					return nil
				})
			}

			return OutputJSON(app.out, app.jsonOut, "history show", func() (interface{}, error) {
				if err := g.Wait(); err != nil {
					return nil, err
				}
				if !app.jsonOut {
					render := newRenderer(app.cfg.UI.Theme)
					for _, d := range details {
						fmt.Fprintf(app.out, "%s %s\n", TitleStyle.Render(d.Title), DimStyle.Render(fmt.Sprintf("#%d", d.ID)))
						fmt.Fprintln(app.out, RenderSeparator(util.StringWidth(d.Title)+len(strconv.FormatInt(d.ID, 10))+2))
						for _, m := range model.MessagesFromHistory(*d) {
							writeMessage(app.out, m, render, app.wrapWidth(), app.cfg.UI.ShowCitations)
							fmt.Fprintln(app.out)
						}
					}
				}
				return details, nil
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			return OutputJSON(app.out, app.jsonOut, "history rename", func() (interface{}, error) {
				conv, err := client.RenameConversation(cmd.Context(), ids[0], title)
				if err != nil {
					return nil, err
				}
				if !app.jsonOut {
					fmt.Fprintf(app.out, "%s #%d renamed to %q\n", RenderStatus("ok"), conv.ID, conv.Title)
				}
				return conv, nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}

			var (
				mu     sync.Mutex
				failed []string
				g      errgroup.Group
			)
			g.SetLimit(historyConcurrency)
			for _, id := range ids {
				g.Go(func() error {
					err := client.DeleteConversation(cmd.Context(), id)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						fmt.Fprintf(app.errOut, "%s #%d: %v\n", RenderStatus("fail"), id, err)
						failed = append(failed, strconv.FormatInt(id, 10))
						return err
					}
					fmt.Fprintf(app.out, "%s deleted #%d\n", RenderStatus("ok"), id)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return NewCommandError("history", "delete", "conversations "+strings.Join(failed, ", "), err)
			}
			return nil
		},
	}

	cmd.AddCommand(list, show, rename, del)
	return cmd
}

// parseIDs converts positional conversation ids.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(a, "#"), 10, 64)
		if err != nil || id <= 0 {
			return nil, NewValidationError("conversation id", a, "not a positive number", "sermonchat history show 12")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// formatConversations renders a conversation list as aligned rows.
func formatConversations(convs []model.ConversationSummary) string {
	if len(convs) == 0 {
		return "No conversations yet.\n"
	}
	var b strings.Builder
	for _, c := range convs {
		id := util.PadRight(fmt.Sprintf("#%d", c.ID), 7)
		title := util.PadRight(util.TruncateWidth(util.SingleLine(c.Title), 50), 50)
		fmt.Fprintf(&b, "%s %s %s\n", id, title, DimStyle.Render(c.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
	return b.String()
}
