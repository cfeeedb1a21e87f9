// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/storage"
	"github.com/jeranaias/sermonchat/internal/util"
)

// =============================================================================
// TRANSCRIPT SAVER
// =============================================================================

// transcriptSaver writes finished turns to the local cache. Sessions with no
// server conversation are keyed by their first message so every turn of one
// session replaces the same transcript.
type transcriptSaver struct {
	store  storage.Store
	logger *zap.Logger

	mu  sync.Mutex
	ids map[string]string // first message id -> transcript id
}

// newTranscriptSaver opens the cache. A disabled or unusable cache yields a
// saver that does nothing.
func newTranscriptSaver(app *App) *transcriptSaver {
	ts := &transcriptSaver{logger: app.logger, ids: make(map[string]string)}
	s, err := app.openStore()
	switch {
	case errors.Is(err, storage.ErrDisabled):
	case err != nil:
		app.logger.Warn("Transcript cache unavailable", zap.Error(err))
	default:
		ts.store = s
	}
	return ts
}

// Save stores the finalized messages of snap.
func (ts *transcriptSaver) Save(ctx context.Context, snap session.Snapshot) {
	if ts == nil || ts.store == nil || len(snap.Messages) == 0 {
		return
	}
	t := storage.FromSnapshot(snap.ConversationID, snap.Messages)
	if len(t.Messages) == 0 {
		return
	}

	first := t.Messages[0].ID
	ts.mu.Lock()
	if t.ID == "" {
		t.ID = ts.ids[first]
	}
	ts.mu.Unlock()

	if err := ts.store.Save(ctx, t); err != nil {
		ts.logger.Warn("Transcript not saved", zap.Error(err))
		return
	}

	ts.mu.Lock()
	ts.ids[first] = t.ID
	ts.mu.Unlock()
	ts.logger.Debug("Transcript saved",
		zap.String("id", t.ID), zap.Int("messages", len(t.Messages)))
}

// =============================================================================
// TRANSCRIPTS COMMAND
// =============================================================================

func newTranscriptsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transcripts",
		Aliases: []string{"t"},
		Short:   "Browse locally saved transcripts",
		Long: `Every finished chat is saved to the local transcript cache (see the
[storage] section of the config). Transcripts never contain partial answers.`,
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved transcripts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			return OutputJSON(app.out, app.jsonOut, "transcripts list", func() (interface{}, error) {
				var (
					metas []storage.TranscriptMeta
					err   error
				)
				if search != "" {
					metas, err = store.Search(cmd.Context(), search)
				} else {
					metas, err = store.List(cmd.Context())
				}
				if err != nil {
					return nil, err
				}
				if metas == nil {
					metas = []storage.TranscriptMeta{}
				}
				if !app.jsonOut {
					fmt.Fprintln(app.out, strings.TrimRight(storage.FormatList(metas), "\n"))
				}
				return metas, nil
			})
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "only transcripts containing this text")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTranscript(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			return OutputJSON(app.out, app.jsonOut, "transcripts show", func() (interface{}, error) {
				if !app.jsonOut {
					fmt.Fprintln(app.out, TitleStyle.Render(t.Title))
					fmt.Fprintln(app.out, RenderSeparator(util.StringWidth(t.Title)))
					render := newRenderer(app.cfg.UI.Theme)
					for _, m := range t.Messages {
						writeMessage(app.out, m, render, app.wrapWidth(), app.cfg.UI.ShowCitations)
						fmt.Fprintln(app.out)
					}
				}
				return t, nil
			})
		},
	}

	var output string
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a transcript as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTranscript(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			md := t.ExportMarkdown()
			if output == "" || output == "-" {
				fmt.Fprint(app.out, md)
				return nil
			}
			path := util.ExpandHome(output)
			if err := util.AtomicWriteFile(path, []byte(md), 0o600); err != nil {
				return NewCommandError("transcripts", "export", "write "+path, err)
			}
			fmt.Fprintf(app.errOut, "%s exported to %s\n", RenderStatus("ok"), path)
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	del := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openStore()
			if err != nil {
				return err
			}
			var failed []string
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					fmt.Fprintf(app.errOut, "%s %s: %v\n", RenderStatus("fail"), id, err)
					failed = append(failed, id)
					continue
				}
				fmt.Fprintf(app.out, "%s deleted %s\n", RenderStatus("ok"), id)
			}
			if len(failed) > 0 {
				return &NotFoundError{Resource: "transcript", ID: strings.Join(failed, ", ")}
			}
			return nil
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return NewValidationError("keep", fmt.Sprint(keep), "must not be negative", "sermonchat transcripts prune --keep 50")
			}
			store, err := app.openStore()
			if err != nil {
				return err
			}
			n, err := storage.Prune(cmd.Context(), store, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "%s removed %d transcript(s)\n", RenderStatus("ok"), n)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 50, "number of transcripts to keep")

	cmd.AddCommand(list, show, export, del, prune)
	return cmd
}

func loadTranscript(ctx context.Context, app *App, id string) (*storage.Transcript, error) {
	store, err := app.openStore()
	if err != nil {
		return nil, err
	}
	t, err := store.Load(ctx, id)
	if errors.Is(err, storage.ErrTranscriptNotFound) {
		return nil, &NotFoundError{Resource: "transcript", ID: id}
	}
	return t, err
}
