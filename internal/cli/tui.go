// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/ui/chat"
	"github.com/jeranaias/sermonchat/internal/ui/styles"
)

func newTUICmd(app *App) *cobra.Command {
	var conversation int64
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen chat (default)",
		Long: `Start the full-screen chat. Enter sends, Esc stops the answer being written,
Ctrl+N starts a new conversation and Ctrl+C quits. Logs go to
~/.sermonchat/sermonchat.log unless logging.file is set.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"fullscreen": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), app, conversation)
		},
	}
	cmd.Flags().Int64Var(&conversation, "conversation", 0, "continue a server conversation")
	return cmd
}

func runTUI(ctx context.Context, app *App, conversation int64) error {
	if err := RequiresTTY("start the chat"); err != nil {
		return err
	}
	client, err := app.client()
	if err != nil {
		return err
	}
	ctrl := app.newSession(client)
	if conversation > 0 {
		if err := seedFromHistory(ctx, client, ctrl, conversation); err != nil {
			return err
		}
	}

	saver := newTranscriptSaver(app)
	theme := styles.NewTheme(app.cfg.UI.Theme)
	m := chat.New(chat.Config{
		Session:       ctrl,
		Theme:         theme,
		Renderer:      chat.NewMarkdownRenderer(theme.GlamourStyle()),
		ShowCitations: app.cfg.UI.ShowCitations,
		WordWrap:      app.cfg.UI.WordWrap,
		Title:         "sermonchat " + Version,
		Context:       ctx,
		OnTurnEnd: func(snap session.Snapshot) {
			saver.Save(context.WithoutCancel(ctx), snap)
		},
	})

	app.logger.Info("Starting chat UI", zap.String("base_url", client.BaseURL()))
	p := tea.NewProgram(m, tea.WithAltScreen())

	// SIGTERM and friends arrive through ctx.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI: %w", err)
	}
	return nil
}
