// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sermonchat/internal/cloud"
	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/session"
)

// maxStdinQuestion bounds a question read from stdin.
const maxStdinQuestion = 64 * 1024

type askOptions struct {
	conversation int64
	raw          bool
}

func newAskCmd(app *App) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer",
		Long: `Ask one question. The answer streams to stdout as it arrives; on a terminal
it is rendered as Markdown once complete. With no arguments the question is
read from stdin. Ctrl+C stops the answer and keeps what arrived.`,
		Example: `  sermonchat ask "Apa kata Roma 8 tentang pengharapan?"
  echo "What is grace?" | sermonchat ask
  sermonchat ask --conversation 12 "And what about faith?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), app, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().Int64Var(&opts.conversation, "conversation", 0, "continue a server conversation")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "stream plain text even on a terminal")
	return cmd
}

func runAsk(ctx context.Context, app *App, question string, opts askOptions) error {
	question = strings.TrimSpace(question)
	if question == "" && app.in != nil {
		b, err := io.ReadAll(io.LimitReader(app.in, maxStdinQuestion))
		if err != nil {
			return fmt.Errorf("read question: %w", err)
		}
		question = strings.TrimSpace(string(b))
	}
	if question == "" {
		return NewValidationError("question", "", "question is empty", `sermonchat ask "What is grace?"`)
	}

	client, err := app.client()
	if err != nil {
		return err
	}
	ctrl := app.newSession(client)
	if opts.conversation > 0 {
		if err := seedFromHistory(ctx, client, ctrl, opts.conversation); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	width := app.wrapWidth()
	markdown := !app.jsonOut && !opts.raw && IsStdoutTTY()

	var printer *answerPrinter
	if !app.jsonOut && !markdown {
		printer = newAnswerPrinter(app.out)
		unsubscribe := ctrl.Subscribe(printer.Observe)
		defer unsubscribe()
	}
	if markdown {
		fmt.Fprintln(app.errOut, DimStyle.Render("Searching sermons..."))
	}

	err = ctrl.Submit(ctx, question)
	cancelled := err == nil && ctx.Err() != nil
	snap := ctrl.Snapshot()
	newTranscriptSaver(app).Save(context.WithoutCancel(ctx), snap)

	if app.jsonOut {
		return OutputJSON(app.out, true, "ask", func() (interface{}, error) {
			return newAnswerJSON(snap, cancelled), err
		})
	}

	msg, _ := snap.LastAssistant()
	switch {
	case markdown && err == nil:
		fmt.Fprintln(app.out, newRenderer(app.cfg.UI.Theme)(msg.Content, width))
	case printer != nil && printer.Printed() != "":
		fmt.Fprintln(app.out)
	}
	if cancelled {
		fmt.Fprintln(app.errOut, WarningStyle.Render("[Cancelled]"))
	}
	if err != nil {
		return err
	}

	if app.cfg.UI.ShowCitations {
		writeCitations(app.out, msg.Citations, width)
	}
	if snap.ConversationID != nil {
		fmt.Fprintln(app.errOut, DimStyle.Render(fmt.Sprintf("conversation #%d", *snap.ConversationID)))
	}
	return nil
}

// seedFromHistory loads a server conversation into ctrl.
func seedFromHistory(ctx context.Context, client *cloud.Client, ctrl *session.Controller, id int64) error {
	detail, err := client.GetConversation(ctx, id)
	if err != nil {
		return NewCommandError("conversation", "load", fmt.Sprintf("conversation %d", id), err)
	}
	return ctrl.Seed(id, model.MessagesFromHistory(*detail))
}

// wrapWidth is the width answers are wrapped at.
func (a *App) wrapWidth() int {
	w := GetTerminalWidth()
	if a.cfg != nil && a.cfg.UI.WordWrap > 0 && a.cfg.UI.WordWrap < w {
		w = a.cfg.UI.WordWrap
	}
	return w
}
