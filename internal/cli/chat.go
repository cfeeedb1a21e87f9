// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/cloud"
	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/ui/chat"
	"github.com/jeranaias/sermonchat/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the part of liner the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// chatInput wraps liner with a history file.
type chatInput struct {
	line        *liner.State
	historyFile string
}

func newChatInput(historyFile string) *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &chatInput{line: line, historyFile: util.ExpandHome(historyFile)}
	if in.historyFile == "" {
		if dir, err := config.ConfigDir(); err == nil {
			in.historyFile = filepath.Join(dir, "history")
		}
	}
	if f, err := os.Open(in.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *chatInput) Prompt(prompt string) (string, error) {
	return in.line.Prompt(prompt)
}

func (in *chatInput) AppendHistory(item string) {
	in.line.AppendHistory(item)
}

// Close saves the history (owner-only permissions) and restores the
// terminal.
func (in *chatInput) Close() error {
	defer in.line.Close()
	if in.historyFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = in.line.WriteHistory(f)
	return err
}

// =============================================================================
// REPL
// =============================================================================

// historyClient is the part of the service client the REPL uses besides
// the stream.
type historyClient interface {
	ListConversations(ctx context.Context, skip, limit int) ([]model.ConversationSummary, error)
	GetConversation(ctx context.Context, id int64) (*model.ConversationDetail, error)
	SubmitFeedback(ctx context.Context, req cloud.FeedbackRequest) (*model.Feedback, error)
}

// repl is one interactive chat.
type repl struct {
	ctrl   *session.Controller
	client historyClient
	input  lineReader
	saver  *transcriptSaver
	out    io.Writer
	errOut io.Writer
	render chat.MarkdownRenderer
	width  int
	cites  bool
	onTurn func(ctx context.Context) context.Context
}

func newChatCmd(app *App) *cobra.Command {
	var conversation int64
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the terminal",
		Long: `Start a line-oriented chat. Answers stream as they arrive and follow-up
questions stay in the same conversation.

Commands:
  /help               Show commands
  /new                Start a new conversation
  /history            List your recent conversations
  /load <id>          Continue a conversation
  /good [comment]     Rate the last answer as helpful
  /bad [comment]      Rate the last answer as unhelpful
  /quit               Exit (also Ctrl+D)

Ctrl+C stops the answer being written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("chat"); err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			input := newChatInput(app.cfg.UI.HistoryFile)
			defer func() {
				if err := input.Close(); err != nil {
					app.logger.Debug("History not saved", zap.Error(err))
				}
			}()

			r := &repl{
				ctrl:   app.newSession(client),
				client: client,
				input:  input,
				saver:  newTranscriptSaver(app),
				out:    app.out,
				errOut: app.errOut,
				render: newRenderer(app.cfg.UI.Theme),
				width:  app.wrapWidth(),
				cites:  app.cfg.UI.ShowCitations,
				onTurn: interruptible,
			}
			if conversation > 0 {
				if err := seedFromHistory(cmd.Context(), client, r.ctrl, conversation); err != nil {
					return err
				}
				r.printConversation()
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().Int64Var(&conversation, "conversation", 0, "continue a server conversation")
	return cmd
}

// interruptible returns a context cancelled by Ctrl+C. The signal handler is
// released when the turn ends.
func interruptible(ctx context.Context) context.Context {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	context.AfterFunc(ctx, stop)
	return ctx
}

// run reads questions until EOF or /quit.
func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, TitleStyle.Render("sermonchat")+DimStyle.Render("  /help for commands, Ctrl+D to exit"))
	for {
		line, err := r.input.Prompt("you> ")
		if err != nil {
			// EOF or Ctrl+C at the prompt.
			fmt.Fprintln(r.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.input.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				fmt.Fprintf(r.errOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if quit {
				return nil
			}
			continue
		}
		if err := r.ask(ctx, line); err != nil {
			fmt.Fprintf(r.errOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// ask runs one turn, streaming the answer.
func (r *repl) ask(ctx context.Context, question string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.onTurn != nil {
		turnCtx = r.onTurn(turnCtx)
	}

	printer := newAnswerPrinter(r.out)
	unsubscribe := r.ctrl.Subscribe(printer.Observe)
	fmt.Fprintln(r.out)
	err := r.ctrl.Submit(turnCtx, question)
	unsubscribe()

	if printer.Printed() != "" {
		fmt.Fprintln(r.out)
	}
	if err == nil && turnCtx.Err() != nil {
		fmt.Fprintln(r.errOut, WarningStyle.Render("[Cancelled]"))
	}
	snap := r.ctrl.Snapshot()
	r.saver.Save(context.WithoutCancel(ctx), snap)
	if err != nil {
		return err
	}
	if msg, ok := snap.LastAssistant(); ok && r.cites {
		writeCitations(r.out, msg.Citations, r.width)
	}
	fmt.Fprintln(r.out)
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and reports whether the REPL should exit.
func (r *repl) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/q", "/exit":
		return true, nil
	case "/help", "/h", "/?":
		r.printHelp()
	case "/new", "/clear":
		r.ctrl.Reset()
		fmt.Fprintln(r.out, DimStyle.Render("Started a new conversation."))
	case "/history":
		return false, r.listHistory(ctx)
	case "/load":
		if len(args) != 1 {
			return false, NewValidationError("conversation id", "", "missing", "/load 12")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return false, NewValidationError("conversation id", args[0], "not a positive number", "/load 12")
		}
		detail, err := r.client.GetConversation(ctx, id)
		if err != nil {
			return false, err
		}
		if err := r.ctrl.Seed(id, model.MessagesFromHistory(*detail)); err != nil {
			return false, err
		}
		r.printConversation()
	case "/good", "/bad":
		return false, r.feedback(ctx, name == "/good", strings.Join(args, " "))
	default:
		return false, NewValidationError("command", name, "unknown command", "/help")
	}
	return false, nil
}

func (r *repl) printHelp() {
	rows := [][2]string{
		{"/new", "start a new conversation"},
		{"/history", "list recent conversations"},
		{"/load <id>", "continue a conversation"},
		{"/good [comment]", "rate the last answer as helpful"},
		{"/bad [comment]", "rate the last answer as unhelpful"},
		{"/quit", "exit"},
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s %s\n", RenderLabel(row[0]), row[1])
	}
}

func (r *repl) listHistory(ctx context.Context) error {
	convs, err := r.client.ListConversations(ctx, 0, 20)
	if err != nil {
		return err
	}
	fmt.Fprint(r.out, formatConversations(convs))
	return nil
}

func (r *repl) feedback(ctx context.Context, positive bool, comment string) error {
	msg, ok := r.ctrl.Snapshot().LastAssistant()
	if !ok || !msg.CanReceiveFeedback() {
		return errors.New("no saved answer to rate yet")
	}
	fb, err := r.client.SubmitFeedback(ctx, cloud.FeedbackRequest{
		MessageID:  *msg.ServerMessageID,
		IsPositive: positive,
		Comment:    comment,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s feedback %s recorded\n", RenderStatus("ok"), fb.Symbol())
	return nil
}

func (r *repl) printConversation() {
	snap := r.ctrl.Snapshot()
	for _, m := range snap.Messages {
		writeMessage(r.out, m, r.render, r.width, r.cites)
		fmt.Fprintln(r.out)
	}
}
