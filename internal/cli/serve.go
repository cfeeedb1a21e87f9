// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/server"
)

type serveOptions struct {
	addr       string
	token      string
	tokenDelay time.Duration
}

func newServeCmd(app *App) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local mock of the question-answering service",
		Long: `Run a local stand-in for the service. It answers from a small built-in set of
sermon passages, streams answers word by word and keeps conversations in
memory. Useful for trying the client without an account.

With a token configured every API route requires it; without one the stream
is anonymous and history routes accept any caller.`,
		Example: `  sermonchat serve --addr 127.0.0.1:8000
  sermonchat --base-url http://127.0.0.1:8000 ask "What is grace?"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runServe(ctx, app, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.token, "server-token", "", "require this bearer token")
	cmd.Flags().DurationVar(&opts.tokenDelay, "token-delay", -1, "pause between streamed words")
	return cmd
}

func runServe(ctx context.Context, app *App, opts serveOptions) error {
	cfg := app.cfg.Server
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.token != "" {
		cfg.Token = opts.token
	}
	return serveMock(ctx, cfg, app.logger, opts.tokenDelay, func(addr string) {
		fmt.Fprintf(app.errOut, "%s mock service listening on http://%s\n", RenderStatus("ok"), addr)
	})
}

// serveMock runs the mock service until ctx is cancelled. A negative delay
// keeps the configured one.
func serveMock(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger, delay time.Duration, ready func(addr string)) error {
	opts := []server.Option{server.WithLogger(logger.Named("server"))}
	if delay >= 0 {
		opts = append(opts, server.WithTokenDelay(delay))
	}
	srv := server.New(cfg, opts...)
	logger.Info("Starting mock service",
		zap.String("addr", cfg.Addr),
		zap.Bool("token_required", cfg.Token != ""))
	if ready != nil {
		ready(cfg.Addr)
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		return NewCommandError("serve", "listen", cfg.Addr, err)
	}
	return nil
}
