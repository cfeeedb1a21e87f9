// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command sermonchat-mock runs the local stand-in for the sermon
// question-answering service on its own, for containers and CI where the
// full client is not wanted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/logging"
	"github.com/jeranaias/sermonchat/internal/server"
)

func main() {
	var configPath, addr, token string
	cmd := &cobra.Command{
		Use:           "sermonchat-mock",
		Short:         "Run the mock sermon question-answering service",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if token != "" {
				cfg.Server.Token = token
			}

			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting mock service",
				zap.String("addr", cfg.Server.Addr),
				zap.Bool("token_required", cfg.Server.Token != ""))
			return server.New(cfg.Server, server.WithLogger(logger)).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.sermonchat/config.toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&token, "token", "", "require this bearer token")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
