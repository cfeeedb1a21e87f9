// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/util"
)

var lenient = map[string]string{"lenient": "true"}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and initialise configuration",
		Long: `Configuration is read from ~/.sermonchat/config.toml (or .yaml/.json).
SERMONCHAT_* environment variables and a .env file override the file.`,
	}

	show := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration (secrets redacted)",
		Args:        cobra.NoArgs,
		Annotations: lenient,
		RunE: func(cmd *cobra.Command, args []string) error {
			return OutputJSON(app.out, app.jsonOut, "config show", func() (interface{}, error) {
				safe := app.cfg.Redacted()
				if !app.jsonOut {
					fmt.Fprint(app.out, safe.String())
				}
				return safe, nil
			})
		},
	}

	path := &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Args:        cobra.NoArgs,
		Annotations: lenient,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := configFilePath(app)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.out, p)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default config file",
		Args:        cobra.NoArgs,
		Annotations: lenient,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := configFilePath(app)
			if err != nil {
				return err
			}
			if _, err := os.Stat(p); err == nil && !force {
				return NewCommandError("config", "init", p+" already exists (use --force)", nil)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(config.Default(), p); err != nil {
				return NewCommandError("config", "init", "write "+p, err)
			}
			fmt.Fprintf(app.out, "%s wrote %s\n", RenderStatus("ok"), p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Loading already validated; reaching here means it passed.
			fmt.Fprintf(app.out, "%s configuration is valid\n", RenderStatus("ok"))
			return nil
		},
	}

	cmd.AddCommand(show, path, initCmd, validate)
	return cmd
}

// configFilePath is --config when given, else the default location.
func configFilePath(app *App) (string, error) {
	if app.configPath != "" {
		return util.ExpandHome(app.configPath), nil
	}
	return config.ConfigPath()
}
