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
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/auth"
	"github.com/jeranaias/sermonchat/internal/cloud"
	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/logging"
	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/storage"
)

// Version information, overridden at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APP
// =============================================================================

// App is the state shared by the commands of one invocation.
type App struct {
	// Flags
	configPath string
	baseURL    string
	token      string
	verbose    bool
	jsonOut    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error

	// logToFile routes logging away from the terminal (full-screen UI).
	logToFile bool
}

// NewApp creates an App writing to the given streams.
func NewApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{in: in, out: out, errOut: errOut, logger: zap.NewNop()}
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// setup loads configuration and builds the logger. It runs before every
// command. A lenient setup falls back to defaults when the config file is
// unusable.
func (a *App) setup(lenient bool) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		if !lenient {
			return err
		}
		fmt.Fprintf(a.errOut, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
		cfg = config.Default()
	}
	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
	}
	if a.token != "" {
		cfg.Auth.Token = a.token
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if a.logToFile && cfg.Logging.File == "" {
		if err := config.EnsureConfigDir(); err == nil {
			cfg.Logging.File = logging.DefaultFile()
		}
	}
	config.SetGlobal(cfg)
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	a.logger = logger
	a.logger.Debug("Configuration loaded",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("storage", cfg.Storage.Driver))
	return nil
}

// teardown releases everything opened during the command. It runs whether
// or not the command failed.
func (a *App) teardown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug("Close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// tokenProvider chains the configured token with the token file.
func (a *App) tokenProvider() auth.TokenProvider {
	chain := auth.Chain{auth.Static(a.cfg.Auth.Token)}
	if a.cfg.Auth.TokenFile == "" {
		return chain
	}
	fp, err := auth.NewFileProvider(a.cfg.Auth.TokenFile, a.logger)
	if err != nil {
		a.logger.Debug("Token file unavailable",
			zap.String("path", a.cfg.Auth.TokenFile), zap.Error(err))
		return chain
	}
	a.onClose(fp.Close)
	return append(chain, fp)
}

// client builds the service client from configuration.
func (a *App) client() (*cloud.Client, error) {
	api := a.cfg.API
	return cloud.New(api.BaseURL,
		cloud.WithTokenProvider(a.tokenProvider()),
		cloud.WithTimeout(time.Duration(api.TimeoutSecs)*time.Second),
		cloud.WithRateLimit(api.RateLimit, api.RateBurst),
		cloud.WithLanguage(api.Language),
		cloud.WithLogger(a.logger.Named("cloud")),
	)
}

// newSession creates a session controller over client.
func (a *App) newSession(client session.Streamer) *session.Controller {
	return session.New(client,
		session.WithLogger(a.logger.Named("session")),
		session.WithLanguage(a.cfg.API.Language),
		session.WithCancelClosesTransport(a.cfg.Session.CancelClosesTransport),
		session.WithAwaitMessageID(a.cfg.Session.AwaitMessageID),
	)
}

// openStore opens the transcript cache. A disabled cache is reported as
// storage.ErrDisabled.
func (a *App) openStore() (storage.Store, error) {
	s, err := storage.Open(a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.onClose(s.Close)
	return s, nil
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the command tree.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "sermonchat",
		Short: "Ask questions about the sermon archive",
		Long: `sermonchat is a terminal client for the sermon question-answering service.

Answers stream in as they are generated and cite the sermons they draw on.
Run without arguments to start the full-screen chat.`,
		Version:       fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["fullscreen"] == "true" {
				app.logToFile = true
			}
			return app.setup(cmd.Annotations["lenient"] == "true")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), app, 0)
		},
		Annotations: map[string]string{"fullscreen": "true"},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ValidationError{Field: "flag", Reason: err.Error()}
	})
	root.SetIn(app.in)
	root.SetOut(app.out)
	root.SetErr(app.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&app.configPath, "config", "c", "", "config file (default ~/.sermonchat/config.toml)")
	pf.StringVar(&app.baseURL, "base-url", "", "service base URL")
	pf.StringVar(&app.token, "token", "", "bearer token for the service")
	pf.BoolVarP(&app.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&app.jsonOut, "json", false, "JSON output")

	root.AddCommand(
		newTUICmd(app),
		newChatCmd(app),
		newAskCmd(app),
		newHistoryCmd(app),
		newFeedbackCmd(app),
		newTranscriptsCmd(app),
		newConfigCmd(app),
		newHealthCmd(app),
		newServeCmd(app),
	)
	return root
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// Execute runs the CLI with os.Args and returns the exit code.
func Execute() int {
	return Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Run runs the CLI with explicit arguments and streams.
func Run(args []string, in io.Reader, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app := NewApp(in, out, errOut)
	root := NewRootCmd(app)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	app.teardown()
	if err == nil {
		return ExitSuccess
	}
	var reported *reportedError
	if !errors.As(err, &reported) {
		DisplayError(errOut, err, app.jsonOut)
	}
	return GetExitCode(err)
}
