// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the sermonchat command line.
//
// Every command is a cobra command hanging off the root built by
// NewRootCmd. Commands share an App, which loads configuration, builds the
// zap logger and constructs the service client and session controller.
//
// # Key Types
//
//   - App: Shared state for one invocation (config, logger, output streams)
//   - JSONResponse: Envelope written by commands run with --json
//   - CommandError, ValidationError, NotFoundError: Structured failures
//     mapped onto exit codes by GetExitCode
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
//
// # Commands Overview
//
//   - tui (default): Full-screen chat
//   - chat: Line-oriented REPL with history and slash commands
//   - ask: One question, answer streamed to stdout
//   - history: List, show, rename and delete server conversations
//   - feedback: Rate an answer
//   - transcripts: Browse the local transcript cache
//   - config: Show, initialise and locate the config file
//   - health: Probe the service
//   - serve: Run the local mock service
package cli
