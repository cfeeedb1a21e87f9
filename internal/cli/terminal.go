// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TERMINAL CAPABILITIES
// =============================================================================

const (
	// DefaultTerminalWidth is used when stdout has no size (pipes, files).
	DefaultTerminalWidth = 80

	// MinTerminalWidth keeps answers readable in very narrow windows.
	MinTerminalWidth = 40
)

// terminalCaps is what the commands need to know about the attached
// terminal. It is detected once per process.
type terminalCaps struct {
	stdin   bool // stdin is a terminal
	stdout  bool // stdout is a terminal
	profile termenv.Profile
}

var detectTerminal = sync.OnceValue(func() terminalCaps {
	caps := terminalCaps{
		stdin:  term.IsTerminal(int(os.Stdin.Fd())),
		stdout: term.IsTerminal(int(os.Stdout.Fd())),
	}

	// FORCE_COLOR wins over detection so answers keep their colours when
	// piped through a pager; NO_COLOR (https://no-color.org/) wins over both.
	out := termenv.NewOutput(os.Stdout)
	switch {
	case out.EnvNoColor():
		caps.profile = termenv.Ascii
	case os.Getenv("FORCE_COLOR") != "":
		caps.profile = termenv.ANSI256
		if p := out.EnvColorProfile(); p < caps.profile {
			caps.profile = p
		}
	case caps.stdout:
		caps.profile = out.EnvColorProfile()
	default:
		caps.profile = termenv.Ascii
	}
	return caps
})

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool { return detectTerminal().stdin }

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool { return detectTerminal().stdout }

// GetTerminalWidth returns the current width of stdout, clamped to
// MinTerminalWidth. The size is not cached since windows get resized
// between turns.
func GetTerminalWidth() int {
	if !detectTerminal().stdout {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, MinTerminalWidth)
}

// ColorsEnabled reports whether output is styled at all.
func ColorsEnabled() bool {
	return detectTerminal().profile != termenv.Ascii
}

// GetColorProfile returns the profile lipgloss renders with.
func GetColorProfile() termenv.Profile {
	return detectTerminal().profile
}

// =============================================================================
// INTERACTIVE COMMANDS
// =============================================================================

// RequiresTTY fails unless both stdin and stdout are terminals, which the
// REPL and the full-screen chat need for line editing and drawing.
func RequiresTTY(operation string) error {
	caps := detectTerminal()
	if caps.stdin && caps.stdout {
		return nil
	}
	return &TTYRequiredError{Operation: operation, Stdin: !caps.stdin}
}

// TTYRequiredError is returned when an interactive command runs without a
// terminal.
type TTYRequiredError struct {
	Operation string
	Stdin     bool // true when stdin was the missing terminal
}

func (e *TTYRequiredError) Error() string {
	stream := "stdout"
	if e.Stdin {
		stream = "stdin"
	}
	return "cannot " + e.Operation + ": " + stream + ` is not a terminal (try "sermonchat ask" for scripts)`
}
