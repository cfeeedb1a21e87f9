// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jeranaias/sermonchat/internal/cloud"
	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a command failure with context.
type CommandError struct {
	Command string // e.g. "history"
	Action  string // e.g. "rename"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError is a missing local or remote resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewCommandError creates a command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a validation error with an example of valid
// input.
func NewValidationError(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// DisplayErrorJSON writes err as a structured JSON object.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":     err.Error(),
		"success":   false,
		"exit_code": GetExitCode(err),
	}

	var (
		cmdErr      *CommandError
		validErr    *ValidationError
		notFoundErr *NotFoundError
	)
	switch {
	case errors.As(err, &validErr):
		output["error_type"] = "validation_error"
		output["field"] = validErr.Field
		output["reason"] = validErr.Reason
	case errors.As(err, &notFoundErr):
		output["error_type"] = "not_found_error"
		output["resource"] = notFoundErr.Resource
		output["id"] = notFoundErr.ID
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error onto a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		validErr    *ValidationError
		notFoundErr *NotFoundError
		cfgErrs     config.ValidateErrors
		cfgErr      config.ValidationError
		turnErr     *session.TurnError
		netErr      net.Error
	)
	switch {
	case errors.As(err, &validErr):
		return ExitUsageError
	case errors.As(err, &notFoundErr),
		errors.Is(err, cloud.ErrNotFound),
		errors.Is(err, storage.ErrTranscriptNotFound):
		return ExitNotFoundError
	case errors.Is(err, cloud.ErrUnauthorized):
		return ExitAuthError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr), errors.Is(err, cloud.ErrInvalidBaseURL):
		return ExitConfigError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &turnErr), errors.As(err, &netErr):
		return ExitNetworkError
	}
	return ExitGeneralError
}
