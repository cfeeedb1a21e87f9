// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies bearer tokens for requests to the chat service.
//
// A provider either returns a token or reports that none is available. The
// absence of a token is not an error: the request goes out unauthenticated and
// the service decides whether to reject it.
//
// # Key Types
//
//   - TokenProvider: the accessor used by the transport
//   - Static, Env: fixed and environment-backed tokens
//   - FileProvider: token read from a file and reloaded when it changes
//   - Chain: first provider with a token wins
//
// # Usage
//
//	fp, err := auth.NewFileProvider("~/.sermonchat/token", logger)
//	if err != nil {
//	    return err
//	}
//	defer fp.Close()
//	provider := auth.Chain{auth.Env("SERMONCHAT_TOKEN"), fp}
package auth
