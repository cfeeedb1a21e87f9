// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across sermonchat.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writes (config, token cache, transcripts)
//   - TruncateRunes, TruncateWidth, PadRight: display truncation for titles and previews
//   - ExpandHome: "~" expansion for configured paths
//
// # Usage
//
//	title := util.TruncateWidth(conv.Title, 40)
//	err := util.AtomicWriteFile(util.ExpandHome("~/.sermonchat/config.toml"), data, 0600)
package util
