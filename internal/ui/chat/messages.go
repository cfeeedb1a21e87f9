// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "time"

// StreamTickMsg asks the model to pull the newest snapshot.
type StreamTickMsg struct {
	Time time.Time
}

// TurnDoneMsg reports that Submit returned.
type TurnDoneMsg struct {
	Question string
	Err      error
}
