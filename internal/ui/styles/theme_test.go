// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestNewTheme_Modes(t *testing.T) {
	tests := []struct {
		in       string
		wantMode string
		glamour  string
	}{
		{"dark", ModeDark, "dark"},
		{" Light ", ModeLight, "light"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			th := NewTheme(tc.in)
			assert.Equal(t, tc.wantMode, th.Mode)
			assert.Equal(t, tc.glamour, th.GlamourStyle())
		})
	}

	assert.Equal(t, ModeAuto, NewTheme("neon").Mode)
	lipgloss.SetHasDarkBackground(true)
	assert.Equal(t, "dark", NewTheme("").GlamourStyle())
}

func TestTheme_Rule(t *testing.T) {
	th := NewTheme(ModeDark)
	assert.Equal(t, 10, lipgloss.Width(th.Rule(10)))
	assert.Equal(t, 1, lipgloss.Width(th.Rule(0)))
}
