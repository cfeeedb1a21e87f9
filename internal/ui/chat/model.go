// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/ui/styles"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Session is the part of the session controller the view drives.
type Session interface {
	Submit(ctx context.Context, question string) error
	Cancel()
	Reset()
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// Config configures the chat view.
type Config struct {
	Session Session
	Theme   *styles.Theme

	// Renderer formats finished answers. Nil wraps plain text.
	Renderer MarkdownRenderer

	ShowCitations bool

	// WordWrap caps the message width; 0 uses the window width.
	WordWrap int

	// Title is shown in the header.
	Title string

	// OnTurnEnd runs in the Bubble Tea loop after every completed turn,
	// including failed and cancelled ones.
	OnTurnEnd func(session.Snapshot)

	// Context parents every turn. Defaults to context.Background().
	Context context.Context
}

// =============================================================================
// MODEL
// =============================================================================

const (
	headerHeight = 1
	footerHeight = 4 // rule, status, input, help
	minViewport  = 3
)

// Model is the Bubble Tea model of the chat view.
type Model struct {
	cfg  Config
	keys KeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	buffer      *snapshotBuffer
	turn        *turnScope
	unsubscribe func()
	renderCache map[string]string

	snap      session.Snapshot
	turning   bool
	cancelled bool
	status    string
	errText   string

	width  int
	height int
	ready  bool
}

// New creates the chat view. The model subscribes to the session right away;
// the subscription ends when the program quits.
func New(cfg Config) Model {
	if cfg.Theme == nil {
		cfg.Theme = styles.NewTheme(styles.ModeAuto)
	}
	if cfg.Renderer == nil {
		cfg.Renderer = PlainRenderer
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Title == "" {
		cfg.Title = "sermonchat"
	}

	in := textinput.New()
	in.Placeholder = "Ask about the sermons..."
	in.Prompt = cfg.Theme.Prompt.Render("> ")
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Theme.Spinner

	buf := newSnapshotBuffer()
	m := Model{
		cfg:         cfg,
		keys:        DefaultKeyMap(),
		input:       in,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		buffer:      buf,
		turn:        newTurnScope(),
		renderCache: make(map[string]string),
		snap:        cfg.Session.Snapshot(),
	}
	m.unsubscribe = cfg.Session.Subscribe(buf.Offer)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Snapshot returns the snapshot the view last rendered.
func (m Model) Snapshot() session.Snapshot {
	return m.snap
}

// submitCmd runs one turn off the Bubble Tea loop.
func (m Model) submitCmd(question string) tea.Cmd {
	ctx := m.turn.begin(m.cfg.Context)
	s := m.cfg.Session
	return func() tea.Msg {
		err := s.Submit(ctx, question)
		return TurnDoneMsg{Question: question, Err: err}
	}
}

// shutdown cancels any running turn and stops receiving snapshots.
func (m *Model) shutdown() {
	m.turn.end()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}
