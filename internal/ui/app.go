// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the Bubble Tea application: a chat view with a
// conversation sidebar, a model picker overlay, and toast notifications.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/jeranaias/locallm-tui/internal/config"
	"github.com/jeranaias/locallm-tui/internal/conversation"
	"github.com/jeranaias/locallm-tui/internal/engine"
	"github.com/jeranaias/locallm-tui/internal/registry"
	"github.com/jeranaias/locallm-tui/internal/session"
	"github.com/jeranaias/locallm-tui/internal/ui/components"
	"github.com/jeranaias/locallm-tui/internal/ui/styles"
)

// =============================================================================
// APPLICATION MODE
// =============================================================================

// Mode is the input mode of the chat screen.
type Mode int

const (
	ModeChat   Mode = iota // typing a new message
	ModeEdit               // editing an earlier user message
	ModeSearch             // filtering the sidebar
	ModeRename             // renaming the selected conversation
	ModePicker             // model picker overlay
)

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// Model is the main Bubble Tea model for the application.
type Model struct {
	theme *styles.Theme
	keys  KeyMap

	width  int
	height int
	ready  bool

	mode Mode

	// components
	input    textinput.Model
	history  viewport.Model
	spin     spinner.Model
	sidebar  components.Sidebar
	picker   components.ModelPicker
	markdown *components.MarkdownRenderer
	toasts   *components.ToastManager

	// core services
	cfg        *config.Config
	eng        *engine.Engine
	convs      *conversation.Store
	sessionMgr *session.Manager
	models     *registry.Manager

	// engine startup state
	engineReady bool
	engineErr   error

	// streaming snapshot for the owning conversation
	partialConv string
	partialText string

	// edit state: index of the user message being edited
	editIndex int
	editConv  string

	// search state
	searchQuery string
}

// New creates the application model. The session manager's partial callback
// and the engine's progress callback are wired by the caller through the
// running program (see main).
func New(theme *styles.Theme, cfg *config.Config, eng *engine.Engine, convs *conversation.Store, sessionMgr *session.Manager, models *registry.Manager) *Model {
	input := textinput.New()
	input.Placeholder = "Ask anything..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.InputPlaceholder
	input.CharLimit = 8192
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	return &Model{
		theme:      theme,
		keys:       DefaultKeyMap(),
		mode:       ModeChat,
		input:      input,
		spin:       spin,
		sidebar:    components.NewSidebar(theme),
		picker:     components.NewModelPicker(theme),
		markdown:   components.NewMarkdownRenderer(80),
		toasts:     components.NewToastManager(),
		cfg:        cfg,
		eng:        eng,
		convs:      convs,
		sessionMgr: sessionMgr,
		models:     models,
		editIndex:  -1,
	}
}

// Toasts exposes the toast manager so the notifier can reach it.
func (m *Model) Toasts() *components.ToastManager {
	return m.toasts
}

// Init initializes the model: spinner ticks, toast ticks, and engine startup.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		components.ToastTickCmd(),
		textinput.Blink,
		m.initEngineCmd(),
	)
}
