// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/locallm-tui/internal/config"
	"github.com/jeranaias/locallm-tui/internal/conversation"
	"github.com/jeranaias/locallm-tui/internal/model"
	"github.com/jeranaias/locallm-tui/internal/session"
	"github.com/jeranaias/locallm-tui/internal/ui/components"
	"github.com/jeranaias/locallm-tui/internal/ui/styles"
)

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EngineReadyMsg:
		m.engineReady = msg.Err == nil
		m.engineErr = msg.Err
		if msg.Err != nil {
			m.toasts.Add("Engine startup failed: "+msg.Err.Error(), components.ToastError)
		} else if msg.Model == "" {
			m.toasts.Add("No model installed yet. Press ctrl+p to install one.", components.ToastInfo)
		}
		return m, nil

	case TurnDoneMsg:
		m.partialConv = ""
		m.partialText = ""
		if msg.Err != nil && !errors.Is(msg.Err, session.ErrRejected) {
			m.toasts.Add("Turn failed: "+msg.Err.Error(), components.ToastError)
		}
		m.refreshHistory()
		return m, nil

	case PartialMsg:
		m.partialConv = msg.ConversationID
		m.partialText = msg.Text
		m.refreshHistory()
		m.history.GotoBottom()
		return m, nil

	case InstallProgressMsg:
		m.picker.SetProgress(msg.Status, msg.Fraction)
		return m, nil

	case InstallDoneMsg:
		m.picker.FinishInstall()
		if msg.Err != nil {
			m.toasts.Add("Install failed: "+msg.Err.Error(), components.ToastError)
		} else {
			m.engineReady = true
			m.toasts.Add("Installed "+msg.ModelID, components.ToastInfo)
		}
		return m, nil

	case SwitchDoneMsg:
		if msg.Err != nil {
			m.toasts.Add("Switch failed: "+msg.Err.Error(), components.ToastError)
		} else {
			m.toasts.Add("Now using "+msg.ModelID, components.ToastInfo)
		}
		return m, nil

	case components.ToastAddMsg:
		m.toasts.Add(msg.Message, msg.Kind)
		return m, nil

	case components.ToastTickMsg:
		m.toasts.Tick()
		return m, components.ToastTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	// Everything else feeds the focused input and the viewport.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.history, cmd = m.history.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// resize recomputes component dimensions.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	sidebarWidth := 0
	if m.theme.GetLayoutMode() != styles.LayoutNarrow {
		sidebarWidth = 28
	}
	m.sidebar.SetSize(sidebarWidth, height-5)
	m.picker.SetSize(width, height)

	chatWidth := width - sidebarWidth
	historyHeight := height - 5
	if historyHeight < 3 {
		historyHeight = 3
	}

	if !m.ready {
		m.history = viewport.New(chatWidth, historyHeight)
		m.ready = true
	} else {
		m.history.Width = chatWidth
		m.history.Height = historyHeight
	}

	m.input.Width = chatWidth - 6
	m.markdown.SetWidth(chatWidth - 10)
	m.refreshHistory()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.mode == ModePicker {
		return m.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.handleCancel()

	case key.Matches(msg, m.keys.Send):
		return m.handleEnter()

	case key.Matches(msg, m.keys.NewConv):
		m.convs.Create()
		m.exitTransientMode()
		m.refreshHistory()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if selected := m.convs.Selected(); selected != nil {
			m.convs.Delete(selected.ID)
		}
		m.refreshHistory()
		return m, nil

	case key.Matches(msg, m.keys.PrevConv):
		m.selectNeighbor(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextConv):
		m.selectNeighbor(1)
		return m, nil

	case key.Matches(msg, m.keys.EditLast):
		m.startEditLast()
		return m, nil

	case key.Matches(msg, m.keys.Models):
		m.mode = ModePicker
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.mode = ModeSearch
		m.input.SetValue("")
		m.input.Placeholder = "Search conversations..."
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		if selected := m.convs.Selected(); selected != nil {
			m.mode = ModeRename
			m.input.SetValue(selected.Title)
			m.input.CursorEnd()
		}
		return m, nil

	case key.Matches(msg, m.keys.Export):
		m.exportSelected()
		return m, nil

	case key.Matches(msg, m.keys.ClearAll):
		if m.sessionMgr.IsGenerating() {
			m.sessionMgr.Cancel()
		}
		m.convs.ClearAll()
		m.convs.Create()
		m.exitTransientMode()
		m.refreshHistory()
		m.toasts.Add("All conversations cleared", components.ToastInfo)
		return m, nil
	}

	// Typing
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == ModeSearch {
		m.searchQuery = m.input.Value()
	}
	return m, cmd
}

// handleEnter dispatches enter according to the current mode.
func (m *Model) handleEnter() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())

	switch m.mode {
	case ModeSearch:
		if results := m.convs.Search(m.searchQuery); len(results) > 0 {
			m.convs.SelectByID(results[0].ID)
		}
		m.exitTransientMode()
		m.refreshHistory()
		return m, nil

	case ModeRename:
		if selected := m.convs.Selected(); selected != nil && value != "" {
			m.convs.RenameTitle(selected.ID, value)
		}
		m.exitTransientMode()
		return m, nil

	case ModeEdit:
		if value == "" {
			return m, nil
		}
		convID, index := m.editConv, m.editIndex
		m.exitTransientMode()
		return m, m.editCmd(convID, index, value)

	default:
		if value == "" || !m.engineReady || m.sessionMgr.IsGenerating() {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.sendCmd(value)
	}
}

// handleCancel aborts generation when one is running, otherwise leaves any
// transient input mode.
func (m *Model) handleCancel() (tea.Model, tea.Cmd) {
	if m.sessionMgr.IsGenerating() {
		m.sessionMgr.Cancel()
		return m, nil
	}
	m.exitTransientMode()
	return m, nil
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeChat
		return m, nil
	case "up", "k":
		m.picker.MoveUp()
		return m, nil
	case "down", "j":
		m.picker.MoveDown()
		return m, nil
	case "enter":
		if m.picker.IsInstalling() {
			return m, nil
		}
		spec := m.picker.Selected()
		if m.models.IsInstalled(spec.ID) {
			m.mode = ModeChat
			return m, m.switchCmd(spec.ID)
		}
		m.picker.StartInstall(spec.ID)
		return m, m.installCmd(spec.ID)
	case "x":
		if m.picker.IsInstalling() {
			return m, nil
		}
		spec := m.picker.Selected()
		if !m.models.IsInstalled(spec.ID) {
			return m, nil
		}
		if err := m.models.Remove(spec.ID); err != nil {
			m.toasts.Add("Remove failed: "+err.Error(), components.ToastError)
			return m, nil
		}
		m.toasts.Add("Removed "+spec.ID, components.ToastInfo)
		return m, nil
	}
	return m, nil
}

// exportSelected writes the selected conversation to the exports directory
// as a Markdown transcript.
func (m *Model) exportSelected() {
	selected := m.convs.Selected()
	if selected == nil || selected.MessageCount() == 0 {
		m.toasts.Add("Nothing to export", components.ToastWarning)
		return
	}

	dir, err := config.Dir()
	if err != nil {
		m.toasts.Add("Export failed: "+err.Error(), components.ToastError)
		return
	}
	exportDir := filepath.Join(dir, "exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		m.toasts.Add("Export failed: "+err.Error(), components.ToastError)
		return
	}

	path := conversation.ExportPath(exportDir, selected)
	if err := conversation.ExportToFile(selected, m.eng.CurrentModel(), path); err != nil {
		m.toasts.Add("Export failed: "+err.Error(), components.ToastError)
		return
	}
	m.toasts.Add("Exported to "+path, components.ToastInfo)
}

// exitTransientMode returns to plain chat input.
func (m *Model) exitTransientMode() {
	m.mode = ModeChat
	m.editIndex = -1
	m.editConv = ""
	m.searchQuery = ""
	m.input.SetValue("")
	m.input.Placeholder = "Ask anything..."
}

// selectNeighbor moves the selection up or down the conversation list.
func (m *Model) selectNeighbor(delta int) {
	conversations := m.convs.Conversations()
	selected := m.convs.Selected()
	if len(conversations) == 0 || selected == nil {
		return
	}

	idx := 0
	for i, conv := range conversations {
		if conv.ID == selected.ID {
			idx = i
			break
		}
	}

	idx += delta
	if idx < 0 || idx >= len(conversations) {
		return
	}
	m.convs.SelectByID(conversations[idx].ID)
	m.refreshHistory()
}

// startEditLast enters edit mode on the most recent user message of the
// selected conversation.
func (m *Model) startEditLast() {
	if m.sessionMgr.IsGenerating() {
		return
	}
	selected := m.convs.Selected()
	if selected == nil {
		return
	}

	for i := selected.MessageCount() - 1; i >= 0; i-- {
		msg := selected.MessageAt(i)
		if msg != nil && msg.Role == model.RoleUser {
			m.mode = ModeEdit
			m.editConv = selected.ID
			m.editIndex = i
			m.input.SetValue(msg.Content)
			m.input.CursorEnd()
			m.input.Placeholder = "Edit message..."
			return
		}
	}
}
