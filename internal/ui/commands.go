// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model downloads can take many minutes on slow links.
const installTimeout = 30 * time.Minute

// =============================================================================
// ASYNC COMMANDS
// =============================================================================

// initEngineCmd starts the inference server, restores the installed set, and
// loads the startup model.
func (m *Model) initEngineCmd() tea.Cmd {
	models := m.models
	eng := m.eng
	defaultModel := m.cfg.Engine.DefaultModel

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), installTimeout)
		defer cancel()

		if err := models.Initialize(ctx); err != nil {
			return EngineReadyMsg{Err: err}
		}

		// Config may pin a startup model different from the first installed.
		if defaultModel != "" && models.IsInstalled(defaultModel) && eng.CurrentModel() != defaultModel {
			if err := models.Switch(ctx, defaultModel); err != nil {
				return EngineReadyMsg{Model: eng.CurrentModel(), Err: err}
			}
		}

		return EngineReadyMsg{Model: eng.CurrentModel()}
	}
}

// sendCmd runs one generation turn for the selected conversation.
func (m *Model) sendCmd(input string) tea.Cmd {
	sessionMgr := m.sessionMgr

	return func() tea.Msg {
		err := sessionMgr.Send(context.Background(), input)
		return TurnDoneMsg{Err: err}
	}
}

// editCmd replaces a user message and regenerates from it.
func (m *Model) editCmd(conversationID string, index int, content string) tea.Cmd {
	sessionMgr := m.sessionMgr

	return func() tea.Msg {
		err := sessionMgr.EditAndRegenerate(context.Background(), conversationID, index, content)
		return TurnDoneMsg{Err: err}
	}
}

// installCmd downloads and loads a catalog model.
func (m *Model) installCmd(id string) tea.Cmd {
	models := m.models

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), installTimeout)
		defer cancel()

		err := models.Install(ctx, id)
		return InstallDoneMsg{ModelID: id, Err: err}
	}
}

// switchCmd loads an already installed model.
func (m *Model) switchCmd(id string) tea.Cmd {
	models := m.models

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), installTimeout)
		defer cancel()

		err := models.Switch(ctx, id)
		return SwitchDoneMsg{ModelID: id, Err: err}
	}
}
