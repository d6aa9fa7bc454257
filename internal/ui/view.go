// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/locallm-tui/internal/model"
	"github.com/jeranaias/locallm-tui/internal/ui/components"
	"github.com/jeranaias/locallm-tui/internal/ui/styles"
)

// View renders the current state.
func (m *Model) View() string {
	if !m.ready {
		return "Starting locallm..."
	}

	if m.mode == ModePicker {
		return m.picker.View(m.models.Installed(), m.eng.CurrentModel())
	}

	header := m.renderHeader()
	body := m.renderBody()
	input := m.renderInput()
	status := m.renderStatus()

	screen := lipgloss.JoinVertical(lipgloss.Left, header, body, input, status)

	if m.toasts.HasToasts() {
		// Toasts overlay the bottom-right corner; rendered last so they sit
		// on top of the status bar visually.
		stack := components.RenderToastStack(m.theme, m.toasts.Toasts(), m.width, 0)
		screen = lipgloss.JoinVertical(lipgloss.Right, screen, stack)
	}

	return screen
}

// =============================================================================
// SECTIONS
// =============================================================================

func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("locallm")

	modelName := m.eng.CurrentModel()
	if modelName == "" {
		modelName = "no model"
	}
	right := m.theme.HeaderModel.Render(modelName)

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderBody() string {
	if m.theme.GetLayoutMode() == styles.LayoutNarrow {
		return m.history.View()
	}

	conversations := m.convs.Conversations()
	if m.mode == ModeSearch && m.searchQuery != "" {
		conversations = m.convs.Search(m.searchQuery)
	}

	selectedID := ""
	if selected := m.convs.Selected(); selected != nil {
		selectedID = selected.ID
	}

	sidebar := m.sidebar.View(conversations, selectedID, m.partialConv)
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, m.history.View())
}

func (m *Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m *Model) renderStatus() string {
	var left string
	switch {
	case !m.engineReady && m.engineErr != nil:
		left = m.theme.ErrorStyle.Render(styles.StatusIndicators.Error + " engine offline")
	case !m.engineReady:
		left = m.spin.View() + m.theme.ThinkingText.Render(" starting engine")
	case m.sessionMgr.IsGenerating():
		left = m.spin.View() + m.theme.StatusPhase.Render(" "+m.sessionMgr.Phase().String())
	default:
		left = m.theme.StatusModel.Render(styles.StatusIndicators.Success + " ready")
	}

	hints := []string{
		m.hint("enter", "send"),
		m.hint("ctrl+n", "new"),
		m.hint("ctrl+e", "edit"),
		m.hint("ctrl+p", "models"),
		m.hint("ctrl+f", "search"),
		m.hint("ctrl+s", "export"),
		m.hint("esc", "cancel"),
	}
	right := strings.Join(hints, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) hint(k, desc string) string {
	return m.theme.ShortcutKey.Render(k) + m.theme.ShortcutDesc.Render(" "+desc)
}

// =============================================================================
// HISTORY RENDERING
// =============================================================================

// refreshHistory rebuilds the viewport content from the selected conversation
// plus the in-flight partial, if it belongs to this conversation.
func (m *Model) refreshHistory() {
	if !m.ready {
		return
	}

	selected := m.convs.Selected()
	if selected == nil {
		m.history.SetContent(m.theme.ThinkingText.Render("No conversation. Press ctrl+n to start one."))
		return
	}

	atBottom := m.history.AtBottom()

	separator := "\n\n"
	if m.cfg.UI.CompactMode {
		separator = "\n"
	}

	var sb strings.Builder
	for i := 0; i < selected.MessageCount(); i++ {
		msg := selected.MessageAt(i)
		if msg == nil {
			continue
		}
		sb.WriteString(m.renderMessage(*msg))
		sb.WriteString(separator)
	}

	if m.partialConv == selected.ID && m.partialText != "" {
		partial := components.RenderPartialMarkdown(m.markdown, m.partialText)
		sb.WriteString(m.theme.AssistantBubble.Render(partial))
		sb.WriteString("\n")
	}

	m.history.SetContent(sb.String())
	if atBottom {
		m.history.GotoBottom()
	}
}

func (m *Model) renderMessage(msg model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		content := msg.Content
		if msg.Edited {
			content += " " + m.theme.EditedBadge.Render("(edited)")
		}
		bubble := m.theme.UserBubble.Render(content)
		if !m.cfg.UI.ShowTimestamps {
			return bubble
		}
		meta := m.theme.MessageMeta.Render(msg.Timestamp.Format("15:04"))
		return lipgloss.JoinVertical(lipgloss.Right, bubble, meta)

	case model.RoleAssistant:
		return m.theme.AssistantBubble.Render(m.markdown.Render(msg.Content))

	default:
		return m.theme.MessageMeta.Render(fmt.Sprintf("[%s] %s", msg.Role.DisplayName(), msg.Content))
	}
}
