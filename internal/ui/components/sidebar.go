// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/locallm-tui/internal/model"
	"github.com/jeranaias/locallm-tui/internal/ui/styles"
	"github.com/jeranaias/locallm-tui/internal/util"
)

// =============================================================================
// CONVERSATION SIDEBAR
// =============================================================================

// Sidebar renders the conversation list: newest first, with the selected
// thread highlighted and a marker on the thread that owns an in-flight
// generation.
type Sidebar struct {
	theme  *styles.Theme
	width  int
	height int
	offset int
}

// NewSidebar creates a sidebar.
func NewSidebar(theme *styles.Theme) Sidebar {
	return Sidebar{theme: theme, width: 28}
}

// SetSize updates the sidebar dimensions.
func (s *Sidebar) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// Width returns the sidebar's column width.
func (s *Sidebar) Width() int {
	return s.width
}

// View renders the sidebar for the given conversations. streamingID is the
// conversation owning the current turn, "" when idle.
func (s *Sidebar) View(conversations []*model.Conversation, selectedID, streamingID string) string {
	var sb strings.Builder

	title := s.theme.SidebarTitle.Render("Conversations")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(s.theme.SidebarMeta.Render(fmt.Sprintf("%d total", len(conversations))))
	sb.WriteString("\n\n")

	// Keep the selected row visible.
	visible := s.height - 4
	if visible < 1 {
		visible = len(conversations)
	}
	selectedIdx := 0
	for i, conv := range conversations {
		if conv.ID == selectedID {
			selectedIdx = i
			break
		}
	}
	if selectedIdx < s.offset {
		s.offset = selectedIdx
	}
	if selectedIdx >= s.offset+visible {
		s.offset = selectedIdx - visible + 1
	}

	innerWidth := s.width - 4
	if innerWidth < 8 {
		innerWidth = 8
	}

	end := s.offset + visible
	if end > len(conversations) {
		end = len(conversations)
	}

	for _, conv := range conversations[s.offset:end] {
		label := util.TruncateWidth(conv.Title, innerWidth)

		switch {
		case conv.ID == streamingID && conv.ID != selectedID:
			label = s.theme.SidebarItemStreaming.Render("~ " + label)
		case conv.ID == selectedID:
			label = s.theme.SidebarItemSelected.Render(label)
		default:
			label = s.theme.SidebarItem.Render(label)
		}

		sb.WriteString(label)
		sb.WriteString("\n")
	}

	content := sb.String()
	if s.height > 0 {
		content = lipgloss.NewStyle().Height(s.height).Render(content)
	}
	return s.theme.Sidebar.Width(s.width).Render(content)
}
