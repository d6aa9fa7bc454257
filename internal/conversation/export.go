// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/locallm-tui/internal/model"
	"github.com/jeranaias/locallm-tui/internal/util"
)

// =============================================================================
// MARKDOWN EXPORT
// =============================================================================

// ExportMarkdown renders a conversation as a Markdown transcript.
func ExportMarkdown(conv *model.Conversation, modelName string) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeHeading(conv.Title)))

	sb.WriteString(fmt.Sprintf("- **Created**: %s\n", conv.Timestamp.Format("2006-01-02 15:04")))
	if modelName != "" {
		sb.WriteString(fmt.Sprintf("- **Model**: %s\n", modelName))
	}
	sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(conv.Messages)))
	sb.WriteString("\n---\n\n")

	for i, msg := range conv.Messages {
		label := fmt.Sprintf("[%s]", msg.Role.DisplayName())
		if msg.Edited {
			label += " (edited)"
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\n*Exported from locallm on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// ExportToFile writes the Markdown transcript atomically.
func ExportToFile(conv *model.Conversation, modelName, path string) error {
	data, err := ExportMarkdown(conv, modelName)
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, 0644)
}

// ExportPath builds a collision-safe export filename under dir.
func ExportPath(dir string, conv *model.Conversation) string {
	name := sanitizeFilename(conv.Title)
	if name == "" {
		name = "conversation"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.md", name, time.Now().Format("20060102_150405")))
}

// escapeHeading escapes characters that would break a Markdown heading.
func escapeHeading(s string) string {
	replacer := strings.NewReplacer("#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]")
	return replacer.Replace(s)
}

// sanitizeFilename keeps a title usable as a filename.
func sanitizeFilename(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('_')
		}
	}
	out := strings.Trim(sb.String(), "_")
	if len(out) > 48 {
		out = out[:48]
	}
	return out
}
