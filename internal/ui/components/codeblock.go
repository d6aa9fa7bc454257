// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// CODE HIGHLIGHTING
// =============================================================================

// HighlightCode applies chroma syntax highlighting to a code snippet.
// Returns the original code unchanged when highlighting fails.
//
// Used for in-flight streaming output: glamour re-renders whole documents,
// which flickers on partial markdown, so open code fences are highlighted
// directly instead.
func HighlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}

	style := chromaStyles.Get("catppuccin-mocha")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var sb strings.Builder
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(sb.String(), "\n")
}

// =============================================================================
// STREAMING FENCE TRACKING
// =============================================================================

// OpenFence describes an unterminated code fence in partial markdown.
type OpenFence struct {
	Language string
	Code     string
}

// FindOpenFence scans partial markdown for a trailing unterminated ``` fence.
// Returns nil when the text ends outside a code block.
func FindOpenFence(text string) *OpenFence {
	lines := strings.Split(text, "\n")

	var open bool
	var language string
	var start int

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}
		if open {
			open = false
			continue
		}
		open = true
		language = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
		start = i + 1
	}

	if !open {
		return nil
	}
	return &OpenFence{
		Language: language,
		Code:     strings.Join(lines[start:], "\n"),
	}
}

// RenderPartialMarkdown renders streaming markdown text: the completed
// portion goes through the markdown renderer and any open code fence is
// highlighted with chroma and appended raw.
func RenderPartialMarkdown(renderer *MarkdownRenderer, text string) string {
	fence := FindOpenFence(text)
	if fence == nil {
		return renderer.Render(text)
	}

	// Split off the open fence, render the closed prefix normally.
	idx := strings.LastIndex(text, "```")
	prefix := text[:idx]

	var sb strings.Builder
	if strings.TrimSpace(prefix) != "" {
		sb.WriteString(renderer.Render(prefix))
		sb.WriteString("\n")
	}
	if fence.Code != "" {
		sb.WriteString(HighlightCode(fence.Code, fence.Language))
	}
	return sb.String()
}
