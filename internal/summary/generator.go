// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package summary derives short conversation titles from the first user
// message.
package summary

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/locallm-tui/internal/engine"
	"github.com/jeranaias/locallm-tui/internal/model"
)

// systemPrompt constrains the title request to a short topical digest.
const systemPrompt = "You create very short conversation titles. " +
	"Reply with a topical digest of the user's message in at most 5 words. " +
	"Use plain lowercase keywords. No punctuation, no quotes, no explanations."

// maxTitleWords caps the sanitized title length.
const maxTitleWords = 5

// Completer is the slice of the engine the generator needs: a non-streamed
// completion sharing the single-generation gate.
type Completer interface {
	Generate(ctx context.Context, messages []engine.Message, systemPrompt string) (string, error)
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces conversation titles, at most one generation per
// conversation id.
type Generator struct {
	mu     sync.Mutex
	engine Completer
	cache  map[string]string // conversation id -> title
}

// NewGenerator creates a title generator around the given completer.
func NewGenerator(completer Completer) *Generator {
	return &Generator{
		engine: completer,
		cache:  make(map[string]string),
	}
}

// TitleFor returns a title for the conversation derived from firstMessage.
// Repeat calls for the same conversation id are served from cache without
// touching the engine. On any failure the placeholder title is returned and
// nothing is cached, so a later call may retry.
func (g *Generator) TitleFor(ctx context.Context, conversationID, firstMessage string) string {
	g.mu.Lock()
	if title, ok := g.cache[conversationID]; ok {
		g.mu.Unlock()
		return title
	}
	g.mu.Unlock()

	raw, err := g.engine.Generate(ctx, []engine.Message{engine.NewUserMessage(firstMessage)}, systemPrompt)
	if err != nil {
		return model.DefaultTitle
	}

	title := Sanitize(raw)
	if title == "" {
		return model.DefaultTitle
	}

	g.mu.Lock()
	g.cache[conversationID] = title
	g.mu.Unlock()
	return title
}

// Cached returns the cached title for a conversation, if any.
func (g *Generator) Cached(conversationID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	title, ok := g.cache[conversationID]
	return title, ok
}

// Forget drops the cached title for a conversation. Used when the
// conversation is deleted so its id can be reused for a fresh summary.
func (g *Generator) Forget(conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cache, conversationID)
}

// =============================================================================
// SANITIZATION
// =============================================================================

// Sanitize normalizes a model-produced title: NFC normalization, quotes and
// terminal punctuation stripped, newlines collapsed, capped at five words.
// Returns "" when nothing usable remains.
func Sanitize(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.TrimSpace(s)

	// Models like to quote their answers.
	s = strings.Trim(s, `"'`+"`")

	// Collapse newlines and runs of whitespace.
	words := strings.Fields(s)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}

	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) && r != '-' && r != '_'
		})
		if w != "" {
			cleaned = append(cleaned, w)
		}
	}

	return strings.Join(cleaned, " ")
}
