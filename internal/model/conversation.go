// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/locallm-tui/internal/engine"
)

// DefaultTitle is the placeholder title a conversation carries until a real
// title has been derived from its first message.
const DefaultTitle = "New conversation"

// MaxMessages caps conversation history length. When exceeded, the oldest
// non-system messages are pruned to keep memory bounded.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation with history and metadata.
// Timestamp is the creation time and never changes afterwards; ordering in
// listings stays stable no matter how the conversation is used.
type Conversation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation with a generated ID and the
// placeholder title.
func NewConversation() *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Title:     DefaultTitle,
		Messages:  make([]Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message to the conversation.
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.PruneTo(MaxMessages)
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// MessageAt returns a pointer to the message at index i, or nil when the
// index is out of range.
func (c *Conversation) MessageAt(i int) *Message {
	if i < 0 || i >= len(c.Messages) {
		return nil
	}
	return &c.Messages[i]
}

// FirstUserMessage returns the first user message, or nil when none exists.
func (c *Conversation) FirstUserMessage() *Message {
	for i := range c.Messages {
		if c.Messages[i].Role == RoleUser {
			return &c.Messages[i]
		}
	}
	return nil
}

// TruncateAfter drops every message after index i, keeping Messages[0..i].
// A negative index clears the conversation entirely.
func (c *Conversation) TruncateAfter(i int) {
	if i < -1 {
		i = -1
	}
	if i >= len(c.Messages)-1 {
		return
	}
	c.Messages = c.Messages[:i+1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty reports whether the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// HasCustomTitle reports whether a real title has replaced the placeholder.
func (c *Conversation) HasCustomTitle() bool {
	return c.Title != "" && c.Title != DefaultTitle
}

// =============================================================================
// ENGINE CONVERSION
// =============================================================================

// EngineMessages converts the conversation history to the engine wire format.
// Empty messages are skipped.
func (c *Conversation) EngineMessages() []engine.Message {
	messages := make([]engine.Message, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if !msg.Role.Valid() || msg.Content == "" {
			continue
		}
		messages = append(messages, engine.Message{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return messages
}

// =============================================================================
// SERIALIZATION HELPERS
// =============================================================================

// Preview returns a short single-line preview of the conversation.
func (c *Conversation) Preview() string {
	if first := c.FirstUserMessage(); first != nil {
		return first.Preview(100)
	}
	return "Empty conversation"
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		Title:     c.Title,
		Messages:  make([]Message, len(c.Messages)),
	}
	copy(clone.Messages, c.Messages)
	return clone
}

// PruneTo drops the oldest non-system messages once history exceeds limit,
// keeping any system messages in place. A non-positive limit is a no-op.
func (c *Conversation) PruneTo(limit int) {
	if limit <= 0 || len(c.Messages) <= limit {
		return
	}

	var system []Message
	var rest []Message
	for _, msg := range c.Messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	if len(rest) > limit {
		rest = rest[len(rest)-limit:]
	}

	c.Messages = make([]Message, 0, len(system)+len(rest))
	c.Messages = append(c.Messages, system...)
	c.Messages = append(c.Messages, rest...)
}
