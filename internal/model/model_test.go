// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"testing"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_Valid(t *testing.T) {
	valid := []Role{RoleUser, RoleAssistant, RoleSystem}
	for _, r := range valid {
		if !r.Valid() {
			t.Errorf("Role %q should be valid", r)
		}
	}

	if Role("tool").Valid() {
		t.Error("unknown role should be invalid")
	}
}

func TestRole_DisplayName(t *testing.T) {
	if RoleUser.DisplayName() != "You" {
		t.Errorf("DisplayName = %q", RoleUser.DisplayName())
	}
	if RoleAssistant.DisplayName() != "Assistant" {
		t.Errorf("DisplayName = %q", RoleAssistant.DisplayName())
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.ID == "" {
		t.Error("ID should be generated")
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q", msg.Content)
	}
	if msg.Edited {
		t.Error("new messages should not be marked edited")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}

	other := NewUserMessage("Hello")
	if other.ID == msg.ID {
		t.Error("IDs should be unique")
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage(strings.Repeat("a", 100))

	got := msg.Preview(10)
	if len([]rune(got)) != 10 {
		t.Errorf("Preview length = %d, want 10", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Preview = %q, want ellipsis suffix", got)
	}

	// Unicode is not split mid-character.
	uni := NewUserMessage("héllo wörld çafé time")
	got = uni.Preview(10)
	for _, r := range got {
		if r == '�' {
			t.Errorf("Preview produced invalid rune: %q", got)
		}
	}

	short := NewUserMessage("hi")
	if short.Preview(10) != "hi" {
		t.Errorf("Preview = %q, want 'hi'", short.Preview(10))
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	conv := NewConversation()

	if conv.ID == "" {
		t.Error("ID should be generated")
	}
	if conv.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", conv.Title, DefaultTitle)
	}
	if !conv.IsEmpty() {
		t.Error("new conversation should be empty")
	}
	if conv.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestConversation_AddMessage(t *testing.T) {
	conv := NewConversation()
	conv.AddMessage(NewUserMessage("Hello"))
	conv.AddMessage(NewAssistantMessage("Hi there"))

	if conv.MessageCount() != 2 {
		t.Fatalf("MessageCount = %d, want 2", conv.MessageCount())
	}
	if conv.LastMessage().Role != RoleAssistant {
		t.Errorf("last role = %q", conv.LastMessage().Role)
	}
}

func TestConversation_TruncateAfter(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < 5; i++ {
		conv.AddMessage(NewUserMessage("msg"))
	}

	conv.TruncateAfter(2)
	if conv.MessageCount() != 3 {
		t.Errorf("MessageCount = %d, want 3", conv.MessageCount())
	}

	// Truncating past the end is a no-op.
	conv.TruncateAfter(10)
	if conv.MessageCount() != 3 {
		t.Errorf("MessageCount = %d, want 3", conv.MessageCount())
	}

	// Negative index clears everything.
	conv.TruncateAfter(-1)
	if !conv.IsEmpty() {
		t.Error("TruncateAfter(-1) should clear all messages")
	}
}

func TestConversation_FirstUserMessage(t *testing.T) {
	conv := NewConversation()
	if conv.FirstUserMessage() != nil {
		t.Error("empty conversation has no first user message")
	}

	conv.AddMessage(NewSystemMessage("be helpful"))
	conv.AddMessage(NewUserMessage("question"))
	conv.AddMessage(NewUserMessage("followup"))

	first := conv.FirstUserMessage()
	if first == nil || first.Content != "question" {
		t.Errorf("FirstUserMessage = %+v", first)
	}
}

func TestConversation_EngineMessages(t *testing.T) {
	conv := NewConversation()
	conv.AddMessage(NewSystemMessage("be helpful"))
	conv.AddMessage(NewUserMessage("Hello"))
	conv.AddMessage(NewAssistantMessage("")) // empty: skipped
	conv.AddMessage(NewAssistantMessage("Hi"))

	msgs := conv.EngineMessages()
	if len(msgs) != 3 {
		t.Fatalf("EngineMessages length = %d, want 3", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" || msgs[2].Role != "assistant" {
		t.Errorf("unexpected roles: %+v", msgs)
	}
}

func TestConversation_Clone(t *testing.T) {
	conv := NewConversation()
	conv.AddMessage(NewUserMessage("Hello"))

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Title = "other"

	if conv.Messages[0].Content != "Hello" {
		t.Error("clone should not share message storage")
	}
	if conv.Title == "other" {
		t.Error("clone should not share title")
	}
}

func TestConversation_PruneOldMessages(t *testing.T) {
	conv := NewConversation()
	conv.AddMessage(NewSystemMessage("keep me"))
	for i := 0; i <= MaxMessages; i++ {
		conv.AddMessage(NewUserMessage("msg"))
	}

	if conv.MessageCount() != MaxMessages+1 {
		t.Errorf("MessageCount = %d, want %d", conv.MessageCount(), MaxMessages+1)
	}
	if conv.Messages[0].Role != RoleSystem {
		t.Error("system message should survive pruning")
	}
}

func TestConversation_PruneTo_CustomLimit(t *testing.T) {
	conv := NewConversation()
	conv.AddMessage(NewSystemMessage("keep me"))
	for i := 0; i < 10; i++ {
		conv.AddMessage(NewUserMessage("msg"))
	}

	conv.PruneTo(3)
	if conv.MessageCount() != 4 {
		t.Errorf("MessageCount = %d, want 4", conv.MessageCount())
	}
	if conv.Messages[0].Role != RoleSystem {
		t.Error("system message should survive pruning")
	}

	// Non-positive limits never prune.
	conv.PruneTo(0)
	if conv.MessageCount() != 4 {
		t.Errorf("MessageCount after PruneTo(0) = %d, want 4", conv.MessageCount())
	}
}

func TestConversation_HasCustomTitle(t *testing.T) {
	conv := NewConversation()
	if conv.HasCustomTitle() {
		t.Error("placeholder title is not custom")
	}

	conv.Title = "Rust borrow checker"
	if !conv.HasCustomTitle() {
		t.Error("real title should count as custom")
	}
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestLookupModel(t *testing.T) {
	spec, ok := LookupModel("llama3.2:3b")
	if !ok {
		t.Fatal("llama3.2:3b should be in the catalog")
	}
	if spec.Params != "3B" {
		t.Errorf("Params = %q", spec.Params)
	}

	if _, ok := LookupModel("made-up:99b"); ok {
		t.Error("unknown model should not resolve")
	}

	if !InCatalog("qwen2.5:7b") {
		t.Error("qwen2.5:7b should be in the catalog")
	}
}

func TestModelSpec_SizeString(t *testing.T) {
	spec := ModelSpec{SizeBytes: 4_700_000_000}
	if spec.SizeString() != "4.7 GB" {
		t.Errorf("SizeString = %q", spec.SizeString())
	}

	small := ModelSpec{SizeBytes: 500_000_000}
	if spec := small.SizeString(); spec != "500 MB" {
		t.Errorf("SizeString = %q", spec)
	}
}

func TestModelSpec_ScoreBar(t *testing.T) {
	spec := ModelSpec{Score: 3}
	if spec.ScoreBar() != "***--" {
		t.Errorf("ScoreBar = %q", spec.ScoreBar())
	}
}
