// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations and the installed-model set in a
// local SQLite database.
package storage

import (
	"path/filepath"
	"testing"

	"github.com/jeranaias/locallm-tui/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "locallm.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// CONVERSATION PERSISTENCE TESTS
// =============================================================================

func TestStore_SaveLoadConversations(t *testing.T) {
	store := newTestStore(t)

	first := model.NewConversation()
	first.Title = "Rust borrow checker"
	first.AddMessage(model.NewUserMessage("Explain the borrow checker"))
	first.AddMessage(model.NewAssistantMessage("It tracks ownership..."))

	second := model.NewConversation()
	second.AddMessage(model.NewUserMessage("Hello"))

	if err := store.SaveAll([]*model.Conversation{first, second}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("loaded length = %d, want 2", len(loaded))
	}

	byID := map[string]*model.Conversation{}
	for _, conv := range loaded {
		byID[conv.ID] = conv
	}

	got, ok := byID[first.ID]
	if !ok {
		t.Fatal("first conversation missing after reload")
	}
	if got.Title != "Rust borrow checker" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.MessageCount() != 2 {
		t.Errorf("MessageCount = %d, want 2", got.MessageCount())
	}
	if got.Messages[0].Content != "Explain the borrow checker" {
		t.Errorf("Messages[0].Content = %q", got.Messages[0].Content)
	}
}

func TestStore_SaveAll_Replaces(t *testing.T) {
	store := newTestStore(t)

	conv := model.NewConversation()
	if err := store.SaveAll([]*model.Conversation{conv}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	// Saving a different set removes the old rows.
	other := model.NewConversation()
	if err := store.SaveAll([]*model.Conversation{other}); err != nil {
		t.Fatalf("second SaveAll() error = %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != other.ID {
		t.Errorf("expected only the replacement conversation, got %d rows", len(loaded))
	}
}

func TestStore_SaveAll_Empty(t *testing.T) {
	store := newTestStore(t)

	conv := model.NewConversation()
	if err := store.SaveAll([]*model.Conversation{conv}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if err := store.SaveAll(nil); err != nil {
		t.Fatalf("SaveAll(nil) error = %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded length = %d, want 0", len(loaded))
	}
}

func TestStore_LoadAll_EditedFlagSurvives(t *testing.T) {
	store := newTestStore(t)

	conv := model.NewConversation()
	msg := model.NewUserMessage("original")
	msg.Edited = true
	conv.AddMessage(msg)

	if err := store.SaveAll([]*model.Conversation{conv}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded length = %d, want 1", len(loaded))
	}
	if !loaded[0].Messages[0].Edited {
		t.Error("Edited flag should survive a round trip")
	}
}

// =============================================================================
// INSTALLED MODEL TESTS
// =============================================================================

func TestStore_SaveLoadInstalled(t *testing.T) {
	store := newTestStore(t)

	// Fresh database: empty set.
	ids, err := store.LoadInstalled()
	if err != nil {
		t.Fatalf("LoadInstalled() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("fresh install should have no models, got %v", ids)
	}

	want := []string{"llama3.2:3b", "qwen2.5:7b"}
	if err := store.SaveInstalled(want); err != nil {
		t.Fatalf("SaveInstalled() error = %v", err)
	}

	ids, err = store.LoadInstalled()
	if err != nil {
		t.Fatalf("LoadInstalled() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("LoadInstalled() = %v, want %v", ids, want)
	}

	// Replace with a smaller set.
	if err := store.SaveInstalled([]string{"qwen2.5:7b"}); err != nil {
		t.Fatalf("SaveInstalled() error = %v", err)
	}
	ids, _ = store.LoadInstalled()
	if len(ids) != 1 || ids[0] != "qwen2.5:7b" {
		t.Errorf("LoadInstalled() = %v", ids)
	}
}

// =============================================================================
// OPEN TESTS
// =============================================================================

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "locallm.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if store.Path() != path {
		t.Errorf("Path() = %q", store.Path())
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") should fail")
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locallm.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	conv := model.NewConversation()
	conv.AddMessage(model.NewUserMessage("persisted"))
	if err := store.SaveAll([]*model.Conversation{conv}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	store.Close()

	// Simulates restart after crash recovery.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].Messages[0].Content != "persisted" {
		t.Errorf("reloaded data mismatch: %+v", loaded)
	}
}
