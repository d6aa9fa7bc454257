// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the conversation list and selection.
package conversation

import (
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/locallm-tui/internal/model"
)

// =============================================================================
// PERSISTER
// =============================================================================

// Persister is the durable backend the store saves through. SaveAll replaces
// the whole persisted set; LoadAll returns the previously saved set or empty.
type Persister interface {
	SaveAll(conversations []*model.Conversation) error
	LoadAll() ([]*model.Conversation, error)
}

// FirstUserMessageHook is invoked synchronously when a user message becomes
// the first message of a conversation. Used to trigger title summarization.
type FirstUserMessageHook func(conversationID, content string)

// =============================================================================
// STORE
// =============================================================================

// Store holds every conversation and the current selection. All mutating
// operations queue a persistence snapshot in mutation order; the in-memory
// state stays authoritative even when a write fails.
type Store struct {
	mu sync.RWMutex

	conversations []*model.Conversation
	selected      *model.Conversation

	persister Persister
	persistCh chan []*model.Conversation
	done      chan struct{}
	closeOnce sync.Once

	maxMessages int

	onFirstUserMessage FirstUserMessageHook
}

// NewStore creates a store backed by the given persister and starts the
// background writer. Pass a nil persister for an in-memory-only store.
func NewStore(persister Persister) *Store {
	s := &Store{
		conversations: make([]*model.Conversation, 0),
		persister:     persister,
		persistCh:     make(chan []*model.Conversation, 64),
		done:          make(chan struct{}),
		maxMessages:   model.MaxMessages,
	}
	go s.writeLoop()
	return s
}

// SetMaxMessages sets the per-conversation history cap applied on append.
// A non-positive value falls back to the built-in limit.
func (s *Store) SetMaxMessages(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = model.MaxMessages
	}
	s.maxMessages = limit
}

// SetFirstUserMessageHook installs the first-user-message callback. The hook
// runs synchronously inside AppendMessage, outside the store lock.
func (s *Store) SetFirstUserMessageHook(hook FirstUserMessageHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFirstUserMessage = hook
}

// Close drains pending writes and stops the background writer.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.persistCh)
		<-s.done
	})
}

// writeLoop applies queued snapshots in order. Failures are logged, never
// propagated: the live in-memory state is the source of truth.
func (s *Store) writeLoop() {
	defer close(s.done)
	for snapshot := range s.persistCh {
		if s.persister == nil {
			continue
		}
		if err := s.persister.SaveAll(snapshot); err != nil {
			log.Printf("conversation: persist failed: %v", err)
		}
	}
}

// persistLocked snapshots the collection and queues it for the writer.
// Caller must hold the lock; the snapshot is a deep copy so later mutations
// cannot race the write.
func (s *Store) persistLocked() {
	snapshot := make([]*model.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		snapshot[i] = conv.Clone()
	}

	select {
	case s.persistCh <- snapshot:
	case <-s.done:
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Selected returns the currently selected conversation, or nil.
func (s *Store) Selected() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Conversations returns the conversation list, most recent first. The
// returned slice is a copy; the elements are the live conversations.
func (s *Store) Conversations() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Get returns the conversation with the given id, or nil.
func (s *Store) Get(id string) *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(id)
}

// Count returns the number of conversations.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func (s *Store) findLocked(id string) *model.Conversation {
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// =============================================================================
// CRUD OPERATIONS
// =============================================================================

// Create makes a new empty conversation, prepends it, and selects it. When
// the most recent conversation is still empty it is reused instead, so empty
// threads never accumulate.
func (s *Store) Create() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conversations) > 0 && s.conversations[0].IsEmpty() {
		s.selected = s.conversations[0]
		return s.selected
	}

	conv := model.NewConversation()
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.selected = conv
	s.persistLocked()
	return conv
}

// Delete removes the conversation with the given id. When the deleted
// conversation was selected, selection falls back to the new first element,
// or to none when the list is empty. Unknown ids are a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, conv := range s.conversations {
		if conv.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	wasSelected := s.selected != nil && s.selected.ID == id
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if wasSelected {
		if len(s.conversations) > 0 {
			s.selected = s.conversations[0]
		} else {
			s.selected = nil
		}
	}
	s.persistLocked()
}

// ClearAll removes every conversation and clears the selection.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]*model.Conversation, 0)
	s.selected = nil
	s.persistLocked()
}

// SelectByID moves the selection to the conversation with the given id.
// Unknown ids leave the selection unchanged.
func (s *Store) SelectByID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv := s.findLocked(id); conv != nil {
		s.selected = conv
	}
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessage appends a message to the target conversation and persists.
// System messages are rejected: system prompts are injected at generation
// time and never stored in history. When a user message becomes the
// conversation's first message, the first-user-message hook fires
// synchronously before AppendMessage returns.
func (s *Store) AppendMessage(conversationID string, msg model.Message) {
	if msg.Role == model.RoleSystem {
		return
	}

	s.mu.Lock()
	conv := s.findLocked(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return
	}

	conv.AddMessage(msg)
	conv.PruneTo(s.maxMessages)
	firstUser := msg.Role == model.RoleUser && conv.MessageCount() == 1
	hook := s.onFirstUserMessage
	s.persistLocked()
	s.mu.Unlock()

	if firstUser && hook != nil {
		hook(conversationID, msg.Content)
	}
}

// UpdateMessageContent replaces the content of the user message at index and
// marks it edited. Out-of-range indexes and non-user roles are a silent
// no-op.
func (s *Store) UpdateMessageContent(conversationID string, index int, newContent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return
	}

	msg := conv.MessageAt(index)
	if msg == nil || msg.Role != model.RoleUser {
		return
	}

	msg.Content = newContent
	msg.Edited = true
	s.persistLocked()
}

// TruncateAfter removes every message after index, keeping the message at
// index itself. Used to drop stale assistant replies before regeneration.
func (s *Store) TruncateAfter(conversationID string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return
	}

	conv.TruncateAfter(index)
	s.persistLocked()
}

// RenameTitle sets the conversation title. Empty titles are rejected so the
// title invariant (always non-empty) holds.
func (s *Store) RenameTitle(conversationID, newTitle string) {
	if newTitle == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return
	}

	conv.Title = newTitle
	s.persistLocked()
}

// =============================================================================
// STARTUP
// =============================================================================

// LoadFromStorage replaces the in-memory list wholesale from the persister.
// Called once at application start, before any user interaction; the most
// recent conversation becomes selected.
func (s *Store) LoadFromStorage() error {
	if s.persister == nil {
		return nil
	}

	loaded, err := s.persister.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = loaded
	if len(s.conversations) > 0 {
		s.selected = s.conversations[0]
	} else {
		s.selected = nil
	}
	return nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns conversations whose title or message content contains the
// query, case-insensitive, preserving list order. An empty query returns the
// full list.
func (s *Store) Search(query string) []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if query == "" {
		out := make([]*model.Conversation, len(s.conversations))
		copy(out, s.conversations)
		return out
	}

	needle := strings.ToLower(query)
	var out []*model.Conversation
	for _, conv := range s.conversations {
		if strings.Contains(strings.ToLower(conv.Title), needle) {
			out = append(out, conv)
			continue
		}
		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), needle) {
				out = append(out, conv)
				break
			}
		}
	}
	return out
}
