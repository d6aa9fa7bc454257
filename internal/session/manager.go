// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates generation turns.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/locallm-tui/internal/engine"
	"github.com/jeranaias/locallm-tui/internal/model"
)

// FallbackMessage is the assistant reply committed when a generation fails,
// so every accepted turn ends with a paired response.
const FallbackMessage = "Sorry, I encountered an error while generating a response."

// ErrRejected is returned when a turn's preconditions fail. Rejections are
// side-effect free; callers typically ignore them rather than surfacing an
// error to the user.
var ErrRejected = errors.New("turn rejected")

// =============================================================================
// PHASE
// =============================================================================

// Phase is the turn state machine. Transitions are owned exclusively by the
// Manager; no other component mutates generation state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseStreaming
	PhaseReloading
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseStreaming:
		return "streaming"
	case PhaseReloading:
		return "reloading"
	default:
		return "unknown"
	}
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Generator is the engine capability the manager consumes. *engine.Engine
// satisfies it directly.
type Generator interface {
	IsInitialized() bool
	CurrentModel() string
	GenerateStream(ctx context.Context, messages []engine.Message, systemPrompt string) (engine.TokenStream, error)
	LoadModel(ctx context.Context, model string) error
	Cancel()
}

// ConversationStore is the slice of the conversation store the manager
// mutates.
type ConversationStore interface {
	Selected() *model.Conversation
	Get(id string) *model.Conversation
	AppendMessage(conversationID string, msg model.Message)
	UpdateMessageContent(conversationID string, index int, newContent string)
	TruncateAfter(conversationID string, index int)
}

// Notifier delivers transient, non-blocking notifications to the user.
type Notifier interface {
	Info(message string)
	Warn(message string)
	Error(message string)
}

// PartialFunc receives the accumulated partial response during streaming,
// tagged with the conversation that owns the turn.
type PartialFunc func(conversationID, partial string)

// =============================================================================
// MANAGER
// =============================================================================

// Manager runs generation turns against the shared engine, one at a time.
type Manager struct {
	mu sync.Mutex

	phase      Phase
	owningConv string
	partial    strings.Builder

	eng      Generator
	store    ConversationStore
	notifier Notifier

	cancelMgr *cancelManager

	onPartial    PartialFunc
	systemPrompt string
}

// NewManager creates a session manager. notifier may be nil.
func NewManager(eng Generator, store ConversationStore, notifier Notifier) *Manager {
	return &Manager{
		phase:     PhaseIdle,
		eng:       eng,
		store:     store,
		notifier:  notifier,
		cancelMgr: newCancelManager(),
	}
}

// SetPartialFunc installs the streaming callback.
func (m *Manager) SetPartialFunc(fn PartialFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPartial = fn
}

// SetSystemPrompt sets the synthetic system prompt prepended on every turn.
// It is never persisted as part of conversation history.
func (m *Manager) SetSystemPrompt(prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemPrompt = prompt
}

// Phase returns the current turn phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// IsGenerating reports whether a turn is in flight (any non-idle phase).
func (m *Manager) IsGenerating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase != PhaseIdle
}

// Partial returns the in-flight partial response when conversationID owns
// the current turn, and "" otherwise. This is the scoping rule that keeps
// streamed tokens from appearing under a different conversation.
func (m *Manager) Partial(conversationID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseStreaming || m.owningConv != conversationID {
		return ""
	}
	return m.partial.String()
}

// Cancel aborts the in-flight turn, if any. The partial output is discarded.
func (m *Manager) Cancel() {
	m.cancelMgr.cancel()
	m.eng.Cancel()
}

// =============================================================================
// SEND
// =============================================================================

// Send runs one full generation turn for the selected conversation: append
// the user message, stream the reply, commit the assistant message. Blocks
// until the turn finishes; the UI invokes it from a command goroutine.
//
// Preconditions are checked atomically; on failure ErrRejected is returned
// with no side effects.
func (m *Manager) Send(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)

	m.mu.Lock()
	selected := m.store.Selected()
	if input == "" || m.phase != PhaseIdle || !m.eng.IsInitialized() || selected == nil {
		m.mu.Unlock()
		return ErrRejected
	}
	m.phase = PhasePending
	m.owningConv = selected.ID
	convID := selected.ID
	// The cancel context is registered before Idle is left behind, so a
	// Cancel() that lands during Pending (the title summary can hold that
	// phase for seconds) has something to fire.
	turnCtx, cancel := context.WithCancel(ctx)
	m.cancelMgr.set(cancel)
	m.mu.Unlock()

	// Appending the first user message triggers title summarization
	// synchronously through the store hook; the summary's engine call
	// completes before the streamed turn starts, so the two never contend
	// for the single-generation gate.
	m.store.AppendMessage(convID, model.NewUserMessage(input))

	return m.runTurn(turnCtx, convID)
}

// EditAndRegenerate replaces the user message at index, truncates everything
// after it, and regenerates with the edited message as the new tail. No new
// user message is appended.
func (m *Manager) EditAndRegenerate(ctx context.Context, conversationID string, index int, newContent string) error {
	newContent = strings.TrimSpace(newContent)

	m.mu.Lock()
	conv := m.store.Get(conversationID)
	if newContent == "" || m.phase != PhaseIdle || !m.eng.IsInitialized() || conv == nil {
		m.mu.Unlock()
		return ErrRejected
	}
	msg := conv.MessageAt(index)
	if msg == nil || msg.Role != model.RoleUser {
		m.mu.Unlock()
		return ErrRejected
	}
	m.phase = PhasePending
	m.owningConv = conversationID
	turnCtx, cancel := context.WithCancel(ctx)
	m.cancelMgr.set(cancel)
	m.mu.Unlock()

	m.store.UpdateMessageContent(conversationID, index, newContent)
	m.store.TruncateAfter(conversationID, index)

	return m.runTurn(turnCtx, conversationID)
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

// runTurn streams one generation and commits the outcome. The phase is
// Pending on entry and Idle on exit, always; ctx is the per-turn cancel
// context registered by Send or EditAndRegenerate.
func (m *Manager) runTurn(ctx context.Context, conversationID string) error {
	defer m.endTurn()

	conv := m.store.Get(conversationID)
	if conv == nil {
		return ErrRejected
	}

	m.mu.Lock()
	m.phase = PhaseStreaming
	m.partial.Reset()
	systemPrompt := m.systemPrompt
	onPartial := m.onPartial
	m.mu.Unlock()

	// Cancelled before the stream was requested: nothing to commit.
	if ctx.Err() != nil {
		return nil
	}

	stream, err := m.eng.GenerateStream(ctx, conv.EngineMessages(), systemPrompt)
	if err != nil {
		// A cancel that lands while the stream is still being established
		// is cancellation, not failure: no fallback message.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		m.handleFailure(ctx, conversationID, err)
		return nil
	}

	for token := range stream.Tokens() {
		m.mu.Lock()
		m.partial.WriteString(token)
		snapshot := m.partial.String()
		m.mu.Unlock()

		if onPartial != nil {
			onPartial(conversationID, snapshot)
		}
	}

	text, err := stream.Wait()
	switch {
	case err == nil:
		m.store.AppendMessage(conversationID, model.NewAssistantMessage(text))
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		// Cancellation is not completion: the partial buffer is discarded
		// and no assistant message is committed.
	default:
		m.handleFailure(ctx, conversationID, err)
	}
	return nil
}

// handleFailure implements the recovery protocol: on the known recoverable
// engine failure, notify, reload the current model, notify the outcome, then
// commit the fallback message either way. Any other failure commits the
// fallback directly.
func (m *Manager) handleFailure(ctx context.Context, conversationID string, genErr error) {
	log.Printf("session: generation failed: %v", genErr)

	current := m.eng.CurrentModel()
	if engine.IsRecoverable(genErr) && current != "" {
		m.notify(func(n Notifier) { n.Warn("The model hit an internal error, reloading it now") })

		m.mu.Lock()
		m.phase = PhaseReloading
		m.mu.Unlock()

		if err := m.eng.LoadModel(ctx, current); err != nil {
			log.Printf("session: model reload failed: %v", err)
			m.notify(func(n Notifier) { n.Error("Model reload failed, try switching models") })
		} else {
			m.notify(func(n Notifier) { n.Info("Model reloaded") })
		}
	}

	m.store.AppendMessage(conversationID, model.NewAssistantMessage(FallbackMessage))
}

// endTurn resets the state machine to idle and clears per-turn state.
func (m *Manager) endTurn() {
	m.cancelMgr.clear()

	m.mu.Lock()
	m.phase = PhaseIdle
	m.owningConv = ""
	m.partial.Reset()
	m.mu.Unlock()
}

func (m *Manager) notify(fn func(Notifier)) {
	if m.notifier != nil {
		fn(m.notifier)
	}
}
