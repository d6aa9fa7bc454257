// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates generation turns.
package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/locallm-tui/internal/conversation"
	"github.com/jeranaias/locallm-tui/internal/engine"
	"github.com/jeranaias/locallm-tui/internal/model"
)

// =============================================================================
// TEST FAKES
// =============================================================================

// fakeStream is a hand-fed TokenStream.
type fakeStream struct {
	tokens chan string
	done   chan struct{}
	text   string
	err    error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		tokens: make(chan string, 16),
		done:   make(chan struct{}),
	}
}

func (s *fakeStream) Tokens() <-chan string { return s.tokens }

func (s *fakeStream) Wait() (string, error) {
	<-s.done
	return s.text, s.err
}

// finish closes the stream with the given outcome.
func (s *fakeStream) finish(text string, err error) {
	s.text = text
	s.err = err
	close(s.tokens)
	close(s.done)
}

// emit sends tokens through the stream.
func (s *fakeStream) emit(tokens ...string) {
	for _, tok := range tokens {
		s.tokens <- tok
	}
}

// fakeGenerator hands out prepared streams and records calls.
type fakeGenerator struct {
	mu          sync.Mutex
	initialized bool
	current     string
	streams     []*fakeStream
	streamErr   error
	blockStart  bool // GenerateStream blocks until ctx is cancelled
	genCalls    int
	loads       []string
	loadErr     error
	cancelled   bool
}

func (f *fakeGenerator) IsInitialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *fakeGenerator) CurrentModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, messages []engine.Message, systemPrompt string) (engine.TokenStream, error) {
	f.mu.Lock()
	f.genCalls++
	blockStart := f.blockStart
	streamErr := f.streamErr
	var s *fakeStream
	if len(f.streams) > 0 {
		s = f.streams[0]
		f.streams = f.streams[1:]
	}
	f.mu.Unlock()

	if blockStart {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if streamErr != nil {
		return nil, streamErr
	}
	if s == nil {
		s = newFakeStream()
		s.finish("", nil)
	}
	return s, nil
}

func (f *fakeGenerator) LoadModel(ctx context.Context, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loads = append(f.loads, model)
	return nil
}

func (f *fakeGenerator) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
}

func (f *fakeGenerator) loadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

// fakeNotifier records notifications.
type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (n *fakeNotifier) Info(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

func (n *fakeNotifier) Warn(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warns = append(n.warns, message)
}

func (n *fakeNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

// newTestManager wires a manager around a real in-memory conversation store
// and an initialized fake engine with a loaded model.
func newTestManager(t *testing.T) (*Manager, *fakeGenerator, *conversation.Store, *fakeNotifier) {
	t.Helper()
	store := conversation.NewStore(nil)
	t.Cleanup(store.Close)

	gen := &fakeGenerator{initialized: true, current: "llama3.2:3b"}
	notifier := &fakeNotifier{}
	mgr := NewManager(gen, store, notifier)
	return mgr, gen, store, notifier
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestManager_Send_Success(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()

	stream := newFakeStream()
	gen.streams = []*fakeStream{stream}

	var partials []string
	var partialsMu sync.Mutex
	mgr.SetPartialFunc(func(conversationID, partial string) {
		partialsMu.Lock()
		defer partialsMu.Unlock()
		assert.Equal(t, conv.ID, conversationID)
		partials = append(partials, partial)
	})

	done := make(chan error, 1)
	go func() { done <- mgr.Send(context.Background(), "Hello") }()

	waitFor(t, func() bool { return mgr.Phase() == PhaseStreaming }, "never reached streaming")
	stream.emit("Hel", "lo", " there")
	stream.finish("Hello there", nil)

	require.NoError(t, <-done)

	// One user message, one assistant message.
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, model.RoleUser, conv.MessageAt(0).Role)
	assert.Equal(t, "Hello", conv.MessageAt(0).Content)
	assert.Equal(t, model.RoleAssistant, conv.MessageAt(1).Role)
	assert.Equal(t, "Hello there", conv.MessageAt(1).Content)

	// Partial callback saw the accumulating buffer in order.
	partialsMu.Lock()
	require.NotEmpty(t, partials)
	assert.Equal(t, "Hel", partials[0])
	assert.Equal(t, "Hello there", partials[len(partials)-1])
	partialsMu.Unlock()

	assert.Equal(t, PhaseIdle, mgr.Phase())
}

func TestManager_Send_Preconditions(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		mgr, _, store, _ := newTestManager(t)
		conv := store.Create()

		err := mgr.Send(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, 0, conv.MessageCount())
	})

	t.Run("no selection", func(t *testing.T) {
		mgr, gen, _, _ := newTestManager(t)

		err := mgr.Send(context.Background(), "Hello")
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, 0, gen.genCalls)
	})

	t.Run("engine not initialized", func(t *testing.T) {
		mgr, gen, store, _ := newTestManager(t)
		conv := store.Create()
		gen.initialized = false

		err := mgr.Send(context.Background(), "Hello")
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, 0, conv.MessageCount())
	})
}

func TestManager_Send_SingleFlight(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	store.Create()

	stream := newFakeStream()
	gen.streams = []*fakeStream{stream}

	done := make(chan error, 1)
	go func() { done <- mgr.Send(context.Background(), "first") }()
	waitFor(t, func() bool { return mgr.Phase() == PhaseStreaming }, "never reached streaming")

	// A second turn while one is in flight is rejected, not queued.
	err := mgr.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, gen.genCalls)

	stream.finish("reply", nil)
	require.NoError(t, <-done)

	// After the turn, a new one is accepted.
	gen.mu.Lock()
	quick := newFakeStream()
	quick.finish("second reply", nil)
	gen.streams = []*fakeStream{quick}
	gen.mu.Unlock()
	assert.NoError(t, mgr.Send(context.Background(), "third"))
}

func TestManager_Send_CancelDiscardsPartial(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()

	stream := newFakeStream()
	gen.streams = []*fakeStream{stream}

	done := make(chan error, 1)
	go func() { done <- mgr.Send(context.Background(), "Hello") }()
	waitFor(t, func() bool { return mgr.Phase() == PhaseStreaming }, "never reached streaming")

	stream.emit("partial ", "output")
	waitFor(t, func() bool { return mgr.Partial(conv.ID) == "partial output" }, "partial never accumulated")

	mgr.Cancel()
	stream.finish("partial output", context.Canceled)

	require.NoError(t, <-done)

	// No assistant message: the buffered partial is discarded.
	require.Equal(t, 1, conv.MessageCount())
	assert.Equal(t, model.RoleUser, conv.MessageAt(0).Role)
	assert.Equal(t, PhaseIdle, mgr.Phase())
	assert.True(t, gen.cancelled)
	assert.Empty(t, mgr.Partial(conv.ID))
}

func TestManager_Cancel_WhileStreamEstablishing(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()
	gen.blockStart = true

	done := make(chan error, 1)
	go func() { done <- mgr.Send(context.Background(), "Hello") }()
	waitFor(t, func() bool { return mgr.Phase() == PhaseStreaming }, "never reached streaming")

	// The engine is still establishing the stream; cancel must unblock it
	// and commit nothing.
	mgr.Cancel()
	require.NoError(t, <-done)

	require.Equal(t, 1, conv.MessageCount())
	assert.Equal(t, model.RoleUser, conv.MessageAt(0).Role)
	assert.Equal(t, PhaseIdle, mgr.Phase())
	assert.True(t, gen.cancelled)
}

func TestManager_Cancel_DuringPending(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()

	// The first-user-message hook runs synchronously inside AppendMessage,
	// while the turn is still Pending. Cancelling from it exercises a cancel
	// that arrives before the stream is even requested.
	store.SetFirstUserMessageHook(func(conversationID, content string) {
		mgr.Cancel()
	})

	require.NoError(t, mgr.Send(context.Background(), "Hello"))

	// The turn never reached the engine and committed nothing.
	assert.Equal(t, 0, gen.genCalls)
	require.Equal(t, 1, conv.MessageCount())
	assert.Equal(t, model.RoleUser, conv.MessageAt(0).Role)
	assert.Equal(t, PhaseIdle, mgr.Phase())
}

// =============================================================================
// FAILURE AND RECOVERY TESTS
// =============================================================================

func TestManager_Send_RecoverableErrorReloads(t *testing.T) {
	mgr, gen, store, notifier := newTestManager(t)
	conv := store.Create()

	stream := newFakeStream()
	gen.streams = []*fakeStream{stream}

	done := make(chan error, 1)
	go func() { done <- mgr.Send(context.Background(), "Hello") }()
	waitFor(t, func() bool { return mgr.Phase() == PhaseStreaming }, "never reached streaming")

	stream.emit("doomed")
	stream.finish("doomed", &engine.ClientError{
		Code:    engine.CodeInconsistent,
		Message: "consistency check failed",
	})

	require.NoError(t, <-done)

	// Reload of the current model was attempted.
	assert.Equal(t, []string{"llama3.2:3b"}, gen.loadCalls())

	// User saw a warning, then the success notice.
	notifier.mu.Lock()
	assert.NotEmpty(t, notifier.warns)
	assert.NotEmpty(t, notifier.infos)
	notifier.mu.Unlock()

	// Fallback assistant message committed regardless of reload outcome.
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, FallbackMessage, conv.MessageAt(1).Content)
	assert.Equal(t, PhaseIdle, mgr.Phase())
}

func TestManager_Send_RecoverableErrorReloadFails(t *testing.T) {
	mgr, gen, store, notifier := newTestManager(t)
	conv := store.Create()

	stream := newFakeStream()
	stream.finish("", &engine.ClientError{Code: engine.CodeInconsistent, Message: "consistency check failed"})
	gen.streams = []*fakeStream{stream}
	gen.loadErr = errors.New("out of memory")

	require.NoError(t, mgr.Send(context.Background(), "Hello"))

	// Reload failed but the fallback is still committed.
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, FallbackMessage, conv.MessageAt(1).Content)

	notifier.mu.Lock()
	assert.NotEmpty(t, notifier.errors)
	notifier.mu.Unlock()
}

func TestManager_Send_RecoverableErrorNoModel(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()
	gen.current = "" // nothing to reload against

	stream := newFakeStream()
	stream.finish("", &engine.ClientError{Code: engine.CodeInconsistent, Message: "consistency check failed"})
	gen.streams = []*fakeStream{stream}

	require.NoError(t, mgr.Send(context.Background(), "Hello"))

	// Reload skipped, straight to the fallback.
	assert.Empty(t, gen.loadCalls())
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, FallbackMessage, conv.MessageAt(1).Content)
}

func TestManager_Send_FatalError(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()

	stream := newFakeStream()
	stream.finish("", &engine.ClientError{Code: engine.CodeConnection, Message: "stream interrupted"})
	gen.streams = []*fakeStream{stream}

	require.NoError(t, mgr.Send(context.Background(), "Hello"))

	// No reload for unrecognized failures, fallback committed.
	assert.Empty(t, gen.loadCalls())
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, FallbackMessage, conv.MessageAt(1).Content)
}

func TestManager_Send_StartErrorCommitsFallback(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()
	gen.streamErr = &engine.ClientError{Code: engine.CodeNotRunning, Message: "server gone"}

	require.NoError(t, mgr.Send(context.Background(), "Hello"))

	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, FallbackMessage, conv.MessageAt(1).Content)
	assert.Equal(t, PhaseIdle, mgr.Phase())
}

// =============================================================================
// PARTIAL SCOPING TESTS
// =============================================================================

func TestManager_Partial_ScopedToOwningConversation(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	first := store.Create()
	store.AppendMessage(first.ID, model.NewUserMessage("seed"))
	second := store.Create()
	store.SelectByID(first.ID)

	stream := newFakeStream()
	gen.streams = []*fakeStream{stream}

	done := make(chan error, 1)
	go func() { done <- mgr.Send(context.Background(), "Hello") }()
	waitFor(t, func() bool { return mgr.Phase() == PhaseStreaming }, "never reached streaming")

	stream.emit("tokens")
	waitFor(t, func() bool { return mgr.Partial(first.ID) != "" }, "partial never visible")

	// Switching selection mid-stream: the partial stays with its owner.
	store.SelectByID(second.ID)
	assert.Equal(t, "tokens", mgr.Partial(first.ID))
	assert.Empty(t, mgr.Partial(second.ID))

	stream.finish("tokens", nil)
	require.NoError(t, <-done)

	// The reply landed in the owning conversation, not the selected one.
	assert.Equal(t, model.RoleAssistant, first.LastMessage().Role)
	assert.Equal(t, 0, second.MessageCount())
}

// =============================================================================
// EDIT-AND-REGENERATE TESTS
// =============================================================================

func TestManager_EditAndRegenerate(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()
	store.AppendMessage(conv.ID, model.NewUserMessage("q1"))
	store.AppendMessage(conv.ID, model.NewAssistantMessage("a1"))
	store.AppendMessage(conv.ID, model.NewUserMessage("q2"))
	store.AppendMessage(conv.ID, model.NewAssistantMessage("a2"))
	store.AppendMessage(conv.ID, model.NewUserMessage("q3"))

	stream := newFakeStream()
	stream.finish("fresh answer", nil)
	gen.streams = []*fakeStream{stream}

	require.NoError(t, mgr.EditAndRegenerate(context.Background(), conv.ID, 2, "Revised question"))

	// Edited message is the tail, stale replies are gone, new reply follows.
	require.Equal(t, 4, conv.MessageCount())
	edited := conv.MessageAt(2)
	assert.Equal(t, "Revised question", edited.Content)
	assert.True(t, edited.Edited)
	assert.Equal(t, "fresh answer", conv.MessageAt(3).Content)
	assert.Equal(t, model.RoleAssistant, conv.MessageAt(3).Role)
}

func TestManager_EditAndRegenerate_Guards(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()
	store.AppendMessage(conv.ID, model.NewUserMessage("q1"))
	store.AppendMessage(conv.ID, model.NewAssistantMessage("a1"))

	// Assistant message cannot be edited.
	err := mgr.EditAndRegenerate(context.Background(), conv.ID, 1, "tampered")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "a1", conv.MessageAt(1).Content)

	// Out-of-range index.
	err = mgr.EditAndRegenerate(context.Background(), conv.ID, 9, "nothing")
	assert.ErrorIs(t, err, ErrRejected)

	// Unknown conversation.
	err = mgr.EditAndRegenerate(context.Background(), "no-such-id", 0, "text")
	assert.ErrorIs(t, err, ErrRejected)

	assert.Equal(t, 0, gen.genCalls)
	assert.Equal(t, 2, conv.MessageCount())
}

func TestManager_EditAndRegenerate_RejectedWhileBusy(t *testing.T) {
	mgr, gen, store, _ := newTestManager(t)
	conv := store.Create()
	store.AppendMessage(conv.ID, model.NewUserMessage("q1"))

	stream := newFakeStream()
	gen.streams = []*fakeStream{stream}

	done := make(chan error, 1)
	go func() { done <- mgr.Send(context.Background(), "Hello") }()
	waitFor(t, func() bool { return mgr.Phase() == PhaseStreaming }, "never reached streaming")

	err := mgr.EditAndRegenerate(context.Background(), conv.ID, 0, "revised")
	assert.ErrorIs(t, err, ErrRejected)

	stream.finish("reply", nil)
	require.NoError(t, <-done)
}
