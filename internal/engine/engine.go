// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine adapts a local inference server into the chat capability.
package engine

import (
	"context"
	"sync"
)

// =============================================================================
// ENGINE
// =============================================================================

// ProgressFunc receives model-load progress updates: a status line and a
// completion fraction in [0, 1].
type ProgressFunc func(status string, fraction float64)

// Engine owns the inference state the rest of the application depends on:
// whether the runtime is initialized, which model is loaded, and whether a
// generation is currently in flight. At most one generation runs at a time.
type Engine struct {
	mu sync.Mutex

	client       *Client
	currentModel string
	initialized  bool
	generating   bool

	onProgress ProgressFunc

	// cancel aborts the in-flight generation, nil when idle.
	cancel context.CancelFunc
}

// New creates an engine around the given client.
func New(client *Client) *Engine {
	if client == nil {
		client = NewClient(nil)
	}
	return &Engine{client: client}
}

// SetProgressFunc installs the callback that receives LoadModel progress.
// Pass nil to silence progress reporting.
func (e *Engine) SetProgressFunc(fn ProgressFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProgress = fn
}

// IsInitialized reports whether Initialize has completed successfully.
func (e *Engine) IsInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// IsGenerating reports whether a generation is currently in flight.
func (e *Engine) IsGenerating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generating
}

// CurrentModel returns the identifier of the loaded model, or "" when no
// model has been loaded yet.
func (e *Engine) CurrentModel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentModel
}

// Initialize brings up the inference runtime, starting the server process if
// configured to. Idempotent: calling it again after success is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.client.EnsureRunning(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	return nil
}

// LoadModel pulls the model (a no-op download when already present) and warms
// it into server memory. On success it becomes the current model. Progress is
// reported through the installed ProgressFunc. LoadModel is also the recovery
// path: reloading the current model clears the server's recoverable failure
// state.
func (e *Engine) LoadModel(ctx context.Context, model string) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.generating {
		e.mu.Unlock()
		return ErrBusy
	}
	progress := e.onProgress
	e.mu.Unlock()

	var onPull func(PullProgress)
	if progress != nil {
		onPull = func(p PullProgress) {
			progress(p.Status, p.Fraction)
		}
	}

	if err := e.client.PullModel(ctx, model, onPull); err != nil {
		return err
	}
	if err := e.client.Warm(ctx, model); err != nil {
		return err
	}

	e.mu.Lock()
	e.currentModel = model
	e.mu.Unlock()
	return nil
}

// GenerateStream starts a streamed generation over the given messages with an
// optional system prompt prepended. It fails with ErrBusy when a generation
// is already in flight, ErrNotInitialized before Initialize, and ErrNoModel
// when no model is loaded. The returned stream is scoped to this turn.
func (e *Engine) GenerateStream(ctx context.Context, messages []Message, systemPrompt string) (TokenStream, error) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if e.currentModel == "" {
		e.mu.Unlock()
		return nil, ErrNoModel
	}
	if e.generating {
		e.mu.Unlock()
		return nil, ErrBusy
	}

	genCtx, cancel := context.WithCancel(ctx)
	e.generating = true
	e.cancel = cancel
	model := e.currentModel
	e.mu.Unlock()

	stream, err := e.client.ChatStream(genCtx, model, withSystemPrompt(messages, systemPrompt))
	if err != nil {
		e.endGenerate()
		return nil, err
	}

	// Release the busy flag the moment the stream ends, however it ends.
	go func() {
		<-stream.done
		e.endGenerate()
	}()

	return stream, nil
}

// Generate runs a non-streamed completion, used for short auxiliary requests
// such as title summaries. It shares the single-generation gate with
// GenerateStream.
func (e *Engine) Generate(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return "", ErrNotInitialized
	}
	if e.currentModel == "" {
		e.mu.Unlock()
		return "", ErrNoModel
	}
	if e.generating {
		e.mu.Unlock()
		return "", ErrBusy
	}

	genCtx, cancel := context.WithCancel(ctx)
	e.generating = true
	e.cancel = cancel
	model := e.currentModel
	e.mu.Unlock()
	defer e.endGenerate()

	resp, err := e.client.Chat(genCtx, model, withSystemPrompt(messages, systemPrompt))
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Cancel aborts the in-flight generation, if any. Safe to call when idle.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) endGenerate() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.generating = false
	e.mu.Unlock()
}

// withSystemPrompt prepends a system message unless one is already present or
// the prompt is empty.
func withSystemPrompt(messages []Message, systemPrompt string) []Message {
	if systemPrompt == "" {
		return messages
	}
	if len(messages) > 0 && messages[0].Role == "system" {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, NewSystemMessage(systemPrompt))
	out = append(out, messages...)
	return out
}
