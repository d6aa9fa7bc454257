// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine adapts a local inference server (Ollama-compatible HTTP API)
// into the capability the chat core consumes: initialize, load a model with
// progress reporting, stream one generation at a time, and cancel.
//
// # Key Types
//
//   - Client: HTTP client for the inference server
//   - Engine: stateful adapter owning model/initialization/generation state
//   - Stream: per-turn token stream handle
//   - ClientError: structured error with an ErrorCode
//
// # Usage
//
// Create an engine and run a streamed turn:
//
//	eng := engine.New(engine.NewClient(nil))
//	if err := eng.Initialize(ctx); err != nil { ... }
//	if err := eng.LoadModel(ctx, "llama3.2:3b"); err != nil { ... }
//	stream, err := eng.GenerateStream(ctx, msgs, systemPrompt)
//	for tok := range stream.Tokens() {
//	    // render partial output
//	}
//	text, err := stream.Wait()
//
// # Error recovery
//
// The server's internal consistency-check failure is mapped to
// CodeInconsistent at this boundary; callers test it with IsRecoverable and
// recover by reloading the current model. No other layer inspects error
// strings.
//
// At most one generation may be in flight per Engine; a second attempt fails
// with ErrBusy rather than queueing.
package engine
