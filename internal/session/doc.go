// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates generation turns: one user message in, one
// assistant message out, streamed through the shared engine.
//
// # Key Types
//
//   - Manager: the turn state machine (Idle, Pending, Streaming, Reloading)
//   - Generator: the engine capability the manager consumes
//   - Notifier: transient, non-blocking user notifications
//
// # Turn lifecycle
//
// A turn starts only when all preconditions hold atomically: non-empty input,
// no generation in flight, engine initialized, a conversation selected.
// Rejections are side-effect free. During streaming the partial response is
// scoped to the conversation that started the turn; switching conversations
// mid-stream never leaks tokens across threads.
//
// On a recoverable engine failure the manager notifies the user, reloads the
// current model, and commits a fallback assistant message regardless of the
// reload outcome, so every accepted turn ends with a paired response.
// Cancellation discards the partial output without committing anything.
package session
