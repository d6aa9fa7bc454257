// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages,
// plus the curated model catalog shown in the installer.
//
// # Key Types
//
//   - Role: closed set of message senders (system, user, assistant)
//   - Message: a single chat message with identity and edit marker
//   - Conversation: an ordered message list with title and creation time
//   - ModelSpec: one entry of the curated model catalog
//
// Conversations convert to the engine wire format with EngineMessages; the
// rest of the application never builds engine messages by hand.
package model
