// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the conversation list and selection: the single
// source of truth the rest of the application reads from.
//
// # Key Types
//
//   - Store: conversation collection with CRUD, message append/edit/truncate,
//     selection, and write-behind persistence
//   - Persister: the durable backend the store saves through
//
// Every mutation snapshots the collection and queues it for the background
// writer in mutation order, so the persisted state never regresses to an
// older version after a newer one was visible in memory. The selected
// conversation is a pointer into the collection itself; it can never diverge
// from the entry with the same id.
package conversation
