// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package summary derives short conversation titles from the first user
// message via a constrained, non-streamed generation request.
//
// # Key Types
//
//   - Generator: per-conversation title generation with an in-memory cache
//
// A conversation is summarized at most once: the cache is keyed by
// conversation id and only successful titles are cached, so a transient
// failure can be retried later. Failures fall back to the placeholder title
// and are never surfaced as errors.
package summary
