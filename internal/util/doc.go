// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the locallm TUI.
//
// This package contains crash-safe file writing and Unicode-aware string
// helpers used by the config and storage layers.
package util
