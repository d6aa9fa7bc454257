// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry tracks which catalog models are installed and drives the
// model lifecycle: first-run bring-up, install, remove, and crash-recovery
// reload.
//
// # Key Types
//
//   - Manager: the installed-model set plus lifecycle operations
//
// Install is catalog-gated: only models from the curated catalog can be
// installed. Removal is bookkeeping only; the engine keeps running its
// current model until the next load.
package registry
