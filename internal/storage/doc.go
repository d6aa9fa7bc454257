// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations and the installed-model set in a
// local SQLite database.
//
// # Key Types
//
//   - Store: database handle with whole-collection save/load operations
//
// Persistence is whole-collection replacement: SaveAll writes the complete
// conversation set in one transaction, so on crash the database holds either
// the previous snapshot or the new one, never a mix. The installed-model set
// is stored separately and follows the same replace-on-save rule.
package storage
