// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODEL CATALOG
// =============================================================================

// ModelSpec is one entry of the curated model catalog offered in the
// installer. Only catalog models can be installed; arbitrary identifiers are
// rejected before any download starts.
type ModelSpec struct {
	// ID is the identifier used with the inference server (name:tag).
	ID string `json:"id"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// Description is a brief note on the model's strengths.
	Description string `json:"description"`

	// Params is the parameter count as displayed ("3B", "7B").
	Params string `json:"params"`

	// SizeBytes is the approximate download size.
	SizeBytes int64 `json:"size_bytes"`

	// Score is a rough quality indicator from 1 (weakest) to 5 used to order
	// the picker.
	Score int `json:"score"`
}

// Catalog is the curated set of installable models, ordered strongest first.
var Catalog = []ModelSpec{
	{
		ID:          "qwen2.5:7b",
		Name:        "Qwen 2.5 7B",
		Description: "Strong general-purpose model, best quality in the catalog",
		Params:      "7B",
		SizeBytes:   4_700_000_000,
		Score:       5,
	},
	{
		ID:          "mistral:7b",
		Name:        "Mistral 7B",
		Description: "Fast and capable general-purpose model",
		Params:      "7B",
		SizeBytes:   4_100_000_000,
		Score:       4,
	},
	{
		ID:          "llama3.2:3b",
		Name:        "Llama 3.2 3B",
		Description: "Compact Meta model, good quality for its size",
		Params:      "3B",
		SizeBytes:   2_000_000_000,
		Score:       3,
	},
	{
		ID:          "phi3:3.8b",
		Name:        "Phi-3 Mini",
		Description: "Microsoft's compact model, runs well on modest hardware",
		Params:      "3.8B",
		SizeBytes:   2_200_000_000,
		Score:       3,
	},
	{
		ID:          "llama3.2:1b",
		Name:        "Llama 3.2 1B",
		Description: "Smallest option, fastest responses",
		Params:      "1B",
		SizeBytes:   1_300_000_000,
		Score:       2,
	},
}

// =============================================================================
// CATALOG LOOKUP
// =============================================================================

// LookupModel finds a catalog entry by its ID.
func LookupModel(id string) (ModelSpec, bool) {
	for _, spec := range Catalog {
		if spec.ID == id {
			return spec, true
		}
	}
	return ModelSpec{}, false
}

// InCatalog reports whether id names a catalog model.
func InCatalog(id string) bool {
	_, ok := LookupModel(id)
	return ok
}

// =============================================================================
// MODEL SPEC METHODS
// =============================================================================

// SizeString returns a formatted download size.
func (m ModelSpec) SizeString() string {
	const gb = 1_000_000_000
	const mb = 1_000_000

	switch {
	case m.SizeBytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(m.SizeBytes)/gb)
	case m.SizeBytes >= mb:
		return fmt.Sprintf("%d MB", m.SizeBytes/mb)
	default:
		return fmt.Sprintf("%d B", m.SizeBytes)
	}
}

// ScoreBar returns a five-character quality bar, e.g. "****-".
func (m ModelSpec) ScoreBar() string {
	score := m.Score
	if score < 0 {
		score = 0
	}
	if score > 5 {
		score = 5
	}
	return strings.Repeat("*", score) + strings.Repeat("-", 5-score)
}
