// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry tracks which catalog models are installed and drives the
// model lifecycle.
package registry

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jeranaias/locallm-tui/internal/model"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// EngineControl is the slice of the engine the registry drives.
type EngineControl interface {
	Initialize(ctx context.Context) error
	LoadModel(ctx context.Context, model string) error
	CurrentModel() string
}

// InstalledStore persists the installed-model set.
type InstalledStore interface {
	LoadInstalled() ([]string, error)
	SaveInstalled(ids []string) error
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the installed-model set and the model lifecycle state.
type Manager struct {
	mu sync.Mutex

	engine    EngineControl
	store     InstalledStore
	installed []string // install order preserved
}

// NewManager creates a registry manager.
func NewManager(engine EngineControl, store InstalledStore) *Manager {
	return &Manager{
		engine:    engine,
		store:     store,
		installed: make([]string, 0),
	}
}

// Initialize performs first-run bring-up: load the persisted installed set,
// initialize the engine, and when any model is installed, load the first one
// automatically. With an empty set the engine stays initialized without a
// model; the UI prompts for installation.
func (m *Manager) Initialize(ctx context.Context) error {
	ids, err := m.store.LoadInstalled()
	if err != nil {
		return fmt.Errorf("failed to load installed models: %w", err)
	}

	m.mu.Lock()
	m.installed = ids
	first := ""
	if len(ids) > 0 {
		first = ids[0]
	}
	m.mu.Unlock()

	if err := m.engine.Initialize(ctx); err != nil {
		return err
	}

	if first != "" {
		if err := m.engine.LoadModel(ctx, first); err != nil {
			return err
		}
	}
	return nil
}

// Install downloads and loads a catalog model, then records it in the
// installed set. Non-catalog identifiers are rejected before any download
// starts. Installing an already-installed model reloads it without
// duplicating the bookkeeping entry.
func (m *Manager) Install(ctx context.Context, id string) error {
	if !model.InCatalog(id) {
		return fmt.Errorf("model %q is not in the catalog", id)
	}

	if err := m.engine.LoadModel(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.containsLocked(id) {
		m.installed = append(m.installed, id)
	}
	snapshot := append([]string(nil), m.installed...)
	m.mu.Unlock()

	if err := m.store.SaveInstalled(snapshot); err != nil {
		// The model is loaded and usable; losing the bookkeeping write only
		// affects the next startup.
		log.Printf("registry: failed to persist installed set: %v", err)
	}
	return nil
}

// Switch loads an already-installed model into the engine.
func (m *Manager) Switch(ctx context.Context, id string) error {
	if !m.IsInstalled(id) {
		return fmt.Errorf("model %q is not installed", id)
	}
	return m.engine.LoadModel(ctx, id)
}

// Remove drops a model from the installed set. Bookkeeping only: the engine
// keeps running the model until the next load.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	idx := -1
	for i, existing := range m.installed {
		if existing == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil
	}
	m.installed = append(m.installed[:idx], m.installed[idx+1:]...)
	snapshot := append([]string(nil), m.installed...)
	m.mu.Unlock()

	if err := m.store.SaveInstalled(snapshot); err != nil {
		return fmt.Errorf("failed to persist installed set: %w", err)
	}
	return nil
}

// Reload re-loads the engine's current model. Used for crash recovery; it
// touches only engine state, never the install bookkeeping. A no-op when no
// model is loaded.
func (m *Manager) Reload(ctx context.Context) error {
	current := m.engine.CurrentModel()
	if current == "" {
		return nil
	}
	return m.engine.LoadModel(ctx, current)
}

// Installed returns the installed model ids in install order.
func (m *Manager) Installed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.installed...)
}

// IsInstalled reports whether the model id is in the installed set.
func (m *Manager) IsInstalled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containsLocked(id)
}

func (m *Manager) containsLocked(id string) bool {
	for _, existing := range m.installed {
		if existing == id {
			return true
		}
	}
	return false
}
