// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/locallm-tui/internal/ui/components"
)

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestToastNotifier_SendsToasts(t *testing.T) {
	n := NewToastNotifier()
	rec := &recordingSender{}
	n.Attach(rec)

	n.Info("loaded")
	n.Warn("reloading")
	n.Error("failed")

	if len(rec.msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(rec.msgs))
	}

	kinds := []components.ToastKind{components.ToastInfo, components.ToastWarning, components.ToastError}
	texts := []string{"loaded", "reloading", "failed"}
	for i, msg := range rec.msgs {
		add, ok := msg.(components.ToastAddMsg)
		if !ok {
			t.Fatalf("msg %d is %T, want ToastAddMsg", i, msg)
		}
		if add.Kind != kinds[i] {
			t.Errorf("msg %d kind = %v, want %v", i, add.Kind, kinds[i])
		}
		if add.Message != texts[i] {
			t.Errorf("msg %d text = %q, want %q", i, add.Message, texts[i])
		}
	}
}

func TestToastNotifier_BeforeAttachIsDropped(t *testing.T) {
	n := NewToastNotifier()

	// Must not panic with no sender attached.
	n.Info("early")
	n.Error("early error")

	rec := &recordingSender{}
	n.Attach(rec)
	n.Info("late")

	if len(rec.msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(rec.msgs))
	}
}
