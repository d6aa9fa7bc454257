// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/locallm-tui/internal/ui/styles"
)

func TestToastManager_AddNewestFirst(t *testing.T) {
	m := NewToastManager()

	m.Add("first", ToastInfo)
	m.Add("second", ToastError)

	toasts := m.Toasts()
	if len(toasts) != 2 {
		t.Fatalf("len = %d, want 2", len(toasts))
	}
	if toasts[0].Message != "second" {
		t.Errorf("newest toast should be first, got %q", toasts[0].Message)
	}
	if toasts[0].Duration != ErrorToastDuration {
		t.Errorf("error toast duration = %v", toasts[0].Duration)
	}
	if toasts[1].Duration != InfoToastDuration {
		t.Errorf("info toast duration = %v", toasts[1].Duration)
	}
}

func TestToastManager_TrimsToMax(t *testing.T) {
	m := NewToastManager()

	for i := 0; i < 10; i++ {
		m.Add("msg", ToastInfo)
	}

	if got := len(m.Toasts()); got != 5 {
		t.Errorf("len = %d, want 5", got)
	}
}

func TestToastManager_TickExpires(t *testing.T) {
	m := NewToastManager()
	m.Add("stale", ToastInfo)

	// Force expiry instead of sleeping.
	m.mu.Lock()
	m.toasts[0].CreatedAt = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	if got := m.Tick(); len(got) != 0 {
		t.Errorf("expired toast survived tick: %v", got)
	}
	if m.HasToasts() {
		t.Error("HasToasts() should be false after expiry")
	}
}

func TestToastManager_Clear(t *testing.T) {
	m := NewToastManager()
	m.Add("a", ToastInfo)
	m.Add("b", ToastWarning)

	m.Clear()

	if m.HasToasts() {
		t.Error("Clear() should remove all toasts")
	}
}

func TestRenderToast_ContainsMessage(t *testing.T) {
	theme := styles.NewTheme("dark")
	toast := Toast{
		ID:        1,
		Message:   "model reloaded",
		Kind:      ToastInfo,
		CreatedAt: time.Now(),
		Duration:  InfoToastDuration,
	}

	out := RenderToast(theme, toast, 80)
	if !strings.Contains(out, "model reloaded") {
		t.Errorf("rendered toast missing message: %q", out)
	}
}

func TestRenderToastStack_EmptyIsEmpty(t *testing.T) {
	theme := styles.NewTheme("dark")
	if out := RenderToastStack(theme, nil, 80, 24); out != "" {
		t.Errorf("empty stack should render empty, got %q", out)
	}
}
