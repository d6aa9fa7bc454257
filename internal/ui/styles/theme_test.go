// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewTheme_Mode(t *testing.T) {
	if theme := NewTheme("light"); theme.IsDark {
		t.Error("light mode should not resolve as dark")
	}
	if theme := NewTheme("dark"); !theme.IsDark {
		t.Error("dark mode should resolve as dark")
	}
	if theme := NewTheme("auto"); theme == nil {
		t.Error("auto mode should still build a theme")
	}
}

func TestGetLayoutMode(t *testing.T) {
	theme := NewTheme("dark")

	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("GetLayoutMode() at width %d = %v, want %v", tt.width, got, tt.want)
		}
	}
}
