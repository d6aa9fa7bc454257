// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/locallm-tui/internal/model"
)

func exportFixture() *model.Conversation {
	conv := model.NewConversation()
	conv.Title = "python basics"
	conv.AddMessage(model.NewUserMessage("How do I print in Python?"))

	reply := model.NewAssistantMessage("Use `print(\"hello\")`.")
	conv.AddMessage(reply)
	return conv
}

func TestExportMarkdown(t *testing.T) {
	conv := exportFixture()

	data, err := ExportMarkdown(conv, "llama3.2:3b")
	if err != nil {
		t.Fatalf("ExportMarkdown() error = %v", err)
	}

	out := string(data)
	for _, want := range []string{
		"# python basics",
		"**Model**: llama3.2:3b",
		"### [You]",
		"### [Assistant]",
		"How do I print in Python?",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
}

func TestExportMarkdown_EditedMarker(t *testing.T) {
	conv := exportFixture()
	conv.Messages[0].Edited = true

	data, err := ExportMarkdown(conv, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "(edited)") {
		t.Error("edited message should carry a marker")
	}
}

func TestExportMarkdown_Empty(t *testing.T) {
	conv := model.NewConversation()
	if _, err := ExportMarkdown(conv, ""); err == nil {
		t.Error("empty conversation should fail to export")
	}
	if _, err := ExportMarkdown(nil, ""); err == nil {
		t.Error("nil conversation should fail to export")
	}
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	conv := exportFixture()

	path := ExportPath(dir, conv)
	if err := ExportToFile(conv, "llama3.2:3b", path); err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# python basics") {
		t.Error("file content missing title")
	}

	base := filepath.Base(path)
	if !strings.HasPrefix(base, "python_basics_") || !strings.HasSuffix(base, ".md") {
		t.Errorf("unexpected export filename %q", base)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"python basics", "python_basics"},
		{"what's new?", "whats_new"},
		{"///", ""},
		{strings.Repeat("a", 60), strings.Repeat("a", 48)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
