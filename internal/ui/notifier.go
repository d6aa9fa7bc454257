// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/locallm-tui/internal/ui/components"
)

// =============================================================================
// TOAST NOTIFIER
// =============================================================================

// Sender delivers messages into the running program. *tea.Program satisfies
// it; tests substitute a recorder.
type Sender interface {
	Send(msg tea.Msg)
}

// ToastNotifier bridges background goroutines (the session manager's turn
// goroutine in particular) to the toast stack via program.Send. The sender is
// attached after tea.NewProgram, so notifications fired before the program
// starts are dropped rather than blocking.
type ToastNotifier struct {
	mu     sync.Mutex
	sender Sender
}

// NewToastNotifier creates a notifier with no sender attached yet.
func NewToastNotifier() *ToastNotifier {
	return &ToastNotifier{}
}

// Attach installs the program sender.
func (n *ToastNotifier) Attach(sender Sender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sender = sender
}

func (n *ToastNotifier) send(message string, kind components.ToastKind) {
	n.mu.Lock()
	sender := n.sender
	n.mu.Unlock()

	if sender != nil {
		sender.Send(components.ToastAddMsg{Message: message, Kind: kind})
	}
}

// Info shows an informational toast.
func (n *ToastNotifier) Info(message string) {
	n.send(message, components.ToastInfo)
}

// Warn shows a warning toast.
func (n *ToastNotifier) Warn(message string) {
	n.send(message, components.ToastWarning)
}

// Error shows an error toast.
func (n *ToastNotifier) Error(message string) {
	n.send(message, components.ToastError)
}
