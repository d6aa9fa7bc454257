// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

// =============================================================================
// ASYNC MESSAGES
// =============================================================================

// EngineReadyMsg reports the outcome of engine startup and initial model load.
type EngineReadyMsg struct {
	Model string
	Err   error
}

// TurnDoneMsg reports that a generation turn has finished. Rejected turns
// carry session.ErrRejected; completed turns carry nil.
type TurnDoneMsg struct {
	Err error
}

// PartialMsg carries the accumulated streamed response for the conversation
// that owns the in-flight turn.
type PartialMsg struct {
	ConversationID string
	Text           string
}

// InstallProgressMsg reports model download progress.
type InstallProgressMsg struct {
	Status   string
	Fraction float64
}

// InstallDoneMsg reports the outcome of a model install.
type InstallDoneMsg struct {
	ModelID string
	Err     error
}

// SwitchDoneMsg reports the outcome of switching to an installed model.
type SwitchDoneMsg struct {
	ModelID string
	Err     error
}
