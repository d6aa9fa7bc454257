// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/locallm-tui/internal/model"
	"github.com/jeranaias/locallm-tui/internal/ui/styles"
)

// =============================================================================
// MODEL PICKER
// =============================================================================

// ModelPicker is the overlay for browsing the model catalog, switching
// between installed models, and installing new ones with a progress bar.
type ModelPicker struct {
	theme  *styles.Theme
	specs  []model.ModelSpec
	cursor int

	// install progress for the model currently downloading
	installing   string
	installPhase string
	fraction     float64
	bar          progress.Model

	width  int
	height int
}

// NewModelPicker creates a picker over the full catalog.
func NewModelPicker(theme *styles.Theme) ModelPicker {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return ModelPicker{
		theme: theme,
		specs: model.Catalog,
		bar:   bar,
	}
}

// SetSize updates the picker dimensions.
func (p *ModelPicker) SetSize(width, height int) {
	p.width = width
	p.height = height

	barWidth := width - 20
	if barWidth > 50 {
		barWidth = 50
	}
	if barWidth < 10 {
		barWidth = 10
	}
	p.bar.Width = barWidth
}

// MoveUp moves the cursor up.
func (p *ModelPicker) MoveUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

// MoveDown moves the cursor down.
func (p *ModelPicker) MoveDown() {
	if p.cursor < len(p.specs)-1 {
		p.cursor++
	}
}

// Selected returns the catalog entry under the cursor.
func (p *ModelPicker) Selected() model.ModelSpec {
	return p.specs[p.cursor]
}

// IsInstalling reports whether an install is in flight.
func (p *ModelPicker) IsInstalling() bool {
	return p.installing != ""
}

// StartInstall marks a model as downloading.
func (p *ModelPicker) StartInstall(id string) {
	p.installing = id
	p.installPhase = "starting"
}

// SetProgress updates the download status line and bar fraction.
func (p *ModelPicker) SetProgress(status string, fraction float64) {
	p.installPhase = status
	p.fraction = fraction
}

// FinishInstall clears the install state.
func (p *ModelPicker) FinishInstall() {
	p.installing = ""
	p.installPhase = ""
	p.fraction = 0
}

// View renders the picker as a centered overlay. installed and current come
// from the registry so the picker itself stays stateless about them.
func (p *ModelPicker) View(installed []string, current string) string {
	installedSet := make(map[string]bool, len(installed))
	for _, id := range installed {
		installedSet[id] = true
	}

	var sb strings.Builder
	sb.WriteString(p.theme.PickerTitle.Render("Models"))
	sb.WriteString("\n")
	sb.WriteString(p.theme.PickerMeta.Render("enter: install/switch  x: remove  esc: close"))
	sb.WriteString("\n\n")

	for i, spec := range p.specs {
		marker := "  "
		if spec.ID == current {
			marker = p.theme.PickerInstalled.Render("> ")
		} else if installedSet[spec.ID] {
			marker = p.theme.PickerInstalled.Render("* ")
		}

		line := fmt.Sprintf("%-14s %-4s %s  %s",
			spec.Name, spec.Params, spec.SizeString(), spec.ScoreBar())

		if i == p.cursor {
			line = p.theme.PickerItemSelected.Render(line)
		} else {
			line = p.theme.PickerItem.Render(line)
		}

		sb.WriteString(marker + line)
		sb.WriteString("\n")
		sb.WriteString("   " + p.theme.PickerMeta.Render(spec.Description))
		sb.WriteString("\n")
	}

	if p.installing != "" {
		sb.WriteString("\n")
		sb.WriteString(p.theme.PickerProgress.Render(
			fmt.Sprintf("Installing %s: %s", p.installing, p.installPhase)))
		sb.WriteString("\n")
		sb.WriteString(p.bar.ViewAs(p.fraction))
		sb.WriteString("\n")
	}

	box := p.theme.PickerBox.Render(sb.String())
	if p.width > 0 && p.height > 0 {
		return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
