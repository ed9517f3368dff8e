package tui

import (
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/evanschultz/weekplan/internal/domain"
)

// PaletteSwatches renders every card color and board accent of theme as a table.
// Text is the sample string shown in each swatch.
func PaletteSwatches(theme domain.Theme, darkBackground bool, text string) string {
	p := paletteFor(theme, darkBackground)
	rows := [][]string{}
	fgs := []lipgloss.Style{}
	add := func(name string, style lipgloss.Style) {
		rows = append(rows, []string{name, text})
		fgs = append(fgs, style)
	}
	for _, c := range domain.Colors() {
		name := string(c)
		if c == domain.ColorNone {
			name = "none"
		}
		add("card "+name, lipgloss.NewStyle().Foreground(p.cardColor(c)))
	}
	add("today", lipgloss.NewStyle().Foreground(p.today).Bold(true))
	add("accent", lipgloss.NewStyle().Foreground(p.accent))
	add("muted", lipgloss.NewStyle().Foreground(p.muted))
	add("drop indicator", lipgloss.NewStyle().Foreground(p.indicator))
	add("selection", lipgloss.NewStyle().Foreground(p.text).Background(p.selection))
	add("error", lipgloss.NewStyle().Foreground(p.errorFg))

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(p.dim)).
		Headers(string(theme), "sample").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := lipgloss.NewStyle().Padding(0, 1)
			if row < 0 || row >= len(fgs) || col == 0 {
				return cell
			}
			return fgs[row].Padding(0, 1)
		}).
		String()
}
