package tui

import (
	"math"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/weekplan/internal/app"
)

// View renders the board with any open popup on top.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

func (m Model) render() string {
	pal := m.palette()
	if m.err != nil {
		return lipgloss.NewStyle().Foreground(pal.errorFg).Render(m.labelf("load_error", map[string]any{"Error": m.err.Error()})) +
			"\n\n" + lipgloss.NewStyle().Foreground(pal.muted).Render(m.label("retry_hint")) + "\n"
	}
	if !m.ready || !m.loaded || m.snap.Board == nil {
		return m.label("loading")
	}

	l := m.layout()
	sections := []string{
		m.renderHeader(pal),
		"",
		m.renderBoard(l),
		m.renderStatus(pal),
		m.renderHelpLine(pal),
	}
	content := strings.Join(sections, "\n")

	if overlay := m.renderOverlay(pal); overlay != "" {
		return overlayOnContent(content, overlay, m.width, m.height)
	}
	return content
}

func (m Model) renderHeader(pal palette) string {
	start := m.snap.Board.WeekStart()
	title := lipgloss.NewStyle().Bold(true).Foreground(pal.accent).Render("weekplan")
	week := lipgloss.NewStyle().Foreground(pal.text).Render(m.labelf("week_header", map[string]any{
		"Day":   start.Day(),
		"Month": m.text.Month(start.Month()),
		"Year":  start.Year(),
	}))
	return padRight(title+"  "+week, m.width)
}

// renderStatus shows, in priority order, the drag hint, the newest undo countdown or the last status.
func (m Model) renderStatus(pal palette) string {
	muted := lipgloss.NewStyle().Foreground(pal.muted)
	if m.snap.Drag.State == app.DragDragging {
		hint := m.labelf("drag_hint", map[string]any{"Title": m.snap.Drag.Task.Title})
		return lipgloss.NewStyle().Foreground(pal.indicator).Render(padRight(hint, m.width))
	}
	if pending, ok := m.latestPending(); ok {
		msgID := app.MsgTaskDeleted
		if pending.Kind == app.UndoRecurrenceClear {
			msgID = app.MsgRecurrenceCleared
		}
		seconds := int(math.Ceil(pending.ExpiresAt.Sub(m.now()).Seconds()))
		hint := m.labelf("undo_hint", map[string]any{
			"Message": m.label(msgID) + ": " + pending.Title,
			"Key":     m.keys.undo.Help().Key,
			"Seconds": strconv.Itoa(max(0, seconds)),
		})
		return lipgloss.NewStyle().Foreground(pal.accent).Bold(true).Render(padRight(hint, m.width))
	}
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return lipgloss.NewStyle().Foreground(pal.errorFg).Render(padRight(m.status, m.width))
	}
	return muted.Render(padRight(m.status, m.width))
}

// latestPending returns the undoable action that expires last.
func (m Model) latestPending() (app.PendingUndo, bool) {
	var out app.PendingUndo
	for _, p := range m.snap.Pending {
		if out.TaskID == 0 || p.ExpiresAt.After(out.ExpiresAt) {
			out = p
		}
	}
	return out, out.TaskID != 0
}

func (m Model) renderHelpLine(pal palette) string {
	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	return lipgloss.NewStyle().
		Foreground(pal.muted).
		BorderTop(true).
		BorderForeground(pal.dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
}

func (m Model) renderOverlay(pal palette) string {
	if m.help.ShowAll {
		return m.renderHelpOverlay(pal)
	}
	switch m.mode {
	case modeDetails, modeEditTitle, modeEditDescription:
		return m.renderDetails()
	case modeNewTask, modeSearch, modeRenameInbox:
		return m.renderInput()
	case modeSearchResults:
		return m.renderResults()
	case modeSettings:
		return m.renderSettings()
	}
	return ""
}

func (m Model) renderHelpOverlay(pal palette) string {
	width := clamp(m.width-4, 40, 100)
	hb := m.help
	hb.ShowAll = true
	hb.SetWidth(width - 4)
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(pal.accent).Render("weekplan"),
		"",
		hb.View(m.keys),
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.dim).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		return overlay + "\n\n" + base
	}
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(fitLines(base, height)).X(0).Y(0).Z(0))
	canvas.Compose(lipgloss.NewLayer(lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)).X(0).Y(0).Z(10))
	return canvas.Render()
}
