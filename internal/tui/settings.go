package tui

import (
	"context"
	"slices"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/evanschultz/weekplan/internal/domain"
)

// settingRows lists the settings popup rows in order.
var settingRows = []string{"setting_language", "setting_theme", "setting_wrap", "setting_weekdays"}

func (m Model) handleSettingsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "esc" || key.Matches(msg, m.keys.quit) || key.Matches(msg, m.keys.settings):
		m.mode = modeNone
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.settingIdx = clamp(m.settingIdx-1, 0, len(settingRows)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.settingIdx = clamp(m.settingIdx+1, 0, len(settingRows)-1)
		return m, nil
	case msg.String() == "enter" || key.Matches(msg, m.keys.toggleDone) || key.Matches(msg, m.keys.moveRight):
		return m.changeSetting()
	}
	return m, nil
}

// changeSetting advances the selected setting and persists the result.
func (m Model) changeSetting() (tea.Model, tea.Cmd) {
	prefs := m.prefs
	switch settingRows[m.settingIdx] {
	case "setting_language":
		langs := domain.Languages()
		idx := slices.Index(langs, prefs.Language)
		prefs.Language = langs[(idx+1)%len(langs)]
	case "setting_theme":
		prefs.Theme = prefs.Theme.Next()
	case "setting_wrap":
		prefs.WrapTitles = !prefs.WrapTitles
	case "setting_weekdays":
		prefs.FullWeekdays = !prefs.FullWeekdays
	}
	m.prefs = prefs.Normalize()
	if m.text.Language() != m.prefs.Language {
		m.text.SetLanguage(m.prefs.Language)
		m.keys = newKeyMap(m.label)
	}
	if m.dragging {
		m.publishLayout()
	}
	store := m.prefsStore
	if store == nil {
		return m, nil
	}
	saved := m.prefs
	return m, func() tea.Msg {
		return prefsSavedMsg{err: store.SavePreferences(context.Background(), saved)}
	}
}

func (m Model) settingValue(id string) string {
	onOff := func(v bool) string {
		if v {
			return m.label("value_on")
		}
		return m.label("value_off")
	}
	switch id {
	case "setting_language":
		return m.label("language_" + m.prefs.Language)
	case "setting_theme":
		return m.label("theme_" + string(m.prefs.Theme))
	case "setting_wrap":
		return onOff(m.prefs.WrapTitles)
	case "setting_weekdays":
		return onOff(m.prefs.FullWeekdays)
	}
	return ""
}

func (m Model) renderSettings() string {
	pal := m.palette()
	inner := 36
	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(pal.accent).Render(m.label("settings_title")), ""}
	for idx, id := range settingRows {
		row := padRight(m.label(id), 22) + m.settingValue(id)
		style := lipgloss.NewStyle().Foreground(pal.text)
		if idx == m.settingIdx {
			style = style.Background(pal.selection).Bold(true)
		}
		lines = append(lines, style.Render(padRight(row, inner)))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(pal.muted).Render(m.label("settings_help")))
	return popupStyle(pal).Render(padBlock(strings.Join(lines, "\n"), inner))
}

// handleResultsKey handles the search results list.
func (m Model) handleResultsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "esc" || key.Matches(msg, m.keys.quit):
		m.mode = modeNone
		m.results = nil
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.resultIdx = clamp(m.resultIdx-1, 0, len(m.results)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.resultIdx = clamp(m.resultIdx+1, 0, len(m.results)-1)
		return m, nil
	case msg.String() == "enter" || key.Matches(msg, m.keys.openTask):
		if len(m.results) == 0 {
			m.mode = modeNone
			return m, nil
		}
		task := m.results[m.resultIdx]
		m.mode = modeNone
		m.results = nil
		planner := m.planner
		return m, m.runTask(func(ctx context.Context) (domain.Task, error) {
			if task.DueDate != nil {
				if err := planner.ShowDate(ctx, *task.DueDate); err != nil {
					return domain.Task{}, err
				}
			}
			return planner.OpenTaskDetails(ctx, task.ID)
		}, true)
	}
	return m, nil
}

func (m Model) renderResults() string {
	pal := m.palette()
	inner := max(20, m.popupWidth()-4)
	muted := lipgloss.NewStyle().Foreground(pal.muted)
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(pal.accent).Render(m.labelf("search_results", map[string]any{"Count": len(m.results)})),
		"",
	}
	if len(m.results) == 0 {
		lines = append(lines, muted.Render(m.label("search_no_results")))
	}
	visible := max(1, m.height-10)
	start := clamp(m.resultIdx-visible+1, 0, max(0, len(m.results)-visible))
	for idx := start; idx < len(m.results) && idx < start+visible; idx++ {
		task := m.results[idx]
		due := m.dueLabel(task)
		title := padRight(cardText(task), max(4, inner-ansi.StringWidth(due)-2))
		style := lipgloss.NewStyle().Foreground(pal.cardColor(task.Color))
		if idx == m.resultIdx {
			style = style.Background(pal.selection).Bold(true)
		}
		lines = append(lines, style.Render(padRight(title+"  "+muted.Render(due), inner)))
	}
	lines = append(lines, "", muted.Render(m.label("search_help")))
	return popupStyle(pal).Render(padBlock(strings.Join(lines, "\n"), inner))
}

// renderInput draws a single-line input popup for the new task, search and rename modes.
func (m Model) renderInput() string {
	pal := m.palette()
	inner := max(20, m.popupWidth()-4)
	lines := []string{m.input.View()}
	if m.mode == modeNewTask {
		lines = append(lines, lipgloss.NewStyle().Foreground(pal.muted).Render(m.columnTitle(m.currentKey())))
	}
	return popupStyle(pal).Render(padBlock(strings.Join(lines, "\n"), inner))
}

func popupStyle(pal palette) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.accent).
		Padding(0, 1)
}
