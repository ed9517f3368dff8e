package tui

import (
	"context"
	"strconv"
	"strings"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/evanschultz/weekplan/internal/domain"
)

// ruleCycle is the order the repeat key walks through.
var ruleCycle = []domain.RecurrenceRule{
	domain.RecurrenceNone,
	domain.RecurrenceDaily,
	domain.RecurrenceWeekly,
	domain.RecurrenceMonthly,
	domain.RecurrenceYearly,
}

func nextRule(rule domain.RecurrenceRule) domain.RecurrenceRule {
	for idx, r := range ruleCycle {
		if r == rule {
			return ruleCycle[(idx+1)%len(ruleCycle)]
		}
	}
	return domain.RecurrenceDaily
}

// handleDetailsKey handles keys while the details popup is open.
func (m Model) handleDetailsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	planner := m.planner
	task := m.details
	switch msg.String() {
	case "esc", "q":
		m.mode = modeNone
		planner.CloseTaskDetails()
		return m, nil
	case "e":
		m.mode = modeEditTitle
		m.input = m.newModalInput(m.label("edit_title_prompt"), "", task.Title, 200)
		return m, m.input.Focus()
	case "E":
		m.mode = modeEditDescription
		m.editor = m.newEditor(task.Description)
		return m, m.editor.Focus()
	case "c":
		next := task.Color.Next()
		return m, m.updateDetailsCmd(domain.TaskPatch{Color: &next})
	case "r":
		if task.InInbox() {
			m.setStatus(m.label("repeat_inbox"), true)
			return m, nil
		}
		rule := nextRule(task.RecurrenceRule)
		if rule == domain.RecurrenceNone {
			return m, m.clearRecurrenceCmd(task.ID)
		}
		interval := max(1, task.RecurrenceInterval)
		return m, m.updateDetailsCmd(domain.TaskPatch{RecurrenceRule: &rule, RecurrenceInterval: &interval})
	case "+", "=":
		if !task.IsRecurring() {
			return m, nil
		}
		interval := task.RecurrenceInterval + 1
		return m, m.updateDetailsCmd(domain.TaskPatch{RecurrenceInterval: &interval})
	case "-":
		if !task.IsRecurring() || task.RecurrenceInterval <= 1 {
			return m, nil
		}
		interval := task.RecurrenceInterval - 1
		return m, m.updateDetailsCmd(domain.TaskPatch{RecurrenceInterval: &interval})
	case "x":
		if !task.IsRecurring() {
			return m, nil
		}
		return m, m.clearRecurrenceCmd(task.ID)
	case "y":
		link := domain.TaskLink(task.ID)
		write := m.copyText
		return m, func() tea.Msg {
			return clipboardMsg{link: link, err: write(link)}
		}
	}
	switch {
	case key.Matches(msg, m.keys.toggleDone):
		return m, m.runTask(func(ctx context.Context) (domain.Task, error) {
			return planner.ToggleComplete(ctx, task.ID)
		}, false)
	case key.Matches(msg, m.keys.deleteTask):
		return m, func() tea.Msg {
			err := planner.DeleteTask(context.Background(), task.ID)
			return actionMsg{snap: planner.Snapshot(), err: err, closeDetails: err == nil}
		}
	case key.Matches(msg, m.keys.undo):
		return m, m.run(func(context.Context) error {
			planner.UndoLatest()
			return nil
		})
	}
	return m, nil
}

// clearRecurrenceCmd clears recurrence with the undo window; the popup refreshes from the board.
func (m Model) clearRecurrenceCmd(id int) tea.Cmd {
	planner := m.planner
	return m.run(func(ctx context.Context) error {
		return planner.ClearRecurrence(ctx, id)
	})
}

// updateDetailsCmd applies patch to the task shown in the popup.
func (m Model) updateDetailsCmd(patch domain.TaskPatch) tea.Cmd {
	planner := m.planner
	id := m.details.ID
	return m.runTask(func(ctx context.Context) (domain.Task, error) {
		return planner.UpdateTask(ctx, id, patch)
	}, false)
}

func (m Model) newEditor(value string) textarea.Model {
	ta := textarea.New()
	styles := textarea.DefaultStyles(m.palette().dark)
	styles.Cursor.Blink = false
	ta.SetStyles(styles)
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetWidth(max(20, m.popupWidth()-4))
	ta.SetHeight(max(3, m.height/3))
	ta.SetValue(value)
	return ta
}

// handleEditorKey handles the description editor.
func (m Model) handleEditorKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editor.Blur()
		m.mode = modeDetails
		return m, nil
	case "ctrl+s":
		m.editor.Blur()
		m.mode = modeDetails
		value := strings.TrimRight(m.editor.Value(), " \n")
		if value == m.details.Description {
			return m, nil
		}
		return m, m.updateDetailsCmd(domain.TaskPatch{Description: &value})
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// popupWidth is the outer width of centered popups.
func (m Model) popupWidth() int {
	return clamp(m.width*2/3, min(40, m.width), 90)
}

// dateLabel spells a due date in the active language.
func (m Model) dateLabel(d domain.Date) string {
	return m.text.Weekday(d.Weekday(), true) + ", " + strconv.Itoa(d.Day()) + " " + m.text.Month(d.Month()) + " " + strconv.Itoa(d.Year())
}

func (m Model) dueLabel(task domain.Task) string {
	if task.DueDate == nil {
		return m.snap.InboxTitle
	}
	return m.dateLabel(*task.DueDate)
}

func (m Model) repeatLabel(task domain.Task) string {
	if !task.IsRecurring() {
		return m.label("repeat_none")
	}
	return m.labelf("repeat_"+string(task.RecurrenceRule), map[string]any{"Count": max(1, task.RecurrenceInterval)})
}

func (m Model) colorLabel(c domain.Color) string {
	if c == domain.ColorNone {
		return m.label("color_none")
	}
	return m.label("color_" + string(c))
}

// renderDetails draws the task popup.
func (m Model) renderDetails() string {
	pal := m.palette()
	task := m.details
	width := m.popupWidth()
	inner := max(10, width-4)

	muted := lipgloss.NewStyle().Foreground(pal.muted)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.cardColor(task.Color))
	if task.Completed {
		titleStyle = titleStyle.Strikethrough(true)
	}

	lines := []string{titleStyle.Render(ansi.Wrap(task.Title, inner, "")), ""}
	field := func(name, value string) {
		lines = append(lines, muted.Render(padRight(m.label(name), 10))+value)
	}
	status := m.label("status_open")
	if task.Completed {
		status = m.label("status_done")
	}
	field("field_due", m.dueLabel(task))
	field("field_status", status)
	field("field_color", m.colorLabel(task.Color))
	field("field_repeat", m.repeatLabel(task))
	if badge := task.Checklist().Badge(); badge != "" {
		lines[len(lines)-1] += muted.Render("  [" + badge + "]")
	}
	field("field_link", domain.TaskLink(task.ID))
	lines = append(lines, "")

	switch m.mode {
	case modeEditDescription:
		lines = append(lines, m.editor.View(), muted.Render(m.label("edit_description_help")))
	default:
		if desc := m.md.render(task.Description, inner, pal.glamourStyle()); desc != "" {
			lines = append(lines, desc)
		} else {
			lines = append(lines, muted.Italic(true).Render(m.label("no_description")))
		}
		if m.mode == modeEditTitle {
			lines = append(lines, "", m.input.View())
		}
		lines = append(lines, "", muted.Render(ansi.Wrap(m.label("details_help"), inner, "")))
	}

	body := fitLines(strings.Join(lines, "\n"), max(5, m.height-4))
	return popupStyle(pal).Render(padBlock(body, inner))
}
