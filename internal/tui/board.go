package tui

import (
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/evanschultz/weekplan/internal/app"
	"github.com/evanschultz/weekplan/internal/domain"
)

// Fixed rows around the board.
const (
	headerRows     = 2 // title line, spacer
	columnChrome   = 3 // top border, column title, bottom border
	footerRows     = 3 // status line, help with top border
	minColumnWidth = 14
	minAreaRows    = 3
)

// cardLayout is one task card inside a column's scrollable area. Rows are relative to the
// area start; row 0 and the row after every card are gaps where the drop indicator is drawn.
type cardLayout struct {
	task   domain.Task
	lines  []string
	top    int
	height int
}

type columnLayout struct {
	key   domain.ContainerKey
	title string
	today bool
	x     int
	cards []cardLayout
	rows  int
}

// boardLayout is the measured geometry shared by rendering and mouse hit testing.
type boardLayout struct {
	columns []columnLayout
	outer   int
	inner   int
	top     int
	areaTop int
	area    int
}

// layout measures the board for the current snapshot and terminal size.
func (m Model) layout() boardLayout {
	board := m.snap.Board
	if board == nil {
		return boardLayout{}
	}
	keys := board.Keys()
	outer := max(minColumnWidth, m.width/max(1, len(keys)))
	inner := outer - 4
	height := max(columnChrome+minAreaRows, m.height-headerRows-footerRows)
	out := boardLayout{
		outer:   outer,
		inner:   inner,
		top:     headerRows,
		areaTop: headerRows + 2,
		area:    height - columnChrome,
	}
	for idx, key := range keys {
		c, _ := board.Container(key)
		col := columnLayout{
			key:   key,
			title: m.columnTitle(key),
			x:     idx * outer,
		}
		if d, ok := key.Date(); ok {
			col.today = d == m.snap.Today
		}
		row := 1
		for _, task := range c.Tasks() {
			lines := m.cardLines(task, inner)
			col.cards = append(col.cards, cardLayout{task: task, lines: lines, top: row, height: len(lines)})
			row += len(lines) + 1
		}
		col.rows = row
		out.columns = append(out.columns, col)
	}
	return out
}

// columnTitle names a container: weekday and day number, or the inbox title.
func (m Model) columnTitle(key domain.ContainerKey) string {
	d, ok := key.Date()
	if !ok {
		return m.snap.InboxTitle
	}
	return m.text.Weekday(d.Weekday(), m.prefs.FullWeekdays) + " " + strconv.Itoa(d.Day())
}

// cardText is the single-line form of a card before wrapping.
func cardText(task domain.Task) string {
	mark := "○ "
	if task.Completed {
		mark = "✓ "
	}
	text := mark + task.Title
	if task.IsRecurring() {
		text += " ↻"
	}
	if badge := task.Checklist().Badge(); badge != "" {
		text += " [" + badge + "]"
	}
	return text
}

func (m Model) cardLines(task domain.Task, width int) []string {
	text := cardText(task)
	if !m.prefs.WrapTitles {
		return []string{ansi.Truncate(text, width, "…")}
	}
	return strings.Split(ansi.Wrap(text, width, ""), "\n")
}

// spans returns the card extents of one column for the planner's midpoint math.
func (c columnLayout) spans() map[int]app.Span {
	out := make(map[int]app.Span, len(c.cards))
	for _, card := range c.cards {
		out[card.task.ID] = app.Span{Top: float64(card.top), Height: float64(card.height)}
	}
	return out
}

// cardIndex returns the index of the task id or -1.
func (c columnLayout) cardIndex(id int) int {
	for idx, card := range c.cards {
		if card.task.ID == id {
			return idx
		}
	}
	return -1
}

// cardAt returns the card index covering content row, or -1.
func (c columnLayout) cardAt(row int) int {
	for idx, card := range c.cards {
		if row >= card.top && row < card.top+card.height {
			return idx
		}
	}
	return -1
}

// columnAt maps a screen column to a board column index.
func (l boardLayout) columnAt(x int) (int, bool) {
	if x < 0 || l.outer <= 0 {
		return 0, false
	}
	idx := x / l.outer
	return idx, idx < len(l.columns)
}

// areaRow maps a screen row to an area-relative row.
func (l boardLayout) areaRow(y int) (int, bool) {
	row := y - l.areaTop
	return row, row >= 0 && row < l.area
}

// scrollFor returns the first visible content row of column idx, keeping the selected card in view.
func (m Model) scrollFor(l boardLayout, idx int) int {
	if idx != m.col || idx >= len(l.columns) {
		return 0
	}
	col := l.columns[idx]
	if m.row < 0 || m.row >= len(col.cards) {
		return 0
	}
	card := col.cards[m.row]
	scroll := 0
	if bottom := card.top + card.height; bottom > l.area {
		scroll = bottom - l.area + 1
	}
	return clamp(scroll, 0, max(0, col.rows-l.area))
}

// indicatorRow returns the gap row where the drop indicator for col is drawn, or -1.
func (m Model) indicatorRow(col columnLayout) int {
	drag := m.snap.Drag
	if drag.State != app.DragDragging || drag.Indicator == nil || drag.Indicator.Container != col.key {
		return -1
	}
	remaining := 0
	for _, card := range col.cards {
		if card.task.ID == drag.Task.ID {
			continue
		}
		if remaining == drag.Indicator.Index {
			return card.top - 1
		}
		remaining++
	}
	return col.rows - 1
}

// renderBoard draws the columns side by side.
func (m Model) renderBoard(l boardLayout) string {
	pal := m.palette()
	views := make([]string, 0, len(l.columns))
	for idx, col := range l.columns {
		views = append(views, m.renderColumn(l, idx, col, pal))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func (m Model) renderColumn(l boardLayout, idx int, col columnLayout, pal palette) string {
	border := pal.dim
	if idx == m.col {
		border = pal.accent
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.muted)
	if col.today {
		titleStyle = titleStyle.Foreground(pal.today)
	}

	rows := make([]string, col.rows)
	if len(col.cards) == 0 {
		rows = []string{"", lipgloss.NewStyle().Foreground(pal.dim).Render(padRight(m.label("empty_column"), l.inner))}
	}
	for cardIdx, card := range col.cards {
		style := m.cardStyle(card.task, pal, idx == m.col && cardIdx == m.row)
		for lineIdx, line := range card.lines {
			rows[card.top+lineIdx] = style.Render(padRight(line, l.inner))
		}
	}
	if row := m.indicatorRow(col); row >= 0 {
		for len(rows) <= row {
			rows = append(rows, "")
		}
		rows[row] = lipgloss.NewStyle().Foreground(pal.indicator).Bold(true).Render(indicatorLine(m.label("drop_here"), l.inner))
	}

	scroll := m.scrollFor(l, idx)
	if scroll > 0 && scroll < len(rows) {
		rows = rows[scroll:]
	}
	lines := append([]string{titleStyle.Render(padRight(col.title, l.inner))}, fitLines(strings.Join(rows, "\n"), l.area))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(padBlock(strings.Join(lines, "\n"), l.inner))
}

func (m Model) cardStyle(task domain.Task, pal palette, selected bool) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(pal.cardColor(task.Color))
	if task.Completed {
		style = style.Strikethrough(true).Foreground(pal.muted)
	}
	if m.snap.Drag.State == app.DragDragging && m.snap.Drag.Task.ID == task.ID {
		style = style.Faint(true).Italic(true)
	}
	if selected {
		style = style.Background(pal.selection).Bold(true)
	}
	return style
}

// indicatorLine centers label in a rule of width cells.
func indicatorLine(label string, width int) string {
	label = " " + label + " "
	fill := max(0, width-ansi.StringWidth(label))
	left := fill / 2
	return ansi.Truncate(strings.Repeat("─", left)+label+strings.Repeat("─", fill-left), width, "")
}

// padRight truncates or pads s to exactly width cells.
func padRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = ansi.Truncate(s, width, "…")
	if w := ansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// padBlock pads every line of block to width.
func padBlock(block string, width int) string {
	lines := strings.Split(block, "\n")
	for idx, line := range lines {
		lines[idx] = padRight(line, width)
	}
	return strings.Join(lines, "\n")
}
