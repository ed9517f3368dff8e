package tui

import (
	"context"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/weekplan/internal/domain"
)

// Pointer drags and keyboard grabs only touch in-memory planner state, so they run inline to keep
// pointer events ordered. The drop itself persists through the backend and runs as a command.

// publishLayout sends the measured card spans of every column to the planner.
func (m Model) publishLayout() {
	for _, col := range m.layout().columns {
		m.planner.SetLayout(col.key, col.spans())
	}
}

// hit resolves a screen cell to a column and, when over a card, its index.
func (m Model) hit(x, y int) (col, card int, ok bool) {
	l := m.layout()
	col, ok = l.columnAt(x)
	if !ok {
		return 0, -1, false
	}
	row, inArea := l.areaRow(y)
	if !inArea {
		return col, -1, true
	}
	return col, l.columns[col].cardAt(row + m.scrollFor(l, col)), true
}

// pointerTarget maps a screen cell to a drop container and an area-relative pointer position.
func (m Model) pointerTarget(x, y int) (domain.ContainerKey, float64, bool) {
	l := m.layout()
	col, ok := l.columnAt(x)
	if !ok || y < l.top || y >= l.areaTop+l.area+1 {
		return domain.ContainerKey{}, 0, false
	}
	row := clamp(y-l.areaTop, 0, l.area-1) + m.scrollFor(l, col)
	return l.columns[col].key, float64(row) + 0.5, true
}

func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	mouse := msg.Mouse()
	if mouse.Button != tea.MouseLeft || !m.loaded || m.help.ShowAll || m.mode != modeNone {
		return m, nil
	}
	col, card, ok := m.hit(mouse.X, mouse.Y)
	if !ok {
		return m, nil
	}
	m.col = col
	m.pressID = 0
	if card >= 0 {
		m.row = card
		if task, found := m.selectedTask(); found {
			m.pressID = task.ID
		}
	}
	m.clampSelection()
	return m, nil
}

func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.pressID == 0 {
		return m, nil
	}
	mouse := msg.Mouse()
	if !m.dragging {
		if !m.planner.StartDrag(m.pressID) {
			m.pressID = 0
			return m, nil
		}
		m.dragging = true
		m.publishLayout()
	}
	if target, y, ok := m.pointerTarget(mouse.X, mouse.Y); ok {
		m.planner.DragOver(target, y)
	} else {
		m.planner.DragLeave()
	}
	m.snap = m.planner.Snapshot()
	return m, nil
}

func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	mouse := msg.Mouse()
	pressed := m.pressID
	m.pressID = 0
	planner := m.planner
	if !m.dragging {
		if pressed == 0 {
			return m, nil
		}
		if task, ok := m.selectedTask(); !ok || task.ID != pressed {
			return m, nil
		}
		if _, card, ok := m.hit(mouse.X, mouse.Y); !ok || card != m.row {
			return m, nil
		}
		return m, m.runTask(func(ctx context.Context) (domain.Task, error) {
			return planner.OpenTaskDetails(ctx, pressed)
		}, true)
	}

	m.dragging = false
	target, y, ok := m.pointerTarget(mouse.X, mouse.Y)
	if !ok {
		planner.CancelDrag()
		m.snap = planner.Snapshot()
		return m, nil
	}
	return m, func() tea.Msg {
		err := planner.Drop(context.Background(), target, y)
		return actionMsg{snap: planner.Snapshot(), err: err, focusID: pressed}
	}
}

func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll {
		return m, nil
	}
	delta := 0
	switch msg.Mouse().Button {
	case tea.MouseWheelUp:
		delta = -1
	case tea.MouseWheelDown:
		delta = 1
	}
	switch m.mode {
	case modeSearchResults:
		m.resultIdx = clamp(m.resultIdx+delta, 0, len(m.results)-1)
	case modeNone:
		if m.row >= 0 {
			m.row = max(0, m.row+delta)
			m.clampSelection()
		}
	}
	return m, nil
}

// startGrab begins a keyboard drag of task with the indicator at its current place.
func (m Model) startGrab(task domain.Task) (tea.Model, tea.Cmd) {
	if !m.planner.StartDrag(task.ID) {
		return m, nil
	}
	m.mode = modeGrab
	m.grabCol = m.col
	m.grabIdx = m.row
	m.planner.MoveIndicator(m.currentKey(), m.grabIdx)
	m.snap = m.planner.Snapshot()
	return m, nil
}

// grabLimit is the largest insertion index in col, excluding the dragged task.
func (m Model) grabLimit(col int) int {
	limit := m.columnLen(col)
	keys := m.boardKeys()
	if col >= 0 && col < len(keys) {
		if c, ok := m.snap.Board.Container(keys[col]); ok && c.IndexOf(m.snap.Drag.Task.ID) >= 0 {
			limit--
		}
	}
	return max(0, limit)
}

func (m Model) handleGrabKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	planner := m.planner
	keys := m.boardKeys()
	switch {
	case msg.String() == "esc":
		planner.CancelDrag()
		m.mode = modeNone
		m.snap = planner.Snapshot()
		return m, nil
	case msg.String() == "enter" || key.Matches(msg, m.keys.grabTask) || key.Matches(msg, m.keys.toggleDone):
		id := m.snap.Drag.Task.ID
		m.mode = modeNone
		return m, func() tea.Msg {
			err := planner.DropAtIndicator(context.Background())
			return actionMsg{snap: planner.Snapshot(), err: err, focusID: id}
		}
	case key.Matches(msg, m.keys.moveLeft):
		m.grabCol = clamp(m.grabCol-1, 0, len(keys)-1)
	case key.Matches(msg, m.keys.moveRight):
		m.grabCol = clamp(m.grabCol+1, 0, len(keys)-1)
	case key.Matches(msg, m.keys.moveUp):
		m.grabIdx--
	case key.Matches(msg, m.keys.moveDown):
		m.grabIdx++
	default:
		return m, nil
	}
	m.grabIdx = clamp(m.grabIdx, 0, m.grabLimit(m.grabCol))
	if len(keys) > 0 {
		planner.MoveIndicator(keys[m.grabCol], m.grabIdx)
	}
	m.col = m.grabCol
	m.snap = planner.Snapshot()
	return m, nil
}
