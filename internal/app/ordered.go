package app

import (
	"slices"
	"sort"

	"github.com/evanschultz/weekplan/internal/domain"
)

// DefaultCardHeight is the row height assumed for a task without a measured span.
const DefaultCardHeight = 1.0

// Span is the measured vertical extent of one rendered task card, relative to its container.
type Span struct {
	Top    float64
	Height float64
}

// Mid returns the vertical midpoint.
func (s Span) Mid() float64 {
	return s.Top + s.Height/2
}

// OrderedContainer is the ordered task sequence of one drop target.
type OrderedContainer struct {
	key        domain.ContainerKey
	tasks      []domain.Task
	layout     map[int]Span
	cardHeight float64
}

// NewOrderedContainer copies tasks into display order (by order, then id).
func NewOrderedContainer(key domain.ContainerKey, tasks []domain.Task) *OrderedContainer {
	c := &OrderedContainer{key: key, cardHeight: DefaultCardHeight}
	c.Reset(tasks)
	return c
}

// Reset clears the container and rebuilds it from tasks.
func (c *OrderedContainer) Reset(tasks []domain.Task) {
	c.tasks = make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		c.tasks = append(c.tasks, task.Clone())
	}
	sort.SliceStable(c.tasks, func(i, j int) bool {
		if c.tasks[i].Order == c.tasks[j].Order {
			return c.tasks[i].ID < c.tasks[j].ID
		}
		return c.tasks[i].Order < c.tasks[j].Order
	})
	c.layout = nil
}

func (c *OrderedContainer) Key() domain.ContainerKey { return c.key }
func (c *OrderedContainer) Len() int                 { return len(c.tasks) }

// Tasks returns a copy of the display sequence.
func (c *OrderedContainer) Tasks() []domain.Task {
	out := make([]domain.Task, 0, len(c.tasks))
	for _, task := range c.tasks {
		out = append(out, task.Clone())
	}
	return out
}

// Task returns the task at idx.
func (c *OrderedContainer) Task(idx int) (domain.Task, bool) {
	if idx < 0 || idx >= len(c.tasks) {
		return domain.Task{}, false
	}
	return c.tasks[idx].Clone(), true
}

// IndexOf returns the display index of id or -1.
func (c *OrderedContainer) IndexOf(id int) int {
	return slices.IndexFunc(c.tasks, func(t domain.Task) bool { return t.ID == id })
}

// SetLayout records measured card spans keyed by task id.
func (c *OrderedContainer) SetLayout(spans map[int]Span) {
	c.layout = spans
}

// SetCardHeight sets the fallback card height used for unmeasured tasks.
func (c *OrderedContainer) SetCardHeight(h float64) {
	if h > 0 {
		c.cardHeight = h
	}
}

func (c *OrderedContainer) span(idx int) Span {
	if span, ok := c.layout[c.tasks[idx].ID]; ok {
		return span
	}
	return Span{Top: float64(idx) * c.cardHeight, Height: c.cardHeight}
}

// InsertionIndex returns where a dragged task lands for a pointer at pointerY: before the first
// other task whose midpoint is below the pointer, else at the end. The dragged task is skipped,
// so the index addresses the sequence without it.
func (c *OrderedContainer) InsertionIndex(pointerY float64, excluding int) int {
	idx := 0
	for i, task := range c.tasks {
		if task.ID == excluding {
			continue
		}
		if c.span(i).Mid() > pointerY {
			return idx
		}
		idx++
	}
	return idx
}

// Remove splices id out and returns the task and its former index.
func (c *OrderedContainer) Remove(id int) (domain.Task, int, bool) {
	idx := c.IndexOf(id)
	if idx < 0 {
		return domain.Task{}, -1, false
	}
	task := c.tasks[idx]
	c.tasks = slices.Delete(c.tasks, idx, idx+1)
	return task, idx, true
}

// Insert splices task in at idx, clamped to the valid range, and returns the index used.
func (c *OrderedContainer) Insert(idx int, task domain.Task) int {
	idx = max(0, min(idx, len(c.tasks)))
	c.tasks = slices.Insert(c.tasks, idx, task.Clone())
	return idx
}

// InsertByOrder places task before the first task with a greater order.
func (c *OrderedContainer) InsertByOrder(task domain.Task) int {
	idx := slices.IndexFunc(c.tasks, func(t domain.Task) bool { return t.Order > task.Order })
	if idx < 0 {
		idx = len(c.tasks)
	}
	return c.Insert(idx, task)
}

// Replace swaps in fresh data for an existing task, keeping its position.
func (c *OrderedContainer) Replace(task domain.Task) bool {
	idx := c.IndexOf(task.ID)
	if idx < 0 {
		return false
	}
	c.tasks[idx] = task.Clone()
	return true
}

// Reindex assigns order 0..n-1 in display sequence and returns the pairs that changed.
func (c *OrderedContainer) Reindex() []domain.OrderUpdate {
	changed := []domain.OrderUpdate{}
	for i := range c.tasks {
		if c.tasks[i].Order == i {
			continue
		}
		c.tasks[i].Order = i
		changed = append(changed, domain.OrderUpdate{ID: c.tasks[i].ID, Order: i})
	}
	return changed
}

// Orders returns every (id, order) pair in display sequence.
func (c *OrderedContainer) Orders() []domain.OrderUpdate {
	out := make([]domain.OrderUpdate, 0, len(c.tasks))
	for _, task := range c.tasks {
		out = append(out, domain.OrderUpdate{ID: task.ID, Order: task.Order})
	}
	return out
}

// Clone returns an independent copy.
func (c *OrderedContainer) Clone() *OrderedContainer {
	out := &OrderedContainer{key: c.key, cardHeight: c.cardHeight, tasks: c.Tasks()}
	if c.layout != nil {
		out.layout = make(map[int]Span, len(c.layout))
		for id, span := range c.layout {
			out.layout[id] = span
		}
	}
	return out
}
