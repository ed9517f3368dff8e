package app

import (
	"github.com/evanschultz/weekplan/internal/domain"
)

// DaysPerWeek is the number of day containers on the board.
const DaysPerWeek = 7

// Board holds the displayed week's day containers plus the inbox.
type Board struct {
	weekStart domain.Date
	days      []*OrderedContainer
	inbox     *OrderedContainer
}

// NewBoard constructs an empty board for the week starting at weekStart.
func NewBoard(weekStart domain.Date) *Board {
	b := &Board{inbox: NewOrderedContainer(domain.InboxKey(), nil)}
	b.resetDays(weekStart)
	return b
}

func (b *Board) resetDays(weekStart domain.Date) {
	b.weekStart = weekStart
	b.days = make([]*OrderedContainer, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		b.days = append(b.days, NewOrderedContainer(domain.DayKey(weekStart.AddDays(i)), nil))
	}
}

// Rebuild clears every container and refills it. Dated tasks outside the week are ignored.
func (b *Board) Rebuild(weekStart domain.Date, weekTasks, inboxTasks []domain.Task) {
	b.resetDays(weekStart)
	b.fillDays(weekTasks)
	b.inbox.Reset(inboxTasks)
}

func (b *Board) fillDays(tasks []domain.Task) {
	byDay := map[domain.Date][]domain.Task{}
	for _, task := range tasks {
		if task.InInbox() {
			continue
		}
		byDay[*task.DueDate] = append(byDay[*task.DueDate], task)
	}
	for _, day := range b.days {
		d, _ := day.Key().Date()
		day.Reset(byDay[d])
	}
}

func (b *Board) WeekStart() domain.Date { return b.weekStart }

// WeekEnd returns the last displayed day.
func (b *Board) WeekEnd() domain.Date {
	return b.weekStart.AddDays(DaysPerWeek - 1)
}

// Days returns the displayed dates in order.
func (b *Board) Days() []domain.Date {
	out := make([]domain.Date, 0, len(b.days))
	for _, day := range b.days {
		d, _ := day.Key().Date()
		out = append(out, d)
	}
	return out
}

// Keys returns every container key: the seven days, then the inbox.
func (b *Board) Keys() []domain.ContainerKey {
	out := make([]domain.ContainerKey, 0, len(b.days)+1)
	for _, day := range b.days {
		out = append(out, day.Key())
	}
	return append(out, b.inbox.Key())
}

// Displays reports whether key is on the board.
func (b *Board) Displays(key domain.ContainerKey) bool {
	_, ok := b.Container(key)
	return ok
}

// Container returns the container for key.
func (b *Board) Container(key domain.ContainerKey) (*OrderedContainer, bool) {
	if key.IsInbox() {
		return b.inbox, true
	}
	d, ok := key.Date()
	if !ok {
		return nil, false
	}
	offset := int(d.Time().Sub(b.weekStart.Time()).Hours() / 24)
	if offset < 0 || offset >= len(b.days) {
		return nil, false
	}
	return b.days[offset], true
}

// Locate returns the container and index holding id.
func (b *Board) Locate(id int) (*OrderedContainer, int, bool) {
	for _, c := range b.containers() {
		if idx := c.IndexOf(id); idx >= 0 {
			return c, idx, true
		}
	}
	return nil, -1, false
}

// Task returns the board copy of id.
func (b *Board) Task(id int) (domain.Task, bool) {
	c, idx, ok := b.Locate(id)
	if !ok {
		return domain.Task{}, false
	}
	return c.Task(idx)
}

func (b *Board) containers() []*OrderedContainer {
	return append(append([]*OrderedContainer{}, b.days...), b.inbox)
}

// Clone returns an independent copy.
func (b *Board) Clone() *Board {
	out := &Board{weekStart: b.weekStart, inbox: b.inbox.Clone()}
	out.days = make([]*OrderedContainer, 0, len(b.days))
	for _, day := range b.days {
		out.days = append(out.days, day.Clone())
	}
	return out
}
