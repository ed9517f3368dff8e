package domain

import (
	"slices"
	"strings"
)

type Color string

const (
	ColorNone   Color = ""
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorPink   Color = "pink"
	ColorOrange Color = "orange"
)

var validColors = []Color{ColorNone, ColorBlue, ColorGreen, ColorYellow, ColorPink, ColorOrange}

// Colors returns the selectable task colors in picker order.
func Colors() []Color {
	return slices.Clone(validColors)
}

func ParseColor(raw string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validColors, c) {
		return ColorNone, ErrInvalidColor
	}
	return c, nil
}

// Next returns the color after c in picker order, wrapping to none.
func (c Color) Next() Color {
	idx := slices.Index(validColors, c)
	return validColors[(idx+1)%len(validColors)]
}

type Task struct {
	ID                 int
	Title              string
	DueDate            *Date
	Order              int
	Color              Color
	Completed          bool
	Description        string
	RecurrenceRule     RecurrenceRule
	RecurrenceInterval int
}

type TaskInput struct {
	Title              string
	Description        string
	DueDate            *Date
	Order              int
	Color              Color
	RecurrenceRule     RecurrenceRule
	RecurrenceInterval int
}

// NewTask validates input for a task that has not been assigned an id yet.
func NewTask(in TaskInput) (Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Order < 0 {
		return Task{}, ErrInvalidOrder
	}
	if !slices.Contains(validColors, in.Color) {
		return Task{}, ErrInvalidColor
	}
	if !in.RecurrenceRule.Valid() {
		return Task{}, ErrInvalidRecurrence
	}
	if in.RecurrenceInterval == 0 {
		in.RecurrenceInterval = 1
	}
	if in.RecurrenceInterval < 1 {
		return Task{}, ErrInvalidInterval
	}

	task := Task{
		Title:              in.Title,
		Description:        in.Description,
		DueDate:            cloneDate(in.DueDate),
		Order:              in.Order,
		Color:              in.Color,
		RecurrenceRule:     in.RecurrenceRule,
		RecurrenceInterval: in.RecurrenceInterval,
	}
	task.normalizeRecurrence()
	return task, nil
}

// InInbox reports whether the task has no due date.
func (t Task) InInbox() bool {
	return t.DueDate == nil || t.DueDate.IsZero()
}

// Container returns the key of the container holding t.
func (t Task) Container() ContainerKey {
	return ContainerFor(t.DueDate)
}

// IsRecurring reports whether t repeats.
func (t Task) IsRecurring() bool {
	return t.RecurrenceRule != RecurrenceNone && !t.InInbox()
}

// DueOn reports whether t is due on d.
func (t Task) DueOn(d Date) bool {
	return !t.InInbox() && *t.DueDate == d
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	t.DueDate = cloneDate(t.DueDate)
	return t
}

// Checklist returns the description checkbox progress.
func (t Task) Checklist() ChecklistProgress {
	return ParseChecklist(t.Description)
}

// Apply merges a validated patch into t.
func (t *Task) Apply(p TaskPatch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		t.DueDate = cloneDate(p.DueDate)
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.RecurrenceRule != nil {
		t.RecurrenceRule = *p.RecurrenceRule
	}
	if p.RecurrenceInterval != nil {
		t.RecurrenceInterval = *p.RecurrenceInterval
	}
	t.normalizeRecurrence()
	return nil
}

// normalizeRecurrence clears recurrence on inbox tasks and keeps the interval positive.
func (t *Task) normalizeRecurrence() {
	if t.RecurrenceInterval < 1 {
		t.RecurrenceInterval = 1
	}
	if t.InInbox() {
		t.DueDate = nil
		t.RecurrenceRule = RecurrenceNone
		t.RecurrenceInterval = 1
	}
}

func cloneDate(d *Date) *Date {
	if d == nil || d.IsZero() {
		return nil
	}
	out := *d
	return &out
}
