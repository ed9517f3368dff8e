package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaskPatch is a partial task update; nil fields are left unchanged.
type TaskPatch struct {
	Title              *string
	Description        *string
	DueDate            *Date
	ClearDueDate       bool
	Order              *int
	Color              *Color
	Completed          *bool
	RecurrenceRule     *RecurrenceRule
	RecurrenceInterval *int
}

// OrderUpdate is one entry of a bulk order update.
type OrderUpdate struct {
	ID    int `json:"id"`
	Order int `json:"order"`
}

// PatchForContainer builds the update for a task dropped into key. Moving to the inbox
// always clears recurrence.
func PatchForContainer(key ContainerKey) TaskPatch {
	if key.IsInbox() {
		rule := RecurrenceNone
		interval := 1
		return TaskPatch{
			ClearDueDate:       true,
			RecurrenceRule:     &rule,
			RecurrenceInterval: &interval,
		}
	}
	return TaskPatch{DueDate: key.DueDate()}
}

// ClearRecurrencePatch resets the recurrence fields.
func ClearRecurrencePatch() TaskPatch {
	rule := RecurrenceNone
	interval := 1
	return TaskPatch{RecurrenceRule: &rule, RecurrenceInterval: &interval}
}

// RecurrencePatch restores the recurrence fields of snapshot.
func RecurrencePatch(snapshot Task) TaskPatch {
	rule := snapshot.RecurrenceRule
	interval := snapshot.RecurrenceInterval
	return TaskPatch{RecurrenceRule: &rule, RecurrenceInterval: &interval}
}

// ClearsRecurrence reports whether applying p leaves the task without recurrence.
func (p TaskPatch) ClearsRecurrence() bool {
	return p.ClearDueDate || (p.RecurrenceRule != nil && *p.RecurrenceRule == RecurrenceNone)
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.Order == nil && p.Color == nil && p.Completed == nil &&
		p.RecurrenceRule == nil && p.RecurrenceInterval == nil
}

func (p TaskPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrInvalidTitle
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		return ErrInvalidDate
	}
	if p.Order != nil && *p.Order < 0 {
		return ErrInvalidOrder
	}
	if p.Color != nil {
		if _, err := ParseColor(string(*p.Color)); err != nil {
			return err
		}
	}
	if p.RecurrenceRule != nil && !p.RecurrenceRule.Valid() {
		return ErrInvalidRecurrence
	}
	if p.RecurrenceInterval != nil && *p.RecurrenceInterval < 1 {
		return ErrInvalidInterval
	}
	return nil
}

// Fields returns the wire field map of p.
func (p TaskPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Title != nil {
		out["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	switch {
	case p.ClearDueDate:
		out["due_date"] = nil
	case p.DueDate != nil:
		out["due_date"] = p.DueDate.String()
	}
	if p.Order != nil {
		out["task_order"] = *p.Order
	}
	if p.Color != nil {
		out["color"] = string(*p.Color)
	}
	if p.Completed != nil {
		completed := 0
		if *p.Completed {
			completed = 1
		}
		out["completed"] = completed
	}
	if p.RecurrenceRule != nil {
		out["recurrence_rule"] = string(*p.RecurrenceRule)
	}
	if p.RecurrenceInterval != nil {
		out["recurrence_interval"] = *p.RecurrenceInterval
	}
	return out
}

// MarshalJSON encodes only the set fields.
func (p TaskPatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

// UnmarshalJSON decodes the wire field map written by MarshalJSON. A null or empty due_date
// clears the date; "order" is accepted as an alias of task_order. Unknown keys are rejected.
func (p *TaskPatch) UnmarshalJSON(raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	var out TaskPatch
	for name, value := range fields {
		var err error
		switch name {
		case "title":
			out.Title, err = decodeField[string](value)
		case "description":
			out.Description, err = decodeField[string](value)
		case "due_date":
			err = out.decodeDueDate(value)
		case "task_order", "order":
			out.Order, err = decodeField[int](value)
		case "color":
			var raw *string
			if raw, err = decodeField[string](value); err == nil && raw != nil {
				c := Color(*raw)
				out.Color = &c
			}
		case "completed":
			out.Completed, err = decodeFlag(value)
		case "recurrence_rule":
			var raw *string
			if raw, err = decodeField[string](value); err == nil && raw != nil {
				rule := RecurrenceRule(*raw)
				out.RecurrenceRule = &rule
			}
		case "recurrence_interval":
			out.RecurrenceInterval, err = decodeField[int](value)
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return fmt.Errorf("patch field %q: %w", name, err)
		}
	}
	*p = out
	return nil
}

func (p *TaskPatch) decodeDueDate(value json.RawMessage) error {
	raw, err := decodeField[string](value)
	if err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		p.ClearDueDate = true
		return nil
	}
	due, err := ParseDate(*raw)
	if err != nil {
		return err
	}
	p.DueDate = &due
	return nil
}

// decodeField returns nil for a JSON null.
func decodeField[T any](value json.RawMessage) (*T, error) {
	var out *T
	if err := json.Unmarshal(value, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeFlag reads a completion flag written as 0/1 or as a boolean.
func decodeFlag(value json.RawMessage) (*bool, error) {
	var out bool
	switch strings.TrimSpace(string(value)) {
	case "null":
		return nil, nil
	case "1", "true":
		out = true
	case "0", "false":
		out = false
	default:
		return nil, fmt.Errorf("flag %s", value)
	}
	return &out, nil
}
