package domain

import (
	"fmt"
	"strings"
)

// RecurrenceRule tags how often a dated task repeats.
type RecurrenceRule string

const (
	RecurrenceNone    RecurrenceRule = ""
	RecurrenceDaily   RecurrenceRule = "daily"
	RecurrenceWeekly  RecurrenceRule = "weekly"
	RecurrenceMonthly RecurrenceRule = "monthly"
	RecurrenceYearly  RecurrenceRule = "yearly"
)

// maxRecurrenceSteps bounds roll-forward loops over long gaps.
const maxRecurrenceSteps = 1000

func ParseRecurrenceRule(raw string) (RecurrenceRule, error) {
	rule := RecurrenceRule(strings.ToLower(strings.TrimSpace(raw)))
	if !rule.Valid() {
		return RecurrenceNone, fmt.Errorf("%w: %q", ErrInvalidRecurrence, raw)
	}
	return rule, nil
}

func (r RecurrenceRule) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	default:
		return false
	}
}

// NextDueDate returns the occurrence after current.
func NextDueDate(current Date, rule RecurrenceRule, interval int) (Date, error) {
	if interval < 1 {
		return Date{}, ErrInvalidInterval
	}
	switch rule {
	case RecurrenceDaily:
		return current.AddDays(interval), nil
	case RecurrenceWeekly:
		return current.AddDays(7 * interval), nil
	case RecurrenceMonthly:
		return current.AddDate(0, interval, 0), nil
	case RecurrenceYearly:
		return current.AddDate(interval, 0, 0), nil
	case RecurrenceNone:
		return Date{}, fmt.Errorf("%w: task does not recur", ErrInvalidRecurrence)
	default:
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidRecurrence, rule)
	}
}

// NextOccurrenceOnOrAfter steps from current until the occurrence is not before floor.
func NextOccurrenceOnOrAfter(current Date, rule RecurrenceRule, interval int, floor Date) (Date, error) {
	next := current
	for step := 0; step < maxRecurrenceSteps; step++ {
		candidate, err := NextDueDate(next, rule, interval)
		if err != nil {
			return Date{}, err
		}
		if !candidate.After(next) {
			return Date{}, fmt.Errorf("recurrence did not advance from %s", next)
		}
		next = candidate
		if !next.Before(floor) {
			return next, nil
		}
	}
	return Date{}, fmt.Errorf("recurrence from %s exceeded %d steps", current, maxRecurrenceSteps)
}
