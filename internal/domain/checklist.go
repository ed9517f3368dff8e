package domain

import (
	"fmt"
	"regexp"
)

var checklistPattern = regexp.MustCompile(`(?m)^- \[([x ])\]`)

// maxChecklistBadge is the largest total still shown as a checked/total badge.
const maxChecklistBadge = 9

// ChecklistProgress counts markdown checkboxes in a description.
type ChecklistProgress struct {
	Checked int
	Total   int
}

func ParseChecklist(description string) ChecklistProgress {
	var out ChecklistProgress
	for _, match := range checklistPattern.FindAllStringSubmatch(description, -1) {
		out.Total++
		if match[1] == "x" {
			out.Checked++
		}
	}
	return out
}

// Badge returns "checked/total" for small checklists and "" otherwise.
func (c ChecklistProgress) Badge() string {
	if c.Total == 0 || c.Total > maxChecklistBadge {
		return ""
	}
	return fmt.Sprintf("%d/%d", c.Checked, c.Total)
}

// Done reports whether every checkbox is checked.
func (c ChecklistProgress) Done() bool {
	return c.Total > 0 && c.Checked == c.Total
}
