package domain

import (
	"strconv"
	"strings"
)

const taskLinkPrefix = "#task/"

// TaskLink returns the deep link fragment for a task.
func TaskLink(id int) string {
	return taskLinkPrefix + strconv.Itoa(id)
}

// ParseTaskLink extracts the task id from a "#task/<id>" fragment or a URL ending with one.
func ParseTaskLink(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, taskLinkPrefix)
	if idx < 0 {
		return 0, false
	}
	id, err := strconv.Atoi(raw[idx+len(taskLinkPrefix):])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
