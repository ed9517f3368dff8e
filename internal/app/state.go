package app

import (
	"slices"

	"github.com/evanschultz/weekplan/internal/domain"
)

// DefaultInboxTitle is shown until the backend returns a stored title.
const DefaultInboxTitle = "📦 Inbox"

// AppState is the client-side state shared by the core components.
type AppState struct {
	today            domain.Date
	todayTasks       []domain.Task
	viewedTaskID     int
	recurrenceUIOpen bool
	inboxTitle       string
}

func NewAppState(today domain.Date) *AppState {
	return &AppState{today: today, inboxTitle: DefaultInboxTitle}
}

func (s *AppState) Today() domain.Date {
	return s.today
}

// SetToday replaces the today date and its cached tasks.
func (s *AppState) SetToday(today domain.Date, tasks []domain.Task) {
	s.today = today
	s.todayTasks = s.todayTasks[:0]
	for _, task := range tasks {
		if task.DueOn(today) {
			s.todayTasks = append(s.todayTasks, task.Clone())
		}
	}
}

// TodayTasks returns a copy of the cached tasks due today.
func (s *AppState) TodayTasks() []domain.Task {
	out := make([]domain.Task, 0, len(s.todayTasks))
	for _, task := range s.todayTasks {
		out = append(out, task.Clone())
	}
	return out
}

// InToday reports whether id is cached as due today.
func (s *AppState) InToday(id int) bool {
	return slices.ContainsFunc(s.todayTasks, func(t domain.Task) bool { return t.ID == id })
}

// UpsertToday stores fresh data for a task due today; tasks not due today are removed instead.
func (s *AppState) UpsertToday(task domain.Task) {
	if !task.DueOn(s.today) {
		s.RemoveToday(task.ID)
		return
	}
	if idx := slices.IndexFunc(s.todayTasks, func(t domain.Task) bool { return t.ID == task.ID }); idx >= 0 {
		s.todayTasks[idx] = task.Clone()
		return
	}
	s.todayTasks = append(s.todayTasks, task.Clone())
}

func (s *AppState) RemoveToday(id int) {
	s.todayTasks = slices.DeleteFunc(s.todayTasks, func(t domain.Task) bool { return t.ID == id })
}

// ViewedTask returns the id whose details popup is open.
func (s *AppState) ViewedTask() (int, bool) {
	return s.viewedTaskID, s.viewedTaskID != 0
}

func (s *AppState) SetViewedTask(id int, recurrenceUIOpen bool) {
	s.viewedTaskID = id
	s.recurrenceUIOpen = recurrenceUIOpen
}

func (s *AppState) ClearViewedTask() {
	s.viewedTaskID = 0
	s.recurrenceUIOpen = false
}

// IsViewing reports whether the popup for id is open.
func (s *AppState) IsViewing(id int) bool {
	return id != 0 && s.viewedTaskID == id
}

func (s *AppState) RecurrenceUIOpen() bool {
	return s.recurrenceUIOpen
}

func (s *AppState) SetRecurrenceUIOpen(open bool) {
	s.recurrenceUIOpen = open
}

func (s *AppState) InboxTitle() string {
	return s.inboxTitle
}

func (s *AppState) SetInboxTitle(title string) {
	if title == "" {
		title = DefaultInboxTitle
	}
	s.inboxTitle = title
}

// Clone returns an independent copy.
func (s *AppState) Clone() *AppState {
	out := *s
	out.todayTasks = s.TodayTasks()
	return &out
}
