package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, raw string) Date {
	t.Helper()
	d, err := ParseDate(raw)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", raw, err)
	}
	return d
}

func TestParseDate(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	if d.String() != "2024-06-10" {
		t.Fatalf("unexpected date %q", d.String())
	}
	if d.Weekday() != time.Monday {
		t.Fatalf("expected monday, got %s", d.Weekday())
	}
	if _, err := ParseDate("10/06/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := ParseDate("  "); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateWeekStartAndArithmetic(t *testing.T) {
	d := mustDate(t, "2024-06-13")
	if got := d.WeekStart(time.Monday); got.String() != "2024-06-10" {
		t.Fatalf("WeekStart(monday) = %s", got)
	}
	if got := d.WeekStart(time.Sunday); got.String() != "2024-06-09" {
		t.Fatalf("WeekStart(sunday) = %s", got)
	}
	if got := d.AddDays(20); got.String() != "2024-07-03" {
		t.Fatalf("AddDays(20) = %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.After(d) {
		t.Fatal("unexpected ordering")
	}
}

func TestDateTextRoundTripAcceptsTimestamps(t *testing.T) {
	var d Date
	if err := d.UnmarshalText([]byte("2024-06-10T00:00:00Z")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.String() != "2024-06-10" {
		t.Fatalf("unexpected date %q", d.String())
	}
	if err := d.UnmarshalText([]byte("")); err != nil || !d.IsZero() {
		t.Fatalf("expected zero date, got %v err=%v", d, err)
	}
}

func TestContainerKeys(t *testing.T) {
	day := DayKey(mustDate(t, "2024-06-10"))
	if day.IsInbox() || day.String() != "2024-06-10" {
		t.Fatalf("unexpected day key %v", day)
	}
	if InboxKey().String() != "inbox" || InboxKey().DueDate() != nil {
		t.Fatal("unexpected inbox key")
	}
	if ContainerFor(nil) != InboxKey() {
		t.Fatal("nil due date must map to inbox")
	}
	due := mustDate(t, "2024-06-10")
	if ContainerFor(&due) != day {
		t.Fatal("due date must map to its day")
	}
	if !(ContainerKey{}).IsZero() {
		t.Fatal("zero key must report zero")
	}
}

func TestNewTaskValidation(t *testing.T) {
	if _, err := NewTask(TaskInput{Title: "  "}); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := NewTask(TaskInput{Title: "x", Color: "purple"}); err != ErrInvalidColor {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
	if _, err := NewTask(TaskInput{Title: "x", RecurrenceRule: "hourly"}); err != ErrInvalidRecurrence {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
	task, err := NewTask(TaskInput{Title: " laundry ", RecurrenceRule: RecurrenceWeekly, RecurrenceInterval: 2})
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Title != "laundry" {
		t.Fatalf("unexpected title %q", task.Title)
	}
	if task.RecurrenceRule != RecurrenceNone || task.RecurrenceInterval != 1 {
		t.Fatalf("inbox task must not recur, got %q/%d", task.RecurrenceRule, task.RecurrenceInterval)
	}
}

func TestApplyInboxPatchClearsRecurrence(t *testing.T) {
	due := mustDate(t, "2024-06-10")
	task := Task{ID: 5, Title: "gym", DueDate: &due, Order: 2, RecurrenceRule: RecurrenceDaily, RecurrenceInterval: 3}
	if err := task.Apply(PatchForContainer(InboxKey())); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !task.InInbox() {
		t.Fatal("expected task in inbox")
	}
	if task.RecurrenceRule != RecurrenceNone || task.RecurrenceInterval != 1 {
		t.Fatalf("expected cleared recurrence, got %q/%d", task.RecurrenceRule, task.RecurrenceInterval)
	}
}

func TestApplyRejectsEmptyPatch(t *testing.T) {
	task := Task{ID: 1, Title: "x"}
	if err := task.Apply(TaskPatch{}); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
}

func TestTaskPatchJSON(t *testing.T) {
	raw, err := json.Marshal(PatchForContainer(InboxKey()))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := got["due_date"]; !ok || v != nil {
		t.Fatalf("expected explicit null due_date, got %#v", got)
	}
	if got["recurrence_rule"] != "" || got["recurrence_interval"] != float64(1) {
		t.Fatalf("unexpected recurrence fields %#v", got)
	}

	done := true
	raw, err = json.Marshal(TaskPatch{Completed: &done})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `{"completed":1}` {
		t.Fatalf("unexpected payload %s", raw)
	}
}

func TestTaskPatchDecodesWireFields(t *testing.T) {
	var patch TaskPatch
	body := `{"title":"Call mom","due_date":"2024-06-11","task_order":3,"color":"pink","completed":1,"recurrence_rule":"weekly","recurrence_interval":2}`
	if err := json.Unmarshal([]byte(body), &patch); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if patch.Title == nil || *patch.Title != "Call mom" {
		t.Fatalf("unexpected title %#v", patch.Title)
	}
	if patch.DueDate == nil || *patch.DueDate != mustDate(t, "2024-06-11") || patch.ClearDueDate {
		t.Fatalf("unexpected due date %#v", patch.DueDate)
	}
	if *patch.Order != 3 || *patch.Color != ColorPink || !*patch.Completed {
		t.Fatalf("unexpected patch %#v", patch)
	}
	if *patch.RecurrenceRule != RecurrenceWeekly || *patch.RecurrenceInterval != 2 {
		t.Fatalf("unexpected recurrence %#v", patch)
	}
	if patch.Description != nil {
		t.Fatalf("expected untouched description, got %q", *patch.Description)
	}

	var inbox TaskPatch
	raw, err := json.Marshal(PatchForContainer(InboxKey()))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := json.Unmarshal(raw, &inbox); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !inbox.ClearDueDate || !inbox.ClearsRecurrence() {
		t.Fatalf("expected inbox patch to clear the date and recurrence, got %#v", inbox)
	}

	for _, bad := range []string{`{"owner":"x"}`, `{"completed":2}`, `{"due_date":"june"}`, `[1]`} {
		var p TaskPatch
		if err := json.Unmarshal([]byte(bad), &p); err == nil {
			t.Fatalf("Unmarshal(%s) expected error", bad)
		}
	}
}

func TestNextDueDate(t *testing.T) {
	base := mustDate(t, "2024-01-31")
	cases := []struct {
		rule     RecurrenceRule
		interval int
		want     string
	}{
		{RecurrenceDaily, 2, "2024-02-02"},
		{RecurrenceWeekly, 1, "2024-02-07"},
		{RecurrenceMonthly, 1, "2024-03-02"},
		{RecurrenceYearly, 1, "2025-01-31"},
	}
	for _, tc := range cases {
		got, err := NextDueDate(base, tc.rule, tc.interval)
		if err != nil {
			t.Fatalf("NextDueDate(%s) error = %v", tc.rule, err)
		}
		if got.String() != tc.want {
			t.Fatalf("NextDueDate(%s, %d) = %s, want %s", tc.rule, tc.interval, got, tc.want)
		}
	}
	if _, err := NextDueDate(base, RecurrenceNone, 1); !errors.Is(err, ErrInvalidRecurrence) {
		t.Fatalf("expected ErrInvalidRecurrence, got %v", err)
	}
	if _, err := NextDueDate(base, RecurrenceDaily, 0); err != ErrInvalidInterval {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestNextOccurrenceOnOrAfter(t *testing.T) {
	got, err := NextOccurrenceOnOrAfter(mustDate(t, "2024-06-01"), RecurrenceWeekly, 1, mustDate(t, "2024-06-15"))
	if err != nil {
		t.Fatalf("NextOccurrenceOnOrAfter() error = %v", err)
	}
	if got.String() != "2024-06-15" {
		t.Fatalf("unexpected occurrence %s", got)
	}
}

func TestChecklistProgress(t *testing.T) {
	progress := ParseChecklist("- [x] milk\n- [ ] eggs\nnotes - [x] inline\n- [x] bread")
	if progress.Checked != 2 || progress.Total != 3 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress.Badge() != "2/3" {
		t.Fatalf("unexpected badge %q", progress.Badge())
	}
	big := ChecklistProgress{Checked: 1, Total: 10}
	if big.Badge() != "" {
		t.Fatalf("expected no badge for large checklist, got %q", big.Badge())
	}
}

func TestColorCycle(t *testing.T) {
	if ColorNone.Next() != ColorBlue || ColorOrange.Next() != ColorNone {
		t.Fatal("unexpected color cycle")
	}
	if _, err := ParseColor("Green"); err != nil {
		t.Fatalf("ParseColor() error = %v", err)
	}
}

func TestTaskLinks(t *testing.T) {
	if TaskLink(42) != "#task/42" {
		t.Fatalf("unexpected link %q", TaskLink(42))
	}
	if id, ok := ParseTaskLink("http://localhost:8080/#task/7"); !ok || id != 7 {
		t.Fatalf("ParseTaskLink() = %d, %t", id, ok)
	}
	if _, ok := ParseTaskLink("#task/abc"); ok {
		t.Fatal("expected invalid link")
	}
}
