package app

// Messages resolves user-facing notification text by message id.
type Messages interface {
	Text(id string, data map[string]any) string
}

// Notification message ids.
const (
	MsgMoveFailed            = "move_failed"
	MsgOrderFailed           = "order_failed"
	MsgLoadFailed            = "load_failed"
	MsgTaskNotFound          = "task_not_found"
	MsgTaskDeleted           = "task_deleted"
	MsgDeleteFailed          = "delete_failed"
	MsgDeleteUndone          = "delete_undone"
	MsgRecurrenceCleared     = "recurrence_cleared"
	MsgRecurrenceClearFailed = "recurrence_clear_failed"
	MsgRecurrenceUndone      = "recurrence_undone"
	MsgUpdateFailed          = "update_failed"
	MsgCreateFailed          = "create_failed"
	MsgSearchFailed          = "search_failed"
	MsgInboxTitleFailed      = "inbox_title_failed"
)

var englishText = map[string]string{
	MsgMoveFailed:            "Could not move task",
	MsgOrderFailed:           "Could not save task order",
	MsgLoadFailed:            "Could not load tasks",
	MsgTaskNotFound:          "Task no longer exists",
	MsgTaskDeleted:           "Task deleted",
	MsgDeleteFailed:          "Could not delete task",
	MsgDeleteUndone:          "Task restored",
	MsgRecurrenceCleared:     "Recurrence removed",
	MsgRecurrenceClearFailed: "Could not remove recurrence",
	MsgRecurrenceUndone:      "Recurrence restored",
	MsgUpdateFailed:          "Could not update task",
	MsgCreateFailed:          "Could not create task",
	MsgSearchFailed:          "Search failed",
	MsgInboxTitleFailed:      "Could not save inbox title",
}

// englishMessages is the fallback when no localized bundle is configured.
type englishMessages struct{}

func (englishMessages) Text(id string, _ map[string]any) string {
	if text, ok := englishText[id]; ok {
		return text
	}
	return id
}

// MessageIDs lists every notification id the core may emit.
func MessageIDs() []string {
	return []string{
		MsgMoveFailed, MsgOrderFailed, MsgLoadFailed, MsgTaskNotFound, MsgTaskDeleted, MsgDeleteFailed,
		MsgDeleteUndone, MsgRecurrenceCleared, MsgRecurrenceClearFailed, MsgRecurrenceUndone,
		MsgUpdateFailed, MsgCreateFailed, MsgSearchFailed, MsgInboxTitleFailed,
	}
}
