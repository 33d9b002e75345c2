package core

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Event types emitted by the task repository.
const (
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskStatusChanged = "task.status_changed"
	EventTaskDeleted       = "task.deleted"
	EventTasksBulkDeleted  = "task.bulk_deleted"
	EventTasksBulkUpdated  = "task.bulk_updated"
	EventTasksReordered    = "task.reordered"
	EventTasksRestored     = "tasks.restored"
)
