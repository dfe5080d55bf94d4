package domain

import "time"

// TaskEventType identifies what kind of mutation an event describes.
type TaskEventType string

const (
	EventTaskCreated       TaskEventType = "task_created"
	EventTaskUpdated       TaskEventType = "task_updated"
	EventTaskAssigned      TaskEventType = "task_assigned"
	EventTaskDeleted       TaskEventType = "task_deleted"
	EventTaskStatusChanged TaskEventType = "task_status_changed"
)

// TaskEvent is the transient change record fanned out to realtime subscribers
// and forwarded to the audit sink. It is never persisted by the core itself.
type TaskEvent struct {
	Type      TaskEventType  `json:"type"`
	TaskID    string         `json:"task_id"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
