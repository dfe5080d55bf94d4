package ports

import (
	"context"

	"github.com/taskboard/taskboard-api/internal/core/domain"
)

// Broadcaster fans task mutations out to realtime subscribers. All methods
// are best-effort relative to the already-committed database write: delivery
// failures are logged by the implementation and never returned to the caller.
type Broadcaster interface {
	// EmitTaskEvent delivers the event to the task-specific room and to the
	// global task feed, then forwards it to the audit sink flagged as
	// realtime-sourced.
	EmitTaskEvent(ctx context.Context, event domain.TaskEvent)
	// NotifyAssignment sends a point-to-point notification to the new
	// assignee's user room (skipped when assigneeID is nil) and a confirmation
	// to the actor. Never delivered when the assignee is the actor themself.
	NotifyAssignment(ctx context.Context, taskID, taskTitle string, assigneeID *string, actorID string)
	// NotifyCompletion tells the task creator their task was completed.
	// Skipped when the creator is the actor.
	NotifyCompletion(ctx context.Context, taskID, taskTitle, creatorID, actorID string)
}

// AuditSink records task events durably. Append is fire-and-forget: failures
// must be logged by the implementation, never surfaced to the caller.
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry)
}

// AuditEntry is the payload the core hands to the audit collaborator.
type AuditEntry struct {
	Type       string
	ActorID    string
	EntityID   string
	EntityType string
	Payload    map[string]any
	Realtime   bool
}

// NotificationStore persists user-facing notification records. Best-effort:
// errors are logged by callers and never fail the originating mutation.
type NotificationStore interface {
	CreateAssignmentNotice(ctx context.Context, userID, taskID, taskTitle, actorName string) error
	CreateCompletionNotice(ctx context.Context, userID, taskID, taskTitle, actorName string) error
	CreateUpdateNotice(ctx context.Context, userID, taskID, taskTitle, actorName string) error
}
