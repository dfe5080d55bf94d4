package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskboard/taskboard-api/internal/api/metrics"
	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
)

// taskEventFrame is the server-to-client envelope for task mutations.
type taskEventFrame struct {
	Type      string         `json:"type"`
	EventType string         `json:"event_type"`
	TaskID    string         `json:"task_id"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// notificationFrame is the server-to-client envelope for targeted notices.
type notificationFrame struct {
	Type             string    `json:"type"`
	NotificationType string    `json:"notification_type"`
	TaskID           string    `json:"task_id"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}

// Broadcaster implements ports.Broadcaster on top of the hub. Delivery is
// best-effort relative to the already-committed database write: a failed or
// empty room never affects the originating mutation.
type Broadcaster struct {
	hub   *Hub
	audit ports.AuditSink
	log   zerolog.Logger
}

func NewBroadcaster(hub *Hub, audit ports.AuditSink, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, audit: audit, log: log}
}

// EmitTaskEvent delivers the event to the task-specific room and to the global
// task feed. Dual delivery is intentional: task-detail views subscribe to the
// task room, list views rely on the global feed. The event is then forwarded
// to the audit sink flagged as realtime-sourced.
func (b *Broadcaster) EmitTaskEvent(ctx context.Context, event domain.TaskEvent) {
	frame, err := json.Marshal(taskEventFrame{
		Type:      MsgTaskEvent,
		EventType: string(event.Type),
		TaskID:    event.TaskID,
		ActorID:   event.ActorID,
		Payload:   event.Payload,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		b.log.Error().Err(err).Str("task_id", event.TaskID).Msg("failed to marshal task event")
		return
	}

	b.hub.Broadcast(TaskRoom(event.TaskID), frame)
	b.hub.Broadcast(GlobalRoom, frame)
	metrics.WSBroadcastsTotal.WithLabelValues(string(event.Type)).Inc()

	b.audit.Append(ctx, ports.AuditEntry{
		Type:       string(event.Type),
		ActorID:    event.ActorID,
		EntityID:   event.TaskID,
		EntityType: "task",
		Payload:    event.Payload,
		Realtime:   true,
	})
}

// NotifyAssignment sends a point-to-point notice to the new assignee's user
// room and a confirmation to the actor. Nothing is sent when the task was
// unassigned (nil assignee) or when the assignee is the actor themself.
func (b *Broadcaster) NotifyAssignment(ctx context.Context, taskID, taskTitle string, assigneeID *string, actorID string) {
	if assigneeID == nil || *assigneeID == actorID {
		return
	}

	b.sendNotification(*assigneeID, notificationFrame{
		Type:             MsgNotification,
		NotificationType: "task_assigned",
		TaskID:           taskID,
		Message:          "You were assigned the task \"" + taskTitle + "\"",
		Timestamp:        time.Now().UTC(),
	})
	b.sendNotification(actorID, notificationFrame{
		Type:             MsgNotification,
		NotificationType: "assignment_confirmed",
		TaskID:           taskID,
		Message:          "Assignment of \"" + taskTitle + "\" delivered",
		Timestamp:        time.Now().UTC(),
	})
}

// NotifyCompletion tells the task creator their task was completed. Skipped
// when the creator completed it themself.
func (b *Broadcaster) NotifyCompletion(ctx context.Context, taskID, taskTitle, creatorID, actorID string) {
	if creatorID == actorID {
		return
	}

	b.sendNotification(creatorID, notificationFrame{
		Type:             MsgNotification,
		NotificationType: "task_completed",
		TaskID:           taskID,
		Message:          "Your task \"" + taskTitle + "\" was completed",
		Timestamp:        time.Now().UTC(),
	})
}

func (b *Broadcaster) sendNotification(userID string, frame notificationFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		b.log.Error().Err(err).Str("user_id", userID).Msg("failed to marshal notification")
		return
	}
	b.hub.Broadcast(UserRoom(userID), data)
}
