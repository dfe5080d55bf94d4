package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
)

type captureSink struct {
	entries []ports.AuditEntry
}

func (s *captureSink) Append(_ context.Context, entry ports.AuditEntry) {
	s.entries = append(s.entries, entry)
}

func TestBroadcaster_EmitTaskEvent_DualDelivery(t *testing.T) {
	hub := NewHub(testLogger)
	sink := &captureSink{}
	b := NewBroadcaster(hub, sink, testLogger)

	watcher := newTestClient(hub, "alice", false) // subscribed to the task room
	lurker := newTestClient(hub, "bob", false)    // global feed only
	hub.Register(watcher)
	hub.Register(lurker)
	hub.Join(TaskRoom("t1"), watcher)

	b.EmitTaskEvent(context.Background(), domain.TaskEvent{
		Type:      domain.EventTaskStatusChanged,
		TaskID:    "t1",
		ActorID:   "alice",
		Payload:   map[string]any{"status": "done"},
		Timestamp: time.Now().UTC(),
	})

	// The task-room subscriber is also in the global feed, so it sees the
	// frame twice; the lurker sees it once.
	watcherMsgs := drain(watcher)
	if len(watcherMsgs) != 2 {
		t.Fatalf("subscriber should receive the frame on both rooms, got %d", len(watcherMsgs))
	}
	lurkerMsgs := drain(lurker)
	if len(lurkerMsgs) != 1 {
		t.Fatalf("global-feed client should receive exactly one frame, got %d", len(lurkerMsgs))
	}

	var frame taskEventFrame
	if err := json.Unmarshal(lurkerMsgs[0], &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != MsgTaskEvent || frame.EventType != string(domain.EventTaskStatusChanged) || frame.TaskID != "t1" {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	if len(sink.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(sink.entries))
	}
	entry := sink.entries[0]
	if !entry.Realtime || entry.EntityType != "task" || entry.EntityID != "t1" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestBroadcaster_NotifyAssignment(t *testing.T) {
	hub := NewHub(testLogger)
	b := NewBroadcaster(hub, &captureSink{}, testLogger)

	assignee := newTestClient(hub, "bob", false)
	actor := newTestClient(hub, "alice", false)
	hub.Register(assignee)
	hub.Register(actor)

	bobID := "bob"
	b.NotifyAssignment(context.Background(), "t1", "fix login", &bobID, "alice")

	got := drain(assignee)
	if len(got) != 1 {
		t.Fatalf("assignee should receive one notification, got %d", len(got))
	}
	var frame notificationFrame
	if err := json.Unmarshal(got[0], &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Type != MsgNotification || frame.NotificationType != "task_assigned" || frame.TaskID != "t1" {
		t.Fatalf("unexpected notification: %+v", frame)
	}

	confirmations := drain(actor)
	if len(confirmations) != 1 {
		t.Fatalf("actor should receive a confirmation, got %d", len(confirmations))
	}
}

func TestBroadcaster_NotifyAssignment_SkipsSelfAndNil(t *testing.T) {
	hub := NewHub(testLogger)
	b := NewBroadcaster(hub, &captureSink{}, testLogger)

	alice := newTestClient(hub, "alice", false)
	hub.Register(alice)

	selfID := "alice"
	b.NotifyAssignment(context.Background(), "t1", "title", &selfID, "alice")
	b.NotifyAssignment(context.Background(), "t1", "title", nil, "alice")

	if got := drain(alice); len(got) != 0 {
		t.Fatalf("self-assignment and unassignment must stay silent, got %d frames", len(got))
	}
}

func TestBroadcaster_NotifyCompletion(t *testing.T) {
	hub := NewHub(testLogger)
	b := NewBroadcaster(hub, &captureSink{}, testLogger)

	creator := newTestClient(hub, "alice", false)
	hub.Register(creator)

	b.NotifyCompletion(context.Background(), "t1", "ship it", "alice", "bob")
	got := drain(creator)
	if len(got) != 1 {
		t.Fatalf("creator should be told about completion, got %d frames", len(got))
	}

	// Completing your own task says nothing.
	b.NotifyCompletion(context.Background(), "t1", "ship it", "alice", "alice")
	if got := drain(creator); len(got) != 0 {
		t.Fatalf("self-completion must stay silent, got %d frames", len(got))
	}
}
