// Package metrics defines and registers all custom Prometheus metrics for the
// taskboard API. It is the single source of truth for metric names, labels,
// and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskboard"

// ── Task metrics ──────────────────────────────────────────────────────────────

// TasksCreatedTotal counts newly created tasks.
// Label:
//   - priority: "low", "medium", "high", or "urgent"
var TasksCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Total number of tasks created, by priority.",
	},
	[]string{"priority"},
)

// TaskConflictsTotal counts optimistic-concurrency conflicts on task updates.
var TaskConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_conflicts_total",
		Help:      "Total number of task updates rejected by the version check.",
	},
)

// ── Cache metrics ─────────────────────────────────────────────────────────────

// CacheOperationsTotal counts cache layer operations.
// Labels:
//   - op: "get" or "set"
//   - result: "hit", "miss", "ok", or "error"
var CacheOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_operations_total",
		Help:      "Total number of cache operations, by operation and result.",
	},
	[]string{"op", "result"},
)

// ── Realtime metrics ──────────────────────────────────────────────────────────

// WSConnections tracks the number of live realtime connections.
var WSConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Current number of live realtime connections.",
	},
)

// WSBroadcastsTotal counts room broadcasts.
// Label:
//   - event_type: the task event type delivered (e.g. "task_updated")
var WSBroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_broadcasts_total",
		Help:      "Total number of room broadcasts, by event type.",
	},
	[]string{"event_type"},
)

// NotificationsSentTotal counts persisted user notifications.
// Label:
//   - type: "task_assigned", "task_completed", or "task_updated"
var NotificationsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Total number of notifications persisted, by type.",
	},
	[]string{"type"},
)
