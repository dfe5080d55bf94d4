package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taskboard/taskboard-api/internal/api/metrics"
	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
)

// Cache key prefixes and TTLs. Key formats are part of the external contract
// (a partial migration may read the same cache) and must not change.
const (
	taskKeyPrefix  = "task:"
	listKeyPrefix  = "tasks:list:"
	statsKeyPrefix = "task:stats:"

	taskTTL  = 30 * time.Minute
	listTTL  = 5 * time.Minute // list membership changes often, keep it short
	statsTTL = time.Minute
)

const maxPageLimit = 100

// TaskService orchestrates the task repository, the cache, and the broadcaster.
// Concurrency safety for updates is delegated entirely to the repository's
// version-column compare-and-swap; the service itself holds no locks.
type TaskService struct {
	repo          ports.TaskRepository
	users         ports.UserRepository
	cache         ports.Cache
	broadcaster   ports.Broadcaster
	notifications ports.NotificationStore
	log           zerolog.Logger
}

func NewTaskService(
	repo ports.TaskRepository,
	users ports.UserRepository,
	cache ports.Cache,
	broadcaster ports.Broadcaster,
	notifications ports.NotificationStore,
	log zerolog.Logger,
) *TaskService {
	return &TaskService{
		repo:          repo,
		users:         users,
		cache:         cache,
		broadcaster:   broadcaster,
		notifications: notifications,
		log:           log,
	}
}

// CreateTask persists a new task with status todo and version 1.
func (s *TaskService) CreateTask(ctx context.Context, input ports.CreateTaskInput, actor ports.Actor) (*ports.TaskView, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	priority := domain.TaskPriority(input.Priority)
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, input.Priority)
	}

	if input.AssigneeID != nil {
		if _, err := s.users.FindByID(ctx, *input.AssigneeID); err != nil {
			return nil, domain.ErrAssigneeNotFound
		}
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.StatusTodo,
		Priority:    priority,
		AssigneeID:  input.AssigneeID,
		CreatorID:   actor.UserID,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		s.log.Error().Err(err).Str("actor", actor.UserID).Msg("failed to create task")
		return nil, err
	}

	s.invalidateTaskCaches(ctx, "")
	metrics.TasksCreatedTotal.WithLabelValues(string(priority)).Inc()

	// Reload for joined creator/assignee display data.
	created, err := s.repo.FindByID(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	s.broadcaster.EmitTaskEvent(ctx, domain.TaskEvent{
		Type:    domain.EventTaskCreated,
		TaskID:  created.ID,
		ActorID: actor.UserID,
		Payload: map[string]any{
			"title":    created.Title,
			"status":   created.Status,
			"priority": created.Priority,
		},
		Timestamp: now,
	})
	if created.AssigneeID != nil && *created.AssigneeID != actor.UserID {
		s.sendAssignmentNotices(ctx, created, actor)
	}

	s.log.Info().Str("task_id", created.ID).Str("actor", actor.UserID).Msg("task created")
	return s.toView(created), nil
}

// ListTasks returns an access-scoped, cached page of tasks.
func (s *TaskService) ListTasks(ctx context.Context, filter ports.ListTasksFilter, actor ports.Actor) (*ports.ListTasksResult, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	if !actor.IsAdmin() {
		filter.ScopeUserID = actor.UserID
	}

	key := listKeyPrefix + encodeListFilter(filter)
	var cached ports.ListTasksResult
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	tasks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &ports.ListTasksResult{
		Tasks: make([]ports.TaskView, 0, len(tasks)),
		Pagination: ports.Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
		},
	}
	for _, t := range tasks {
		result.Tasks = append(result.Tasks, *s.toView(t))
	}

	s.cacheSet(ctx, key, result, listTTL)
	return result, nil
}

// GetTask returns a single task. Absent, soft-deleted, and forbidden tasks all
// yield ErrTaskNotFound so callers cannot probe for existence.
func (s *TaskService) GetTask(ctx context.Context, id string, actor ports.Actor) (*ports.TaskView, error) {
	key := taskKeyPrefix + id
	var cached domain.Task
	if s.cacheGet(ctx, key, &cached) {
		if !canRead(&cached, actor) {
			return nil, domain.ErrTaskNotFound
		}
		return s.toView(&cached), nil
	}

	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(task, actor) {
		return nil, domain.ErrTaskNotFound
	}

	s.cacheSet(ctx, key, task, taskTTL)
	return s.toView(task), nil
}

// UpdateTask applies a patch under optimistic concurrency control. The version
// the client last observed is mandatory; on mismatch the repository reports
// ErrVersionConflict and nothing changes.
func (s *TaskService) UpdateTask(ctx context.Context, id string, patch ports.UpdateTaskInput, actor ports.Actor) (*ports.TaskView, error) {
	if patch.Version <= 0 {
		return nil, fmt.Errorf("%w: version is required", domain.ErrValidation)
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(current, actor) {
		return nil, domain.ErrTaskNotFound
	}

	// The completedAt transition and the event-type decision below are derived
	// from this snapshot, so the snapshot must be at the version the caller
	// observed. Rejecting a mismatch here closes the read-to-CAS window: any
	// concurrent commit after this read bumps the version and loses the
	// repository CAS instead of racing the derivation.
	if current.Version != patch.Version {
		metrics.TaskConflictsTotal.Inc()
		return nil, domain.ErrVersionConflict
	}

	upd, err := s.buildUpdate(ctx, current, patch)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch.Version, upd)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.TaskConflictsTotal.Inc()
		}
		return nil, err
	}

	s.invalidateTaskCaches(ctx, id)

	statusChanged := patch.Status != nil && domain.TaskStatus(*patch.Status) != current.Status
	assigneeChanged := patch.AssigneeID != nil && !sameAssignee(current.AssigneeID, *patch.AssigneeID)

	eventType := domain.EventTaskUpdated
	if statusChanged {
		eventType = domain.EventTaskStatusChanged
	}
	s.broadcaster.EmitTaskEvent(ctx, domain.TaskEvent{
		Type:      eventType,
		TaskID:    updated.ID,
		ActorID:   actor.UserID,
		Payload:   changePayload(current, updated),
		Timestamp: time.Now().UTC(),
	})
	if assigneeChanged {
		s.broadcaster.EmitTaskEvent(ctx, domain.TaskEvent{
			Type:      domain.EventTaskAssigned,
			TaskID:    updated.ID,
			ActorID:   actor.UserID,
			Payload:   map[string]any{"assignee_id": updated.AssigneeID},
			Timestamp: time.Now().UTC(),
		})
		s.sendAssignmentNotices(ctx, updated, actor)
	}
	if statusChanged && updated.Status == domain.StatusDone && updated.CreatorID != actor.UserID {
		s.sendCompletionNotices(ctx, updated, actor)
	}

	s.log.Info().
		Str("task_id", updated.ID).
		Str("actor", actor.UserID).
		Int64("version", updated.Version).
		Msg("task updated")
	return s.toView(updated), nil
}

// AssignTask is the dedicated assignment path. The cache is invalidated before
// the fresh repository read so a stale assignee can never be served back.
func (s *TaskService) AssignTask(ctx context.Context, id string, assigneeID *string, actor ports.Actor) (*ports.TaskView, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(current, actor) {
		return nil, domain.ErrTaskNotFound
	}

	if assigneeID != nil {
		if _, err := s.users.FindByID(ctx, *assigneeID); err != nil {
			return nil, domain.ErrAssigneeNotFound
		}
	}

	s.invalidateTaskCaches(ctx, id)

	updated, err := s.repo.Update(ctx, id, current.Version, ports.TaskUpdate{
		AssigneeID: &assigneeID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.TaskConflictsTotal.Inc()
		}
		return nil, err
	}

	s.invalidateTaskCaches(ctx, id)

	s.broadcaster.EmitTaskEvent(ctx, domain.TaskEvent{
		Type:      domain.EventTaskAssigned,
		TaskID:    updated.ID,
		ActorID:   actor.UserID,
		Payload:   map[string]any{"assignee_id": updated.AssigneeID},
		Timestamp: time.Now().UTC(),
	})
	s.sendAssignmentNotices(ctx, updated, actor)

	s.log.Info().Str("task_id", updated.ID).Str("actor", actor.UserID).Msg("task assigned")
	return s.toView(updated), nil
}

// RemoveTask soft-deletes the task. Only admins and the creator may delete.
func (s *TaskService) RemoveTask(ctx context.Context, id string, actor ports.Actor) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !canRead(current, actor) {
		return domain.ErrTaskNotFound
	}
	if !actor.IsAdmin() && current.CreatorID != actor.UserID {
		return domain.ErrForbidden
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.invalidateTaskCaches(ctx, id)

	s.broadcaster.EmitTaskEvent(ctx, domain.TaskEvent{
		Type:      domain.EventTaskDeleted,
		TaskID:    id,
		ActorID:   actor.UserID,
		Payload:   map[string]any{"title": current.Title},
		Timestamp: time.Now().UTC(),
	})

	s.log.Info().Str("task_id", id).Str("actor", actor.UserID).Msg("task removed")
	return nil
}

// GetStats returns aggregate counts scoped the same way as ListTasks.
func (s *TaskService) GetStats(ctx context.Context, actor ports.Actor) (*ports.TaskStats, error) {
	scope := "all"
	scopeUserID := ""
	if !actor.IsAdmin() {
		scope = actor.UserID
		scopeUserID = actor.UserID
	}

	key := statsKeyPrefix + scope
	var cached ports.TaskStats
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	stats, err := s.repo.Stats(ctx, scopeUserID)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, stats, statsTTL)
	return stats, nil
}

// --- helpers ---

// canRead implements the access-scoping rule: admins see everything, others
// only tasks they created or are assigned to.
func canRead(t *domain.Task, actor ports.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	if t.CreatorID == actor.UserID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == actor.UserID
}

// buildUpdate validates the patch and derives the repository update, including
// the completion-timestamp side effect as status crosses into or out of done.
func (s *TaskService) buildUpdate(ctx context.Context, current *domain.Task, patch ports.UpdateTaskInput) (ports.TaskUpdate, error) {
	var upd ports.TaskUpdate

	upd.Title = patch.Title
	upd.Description = patch.Description
	upd.DueDate = patch.DueDate

	if patch.Priority != nil {
		p := domain.TaskPriority(*patch.Priority)
		if !domain.ValidPriority(p) {
			return upd, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, *patch.Priority)
		}
		upd.Priority = &p
	}

	if patch.Status != nil {
		st := domain.TaskStatus(*patch.Status)
		if !domain.ValidStatus(st) {
			return upd, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *patch.Status)
		}
		upd.Status = &st

		// completedAt is non-nil iff status == done
		if st == domain.StatusDone && current.Status != domain.StatusDone {
			now := time.Now().UTC()
			completed := &now
			upd.CompletedAt = &completed
		}
		if st != domain.StatusDone && current.Status == domain.StatusDone {
			var cleared *time.Time
			upd.CompletedAt = &cleared
		}
	}

	if patch.AssigneeID != nil {
		if next := *patch.AssigneeID; next != nil {
			if _, err := s.users.FindByID(ctx, *next); err != nil {
				return upd, domain.ErrAssigneeNotFound
			}
		}
		upd.AssigneeID = patch.AssigneeID
	}

	return upd, nil
}

// sendAssignmentNotices delivers the realtime notification and persists the
// notification record. Both are best-effort; the assignee is never the actor
// by the time this is called from UpdateTask, and the broadcaster re-checks.
func (s *TaskService) sendAssignmentNotices(ctx context.Context, t *domain.Task, actor ports.Actor) {
	s.broadcaster.NotifyAssignment(ctx, t.ID, t.Title, t.AssigneeID, actor.UserID)

	if t.AssigneeID == nil || *t.AssigneeID == actor.UserID {
		return
	}
	if err := s.notifications.CreateAssignmentNotice(ctx, *t.AssigneeID, t.ID, t.Title, s.actorName(ctx, actor)); err != nil {
		s.log.Warn().Err(err).Str("task_id", t.ID).Msg("failed to persist assignment notice")
	} else {
		metrics.NotificationsSentTotal.WithLabelValues("task_assigned").Inc()
	}
}

func (s *TaskService) sendCompletionNotices(ctx context.Context, t *domain.Task, actor ports.Actor) {
	s.broadcaster.NotifyCompletion(ctx, t.ID, t.Title, t.CreatorID, actor.UserID)

	if err := s.notifications.CreateCompletionNotice(ctx, t.CreatorID, t.ID, t.Title, s.actorName(ctx, actor)); err != nil {
		s.log.Warn().Err(err).Str("task_id", t.ID).Msg("failed to persist completion notice")
	} else {
		metrics.NotificationsSentTotal.WithLabelValues("task_completed").Inc()
	}
}

func (s *TaskService) actorName(ctx context.Context, actor ports.Actor) string {
	u, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return "someone"
	}
	return u.Username
}

func (s *TaskService) toView(t *domain.Task) *ports.TaskView {
	return &ports.TaskView{Task: *t, IsOverdue: t.IsOverdue(time.Now().UTC())}
}

// cacheGet unmarshals the cached value into dest, reporting a hit. All cache
// failures degrade to a miss: the source of truth answers instead.
func (s *TaskService) cacheGet(ctx context.Context, key string, dest any) bool {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.log.Warn().Err(err).Str("key", key).Msg("cache get failed, falling back to repository")
			metrics.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		} else {
			metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// Evict the entry so the next read repopulates instead of re-parsing
		// the same garbage until TTL expiry.
		s.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, evicting")
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("failed to evict corrupt cache entry")
		}
		return false
	}
	metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return true
}

func (s *TaskService) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		metrics.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		return
	}
	metrics.CacheOperationsTotal.WithLabelValues("set", "ok").Inc()
}

// invalidateTaskCaches drops the whole task cache namespace: the single task
// entry (when id is non-empty), every cached list page, and every stats entry.
// Coarse on purpose: mutation rate is low relative to reads, so correctness of
// invalidation beats cache hit-rate.
func (s *TaskService) invalidateTaskCaches(ctx context.Context, id string) {
	if id != "" {
		if err := s.cache.Delete(ctx, taskKeyPrefix+id); err != nil {
			s.log.Warn().Err(err).Str("task_id", id).Msg("cache invalidation failed")
		}
	}
	for _, pattern := range []string{listKeyPrefix + "*", statsKeyPrefix + "*"} {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.log.Warn().Err(err).Str("pattern", pattern).Msg("cache invalidation failed")
		}
	}
}

// encodeListFilter renders the full filter+pagination signature as a stable
// query string, so equal filters share a cache entry.
func encodeListFilter(f ports.ListTasksFilter) string {
	v := url.Values{}
	v.Set("scope", f.ScopeUserID)
	v.Set("status", f.Status)
	v.Set("priority", f.Priority)
	v.Set("assignee", f.AssigneeID)
	v.Set("creator", f.CreatorID)
	v.Set("search", f.Search)
	v.Set("sort", f.SortBy)
	v.Set("order", f.SortOrder)
	v.Set("page", strconv.Itoa(f.Page))
	v.Set("limit", strconv.Itoa(f.Limit))
	return v.Encode()
}

// changePayload describes what the update touched, for event subscribers.
func changePayload(before, after *domain.Task) map[string]any {
	p := map[string]any{}
	if before.Title != after.Title {
		p["title"] = after.Title
	}
	if before.Description != after.Description {
		p["description"] = after.Description
	}
	if before.Status != after.Status {
		p["status"] = after.Status
	}
	if before.Priority != after.Priority {
		p["priority"] = after.Priority
	}
	if !sameAssignee(before.AssigneeID, after.AssigneeID) {
		p["assignee_id"] = after.AssigneeID
	}
	return p
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
