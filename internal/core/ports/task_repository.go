package ports

import (
	"context"
	"time"

	"github.com/taskboard/taskboard-api/internal/core/domain"
)

// ListTasksFilter carries all query parameters for listing tasks.
// ScopeUserID is enforced by the service layer: when non-empty, only tasks
// created by or assigned to that user are visible (non-admin access scoping).
type ListTasksFilter struct {
	ScopeUserID string // empty = no scoping (admin); non-empty = creator OR assignee
	Status      string // optional: filter by task status
	Priority    string // optional: filter by priority
	AssigneeID  string // optional: filter by assignee
	CreatorID   string // optional: filter by creator
	Search      string // optional: partial match on title or description
	SortBy      string // whitelisted column; unrecognised values fall back to created_at
	SortOrder   string // "asc" or "desc" (default desc)
	Page        int    // 1-based
	Limit       int    // max rows per page (capped at 100 by service)
}

// TaskUpdate is the set of columns a repository update may touch. Nil fields
// are left unchanged; AssigneeID and DueDate use a double pointer so callers
// can distinguish "leave as is" from "set to null".
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	AssigneeID  **string
	DueDate     **time.Time
	CompletedAt **time.Time
}

// TaskStats is the aggregate view returned by Stats.
type TaskStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
	Overdue    int64            `json:"overdue"`
}

// TaskRepository defines persistence operations for tasks. All reads exclude
// soft-deleted rows.
type TaskRepository interface {
	Create(ctx context.Context, t *domain.Task) error
	// FindByID retrieves a live task by id with creator/assignee display data joined.
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	// List returns a page of tasks matching filter and the total count.
	List(ctx context.Context, filter ListTasksFilter) ([]*domain.Task, int64, error)
	// Update applies upd to the row only when its stored version equals
	// expectedVersion, bumping the version atomically (compare-and-swap in the
	// WHERE clause). Returns domain.ErrVersionConflict when the row exists but
	// the version does not match, domain.ErrTaskNotFound when it does not exist
	// or is soft-deleted.
	Update(ctx context.Context, id string, expectedVersion int64, upd TaskUpdate) (*domain.Task, error)
	// SoftDelete marks the task deleted and bumps the version.
	SoftDelete(ctx context.Context, id string) error
	// Stats computes aggregate counts in a single query, scoped like List.
	Stats(ctx context.Context, scopeUserID string) (*TaskStats, error)
}

// UserRepository defines the read surface the task core needs on users, plus
// the write surface used by registration.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}
