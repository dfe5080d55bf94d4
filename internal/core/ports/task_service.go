package ports

import (
	"context"
	"time"

	"github.com/taskboard/taskboard-api/internal/core/domain"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// CreateTaskInput carries all data needed to create a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string  // defaults to medium when empty
	AssigneeID  *string // optional; must resolve to an existing user
	DueDate     *time.Time
}

// UpdateTaskInput is the patch applied by UpdateTask. Version is the task
// version the client last observed and is mandatory: a mismatch fails with
// domain.ErrVersionConflict and makes no change.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	AssigneeID  **string // outer nil = untouched, inner nil = unassign
	DueDate     **time.Time
	Version     int64
}

// TaskView is a task enriched with derived display fields.
type TaskView struct {
	domain.Task
	IsOverdue bool `json:"is_overdue"`
}

// Pagination describes the page of a list result.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ListTasksResult is returned by ListTasks.
type ListTasksResult struct {
	Tasks      []TaskView `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// TaskService defines the use-case operations of the task mutation core.
type TaskService interface {
	CreateTask(ctx context.Context, input CreateTaskInput, actor Actor) (*TaskView, error)
	ListTasks(ctx context.Context, filter ListTasksFilter, actor Actor) (*ListTasksResult, error)
	GetTask(ctx context.Context, id string, actor Actor) (*TaskView, error)
	UpdateTask(ctx context.Context, id string, patch UpdateTaskInput, actor Actor) (*TaskView, error)
	AssignTask(ctx context.Context, id string, assigneeID *string, actor Actor) (*TaskView, error)
	RemoveTask(ctx context.Context, id string, actor Actor) error
	GetStats(ctx context.Context, actor Actor) (*TaskStats, error)
}
