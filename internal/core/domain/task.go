package domain

import (
	"errors"
	"time"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

// TaskPriority represents how urgent a task is.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

var ErrTaskNotFound = errors.New("task not found")
var ErrVersionConflict = errors.New("task was modified by another user, refresh and retry")
var ErrAssigneeNotFound = errors.New("assignee not found")
var ErrValidation = errors.New("invalid input")
var ErrForbidden = errors.New("access forbidden")

// ValidStatus reports whether s is one of the four workflow states.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is a recognised priority.
func ValidPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is the core aggregate root.
//
// Version increments on every successful mutation and backs the optimistic
// concurrency check: an update only commits when the caller's version matches
// the stored one. DeletedAt non-nil marks a soft-deleted row, excluded from
// all normal reads.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	AssigneeID  *string      `json:"assignee_id,omitempty"`
	CreatorID   string       `json:"creator_id"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DeletedAt   *time.Time   `json:"-"`
	Version     int64        `json:"version"`

	// Display data joined from the users table, not part of the task row.
	Creator  *UserRef `json:"creator,omitempty"`
	Assignee *UserRef `json:"assignee,omitempty"`
}

// UserRef is the lightweight user view embedded in task responses.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// IsOverdue reports whether the task has passed its due date without being done.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusDone
}
