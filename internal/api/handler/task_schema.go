package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type createTaskRequest struct {
	Title       string     `json:"title"       validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Priority    string     `json:"priority"    validate:"omitempty,oneof=low medium high urgent"`
	AssigneeID  *string    `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// updateTaskRequest is the PATCH body. Version is the task version the client
// last observed; it is required and backs the optimistic concurrency check.
// jsonField distinguishes "absent" from "explicitly null" for assignee_id and
// due_date, so a client can unassign a task or clear its due date.
type updateTaskRequest struct {
	Title       *string              `json:"title"       validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description" validate:"omitempty,max=2000"`
	Status      *string              `json:"status"      validate:"omitempty,oneof=todo in_progress review done"`
	Priority    *string              `json:"priority"    validate:"omitempty,oneof=low medium high urgent"`
	AssigneeID  jsonField[string]    `json:"assignee_id"`
	DueDate     jsonField[time.Time] `json:"due_date"`
	Version     int64                `json:"version"     validate:"required,gt=0"`
}

type assignTaskRequest struct {
	AssigneeID *string `json:"assignee_id"` // null unassigns
}

type listTasksRequest struct {
	Page      int    `query:"page"`
	Limit     int    `query:"limit"`
	Status    string `query:"status"    validate:"omitempty,oneof=todo in_progress review done"`
	Priority  string `query:"priority"  validate:"omitempty,oneof=low medium high urgent"`
	Assignee  string `query:"assignee"`
	Creator   string `query:"creator"`
	Search    string `query:"search"    validate:"omitempty,max=200"`
	SortBy    string `query:"sort_by"`
	SortOrder string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
}
