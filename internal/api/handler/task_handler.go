package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/taskboard-api/internal/core/ports"
)

// TaskHandler handles HTTP requests for task operations.
type TaskHandler struct {
	service ports.TaskService
}

func NewTaskHandler(service ports.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// Create handles POST /v1/tasks.
//
// @Summary      Create a new task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createTaskRequest  true  "Task details"
// @Success      201   {object}  ports.TaskView
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	task, err := h.service.CreateTask(c.Request().Context(), ports.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	}, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, task)
}

// List handles GET /v1/tasks.
//
// @Summary      List tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        page       query  int     false  "Page (1-based)"
// @Param        limit      query  int     false  "Page size (max 100)"
// @Param        status     query  string  false  "Filter by status"
// @Param        priority   query  string  false  "Filter by priority"
// @Param        assignee   query  string  false  "Filter by assignee id"
// @Param        creator    query  string  false  "Filter by creator id"
// @Param        search     query  string  false  "Free-text search over title/description"
// @Param        sort_by    query  string  false  "Sort column"
// @Param        sort_order query  string  false  "asc or desc"
// @Success      200  {object}  ports.ListTasksResult
// @Router       /v1/tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	var req listTasksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	result, err := h.service.ListTasks(c.Request().Context(), ports.ListTasksFilter{
		Status:     req.Status,
		Priority:   req.Priority,
		AssigneeID: req.Assignee,
		CreatorID:  req.Creator,
		Search:     req.Search,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
		Page:       req.Page,
		Limit:      req.Limit,
	}, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Get handles GET /v1/tasks/:id.
//
// @Summary      Get a task by id
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Task id"
// @Success      200  {object}  ports.TaskView
// @Failure      404  {object}  errorResponse
// @Router       /v1/tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	task, err := h.service.GetTask(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// Update handles PATCH /v1/tasks/:id.
//
// @Summary      Update a task under optimistic concurrency
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true  "Task id"
// @Param        body  body  updateTaskRequest  true  "Patch, including the observed version"
// @Success      200  {object}  ports.TaskView
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/tasks/{id} [patch]
func (h *TaskHandler) Update(c echo.Context) error {
	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	task, err := h.service.UpdateTask(c.Request().Context(), c.Param("id"), ports.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID.Patch(),
		DueDate:     req.DueDate.Patch(),
		Version:     req.Version,
	}, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// Assign handles PATCH /v1/tasks/:id/assign.
//
// @Summary      Assign or unassign a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true  "Task id"
// @Param        body  body  assignTaskRequest  true  "New assignee (null to unassign)"
// @Success      200  {object}  ports.TaskView
// @Failure      404  {object}  errorResponse
// @Router       /v1/tasks/{id}/assign [patch]
func (h *TaskHandler) Assign(c echo.Context) error {
	var req assignTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	task, err := h.service.AssignTask(c.Request().Context(), c.Param("id"), req.AssigneeID, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// Delete handles DELETE /v1/tasks/:id (soft delete).
//
// @Summary      Soft-delete a task
// @Tags         tasks
// @Security     BearerAuth
// @Param        id  path  string  true  "Task id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.service.RemoveTask(c.Request().Context(), c.Param("id"), actor); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats handles GET /v1/tasks/stats.
//
// @Summary      Aggregate task counts
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.TaskStats
// @Router       /v1/tasks/stats [get]
func (h *TaskHandler) Stats(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	stats, err := h.service.GetStats(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
