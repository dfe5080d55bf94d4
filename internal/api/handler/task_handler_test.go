package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
)

// stubTaskService records the last call and returns canned results.
type stubTaskService struct {
	create struct {
		input ports.CreateTaskInput
		actor ports.Actor
	}
	update struct {
		id    string
		patch ports.UpdateTaskInput
	}
	view *ports.TaskView
	err  error
}

func (s *stubTaskService) CreateTask(_ context.Context, input ports.CreateTaskInput, actor ports.Actor) (*ports.TaskView, error) {
	s.create.input = input
	s.create.actor = actor
	return s.view, s.err
}

func (s *stubTaskService) ListTasks(_ context.Context, _ ports.ListTasksFilter, _ ports.Actor) (*ports.ListTasksResult, error) {
	return &ports.ListTasksResult{}, s.err
}

func (s *stubTaskService) GetTask(_ context.Context, _ string, _ ports.Actor) (*ports.TaskView, error) {
	return s.view, s.err
}

func (s *stubTaskService) UpdateTask(_ context.Context, id string, patch ports.UpdateTaskInput, _ ports.Actor) (*ports.TaskView, error) {
	s.update.id = id
	s.update.patch = patch
	return s.view, s.err
}

func (s *stubTaskService) AssignTask(_ context.Context, _ string, _ *string, _ ports.Actor) (*ports.TaskView, error) {
	return s.view, s.err
}

func (s *stubTaskService) RemoveTask(_ context.Context, _ string, _ ports.Actor) error {
	return s.err
}

func (s *stubTaskService) GetStats(_ context.Context, _ ports.Actor) (*ports.TaskStats, error) {
	return &ports.TaskStats{}, s.err
}

func newTaskTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u1")
	c.Set("role", domain.RoleMember)
	return c, rec
}

func TestTaskHandler_Create(t *testing.T) {
	svc := &stubTaskService{view: &ports.TaskView{Task: domain.Task{ID: "t1", Title: "new"}}}
	h := NewTaskHandler(svc)

	c, rec := newTaskTestContext(t, http.MethodPost, "/v1/tasks", `{"title":"new","priority":"high"}`)
	if err := h.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.create.input.Title != "new" || svc.create.input.Priority != "high" {
		t.Fatalf("input not forwarded: %+v", svc.create.input)
	}
	if svc.create.actor.UserID != "u1" {
		t.Fatalf("actor not forwarded: %+v", svc.create.actor)
	}
}

func TestTaskHandler_Create_ValidationFailure(t *testing.T) {
	h := NewTaskHandler(&stubTaskService{})

	c, _ := newTaskTestContext(t, http.MethodPost, "/v1/tasks", `{"priority":"high"}`)
	err := h.Create(c)

	var httpErr *echo.HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestTaskHandler_Create_BadPriority(t *testing.T) {
	h := NewTaskHandler(&stubTaskService{})

	c, _ := newTaskTestContext(t, http.MethodPost, "/v1/tasks", `{"title":"x","priority":"asap"}`)
	err := h.Create(c)

	var httpErr *echo.HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestTaskHandler_Update_RequiresVersion(t *testing.T) {
	h := NewTaskHandler(&stubTaskService{})

	c, _ := newTaskTestContext(t, http.MethodPatch, "/v1/tasks/t1", `{"title":"x"}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")

	err := h.Update(c)
	var httpErr *echo.HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing version must be rejected, got %v", err)
	}
}

func TestTaskHandler_Update_NullVsAbsentAssignee(t *testing.T) {
	svc := &stubTaskService{view: &ports.TaskView{Task: domain.Task{ID: "t1"}}}
	h := NewTaskHandler(svc)

	// Absent assignee_id: the patch leaves it untouched.
	c, _ := newTaskTestContext(t, http.MethodPatch, "/v1/tasks/t1", `{"title":"x","version":3}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if svc.update.patch.AssigneeID != nil {
		t.Fatalf("absent field must map to nil")
	}
	if svc.update.patch.Version != 3 {
		t.Fatalf("version not forwarded, got %d", svc.update.patch.Version)
	}

	// Explicit null: the patch unassigns.
	c, _ = newTaskTestContext(t, http.MethodPatch, "/v1/tasks/t1", `{"assignee_id":null,"version":3}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if svc.update.patch.AssigneeID == nil || *svc.update.patch.AssigneeID != nil {
		t.Fatalf("null field must map to pointer-to-nil")
	}

	// A value: the patch assigns.
	c, _ = newTaskTestContext(t, http.MethodPatch, "/v1/tasks/t1", `{"assignee_id":"bob","version":3}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	got := svc.update.patch.AssigneeID
	if got == nil || *got == nil || **got != "bob" {
		t.Fatalf("value field not forwarded")
	}
}

func TestTaskHandler_Update_PropagatesConflict(t *testing.T) {
	h := NewTaskHandler(&stubTaskService{err: domain.ErrVersionConflict})

	c, _ := newTaskTestContext(t, http.MethodPatch, "/v1/tasks/t1", `{"title":"x","version":1}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")

	// The handler passes domain errors through; the central error handler maps
	// them to status codes.
	if err := h.Update(c); err != domain.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict passthrough, got %v", err)
	}
}

func TestTaskHandler_MissingClaims(t *testing.T) {
	h := NewTaskHandler(&stubTaskService{})

	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/t1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Get(c)
	var httpErr *echo.HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %v", err)
	}
}

func asHTTPError(err error, target **echo.HTTPError) bool {
	he, ok := err.(*echo.HTTPError)
	if ok {
		*target = he
	}
	return ok
}
