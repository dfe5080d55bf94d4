package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskboard/taskboard-api/internal/core/domain"
)

func renderError(t *testing.T, err error) (int, string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/t1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error envelope is not JSON: %v", err)
	}
	return rec.Code, body.Error
}

func TestErrorHandler_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
		wantMsg  string
	}{
		{domain.ErrTaskNotFound, http.StatusNotFound, "task not found"},
		{domain.ErrVersionConflict, http.StatusConflict, domain.ErrVersionConflict.Error()},
		{domain.ErrAssigneeNotFound, http.StatusNotFound, "assignee not found"},
		{domain.ErrForbidden, http.StatusForbidden, "access forbidden"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{domain.ErrTokenRevoked, http.StatusUnauthorized, "invalid credentials"},
		{domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{domain.ErrUserExists, http.StatusConflict, "user already exists"},
	}
	for _, tc := range cases {
		code, msg := renderError(t, tc.err)
		if code != tc.wantCode {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.wantCode, code)
		}
		if msg != tc.wantMsg {
			t.Fatalf("%v: expected message %q, got %q", tc.err, tc.wantMsg, msg)
		}
	}
}

func TestErrorHandler_WrappedDomainError(t *testing.T) {
	wrapped := fmt.Errorf("%w: version is required", domain.ErrValidation)
	code, msg := renderError(t, wrapped)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if !strings.Contains(msg, "version is required") {
		t.Fatalf("validation detail lost: %q", msg)
	}
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	code, msg := renderError(t, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header"))
	if code != http.StatusUnauthorized || msg != "missing authorization header" {
		t.Fatalf("echo error not passed through: %d %q", code, msg)
	}
}

func TestErrorHandler_UnknownError(t *testing.T) {
	code, msg := renderError(t, errors.New("pgx: connection refused"))
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if msg != "internal server error" {
		t.Fatalf("internal detail leaked: %q", msg)
	}
}
