package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runRBAC(t *testing.T, role string, allowed ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/v1/tasks/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != "" {
		c.Set("role", role)
	}

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	return RBAC(allowed...)(next)(c)
}

func TestRBAC_AllowsListedRole(t *testing.T) {
	if err := runRBAC(t, "admin", "admin"); err != nil {
		t.Fatalf("admin should pass, got %v", err)
	}
	if err := runRBAC(t, "member", "admin", "member"); err != nil {
		t.Fatalf("member should pass when listed, got %v", err)
	}
}

func TestRBAC_ForbidsUnlistedRole(t *testing.T) {
	err := runRBAC(t, "member", "admin")
	assertHTTPStatus(t, err, http.StatusForbidden)
}

func TestRBAC_ForbidsMissingRole(t *testing.T) {
	err := runRBAC(t, "", "admin")
	assertHTTPStatus(t, err, http.StatusForbidden)
}
