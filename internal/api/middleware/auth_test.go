package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/taskboard-api/internal/core/ports"
)

type stubVerifier struct {
	claims *ports.Claims
	err    error
}

func (v *stubVerifier) VerifyToken(_ context.Context, _ string) (*ports.Claims, error) {
	return v.claims, v.err
}

func runAuth(t *testing.T, verifier TokenVerifier, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err := Auth(verifier)(next)(c)
	return c, err
}

func TestAuth_ValidToken(t *testing.T) {
	verifier := &stubVerifier{claims: &ports.Claims{UserID: "u1", Role: "member"}}

	c, err := runAuth(t, verifier, "Bearer good-token")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got := c.Get("user_id"); got != "u1" {
		t.Fatalf("user_id not injected, got %v", got)
	}
	if got := c.Get("role"); got != "member" {
		t.Fatalf("role not injected, got %v", got)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	_, err := runAuth(t, &stubVerifier{}, "")
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestAuth_MalformedHeader(t *testing.T) {
	for _, header := range []string{"good-token", "Basic abc"} {
		_, err := runAuth(t, &stubVerifier{}, header)
		assertHTTPStatus(t, err, http.StatusUnauthorized)
	}
}

func TestAuth_CaseInsensitiveScheme(t *testing.T) {
	verifier := &stubVerifier{claims: &ports.Claims{UserID: "u1", Role: "member"}}
	if _, err := runAuth(t, verifier, "bearer good-token"); err != nil {
		t.Fatalf("lowercase scheme must be accepted, got %v", err)
	}
}

func TestAuth_RejectedToken(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("expired")}
	_, err := runAuth(t, verifier, "Bearer bad-token")
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if httpErr.Code != want {
		t.Fatalf("expected status %d, got %d", want, httpErr.Code)
	}
}
