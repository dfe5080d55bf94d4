package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, username, email, password, role string) (*domain.User, error)
	loginFn    func(ctx context.Context, email, password string) (*ports.TokenPair, *domain.User, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*ports.TokenPair, error)
	logoutFn   func(ctx context.Context, accessToken string) error
}

func (s *stubAuthService) Register(ctx context.Context, username, email, password, role string) (*domain.User, error) {
	return s.registerFn(ctx, username, email, password, role)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.TokenPair, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	return s.refreshFn(ctx, refreshToken)
}

func (s *stubAuthService) Logout(ctx context.Context, accessToken string) error {
	return s.logoutFn(ctx, accessToken)
}

func (s *stubAuthService) VerifyToken(_ context.Context, _ string) (*ports.Claims, error) {
	return nil, domain.ErrInvalidCredentials
}

func (s *stubAuthService) FindUserByID(_ context.Context, _ string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func newAuthTestContext(t *testing.T, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, username, email, _, role string) (*domain.User, error) {
			if username != "alice" || email != "alice@example.com" || role != "member" {
				t.Fatalf("unexpected args: %s %s %s", username, email, role)
			}
			return &domain.User{ID: "u1", Username: username, Email: email, Role: role}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newAuthTestContext(t, "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"longenough","role":"member"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["username"] != "alice" {
		t.Fatalf("unexpected user payload: %+v", resp)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatalf("password hash must never be serialized")
	}
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, _, _, _, _ string) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newAuthTestContext(t, "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"short"}`)
	err := h.Register(c)

	var httpErr *echo.HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, _ := newAuthTestContext(t, "/auth/register", "not-json")
	err := h.Register(c)

	var httpErr *echo.HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, email, password string) (*ports.TokenPair, *domain.User, error) {
			if email != "alice@example.com" || password != "secret" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return &ports.TokenPair{AccessToken: "acc", RefreshToken: "ref"},
				&domain.User{ID: "u1", Username: "alice", Role: "member"}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newAuthTestContext(t, "/auth/login", `{"email":"alice@example.com","password":"secret"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["access_token"] != "acc" || resp["refresh_token"] != "ref" {
		t.Fatalf("tokens missing from response: %+v", resp)
	}
}

func TestAuthHandler_Login_PropagatesInvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, _, _ string) (*ports.TokenPair, *domain.User, error) {
			return nil, nil, domain.ErrInvalidCredentials
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newAuthTestContext(t, "/auth/login", `{"email":"alice@example.com","password":"bad"}`)
	if err := h.Login(c); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials passthrough, got %v", err)
	}
}

func TestAuthHandler_Refresh_Success(t *testing.T) {
	stub := &stubAuthService{
		refreshFn: func(_ context.Context, refreshToken string) (*ports.TokenPair, error) {
			if refreshToken != "old-refresh" {
				t.Fatalf("unexpected token: %s", refreshToken)
			}
			return &ports.TokenPair{AccessToken: "new-acc", RefreshToken: "new-ref"}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newAuthTestContext(t, "/auth/refresh", `{"refresh_token":"old-refresh"}`)
	if err := h.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var revoked string
	stub := &stubAuthService{
		logoutFn: func(_ context.Context, accessToken string) error {
			revoked = accessToken
			return nil
		},
	}
	h := NewAuthHandler(stub)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer the-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if revoked != "the-token" {
		t.Fatalf("token not forwarded: %q", revoked)
	}
}

func TestAuthHandler_Logout_MissingToken(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Logout(c)
	var httpErr *echo.HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
