package ports

import (
	"context"
	"time"

	"github.com/taskboard/taskboard-api/internal/core/domain"
)

// TokenPair is the access/refresh token set issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// AuthService issues and verifies credentials and resolves users. VerifyToken
// and FindUserByID are the narrow contracts the realtime handshake consumes.
type AuthService interface {
	Register(ctx context.Context, username, email, password, role string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, *domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	// Logout blacklists the access token for its remaining lifetime and drops
	// the stored refresh token.
	Logout(ctx context.Context, accessToken string) error
	// VerifyToken checks signature, expiry, and the blacklist.
	VerifyToken(ctx context.Context, token string) (*Claims, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
}
