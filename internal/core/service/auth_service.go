package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
)

// Cache key prefixes for the auth surface. Formats are part of the external
// contract and must not change.
const (
	userKeyPrefix      = "user:"
	userEmailKeyPrefix = "user:email:"
	blacklistKeyPrefix = "blacklist:"
	refreshKeyPrefix   = "refresh_token:"

	userCacheTTL = time.Hour
)

// AuthService issues, refreshes, revokes, and verifies JWT credentials.
type AuthService struct {
	users      ports.UserRepository
	cache      ports.Cache
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        zerolog.Logger
}

func NewAuthService(users ports.UserRepository, cache ports.Cache, jwtSecret string, accessTTL, refreshTTL time.Duration, log zerolog.Logger) *AuthService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:      users,
		cache:      cache,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
	}
}

func (s *AuthService) Register(ctx context.Context, username, email, password, role string) (*domain.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if role == "" {
		role = domain.RoleMember
	}
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.users.Create(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.TokenPair, *domain.User, error) {
	if email == "" || password == "" {
		return nil, nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.cacheUser(ctx, user)
	return pair, user, nil
}

// Refresh rotates the token pair after matching the presented refresh token
// against the one stored for the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	claims, err := s.parseToken(refreshToken, "refresh")
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	stored, err := s.cache.Get(ctx, refreshKeyPrefix+claims.UserID)
	if err != nil || string(stored) != refreshToken {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user)
}

// Logout blacklists the access token for its remaining lifetime and drops the
// stored refresh token so the pair cannot be rotated again.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.parseToken(accessToken, "access")
	if err != nil {
		return domain.ErrInvalidCredentials
	}

	remaining := time.Until(claims.ExpiresAt)
	if remaining > 0 {
		if err := s.cache.Set(ctx, blacklistKeyPrefix+accessToken, []byte("1"), remaining); err != nil {
			return fmt.Errorf("blacklist token: %w", err)
		}
	}
	if err := s.cache.Delete(ctx, refreshKeyPrefix+claims.UserID); err != nil {
		s.log.Warn().Err(err).Str("user_id", claims.UserID).Msg("failed to drop refresh token")
	}
	return nil
}

// VerifyToken checks signature, expiry, and the blacklist. A cache failure on
// the blacklist check is logged and treated as "not revoked": availability
// over strict revocation.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*ports.Claims, error) {
	claims, err := s.parseToken(token, "access")
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if _, err := s.cache.Get(ctx, blacklistKeyPrefix+token); err == nil {
		return nil, domain.ErrTokenRevoked
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		s.log.Warn().Err(err).Msg("blacklist check failed, treating token as valid")
	}
	return claims, nil
}

// FindUserByID resolves a user, read-through cached under user:{id}.
func (s *AuthService) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if data, err := s.cache.Get(ctx, userKeyPrefix+id); err == nil {
		var u domain.User
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheUser(ctx, user)
	return user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*ports.TokenPair, error) {
	access, err := s.signToken(user, "access", s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user, "refresh", s.refreshTTL)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, refreshKeyPrefix+user.ID, []byte(refresh), s.refreshTTL); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) signToken(user *domain.User, tokenType string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"type": tokenType,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) parseToken(token, wantType string) (*ports.Claims, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return nil, domain.ErrInvalidCredentials
	}

	typ, _ := claims["type"].(string)
	if typ != wantType {
		return nil, domain.ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return nil, domain.ErrInvalidCredentials
	}

	out := &ports.Claims{UserID: sub, Role: role}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// cacheUser stores the user under both id and email keys, best-effort.
func (s *AuthService) cacheUser(ctx context.Context, user *domain.User) {
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, userKeyPrefix+user.ID, data, userCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to cache user")
		return
	}
	_ = s.cache.Set(ctx, userEmailKeyPrefix+user.Email, data, userCacheTTL)
}
