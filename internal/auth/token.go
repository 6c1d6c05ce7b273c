package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"train-station/internal/apperr"
	"train-station/internal/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var errInvalidToken = fmt.Errorf("token is invalid or expired: %w", apperr.ErrUnauthenticated)

type Claims struct {
	UserID    int64  `json:"user_id"`
	IsStaff   bool   `json:"is_staff"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// RevocationStore remembers revoked refresh tokens until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// UserLookup loads the current state of an account when a token is
// refreshed.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// TokenManager issues and verifies HS256 access/refresh token pairs.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    RevocationStore
	users      UserLookup
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, revoked RevocationStore, users UserLookup) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoked:    revoked,
		users:      users,
		now:        time.Now,
	}
}

func (m *TokenManager) IssuePair(u *models.User) (models.TokenPair, error) {
	access, err := m.sign(u.ID, u.IsStaff, TokenTypeAccess, m.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := m.sign(u.ID, u.IsStaff, TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) sign(userID int64, isStaff bool, tokenType string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID,
		IsStaff:   isStaff,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (m *TokenManager) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, errInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, errInvalidToken
	}
	return claims, nil
}

// ParseAccess verifies an access token and returns its principal.
func (m *TokenManager) ParseAccess(raw string) (Principal, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return Principal{}, err
	}
	if claims.TokenType != TokenTypeAccess {
		return Principal{}, fmt.Errorf("%s token used as access token: %w", claims.TokenType, apperr.ErrUnauthenticated)
	}
	return Principal{UserID: claims.UserID, IsStaff: claims.IsStaff}, nil
}

func (m *TokenManager) parseRefresh(ctx context.Context, raw string) (*Claims, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, fmt.Errorf("%s token used as refresh token: %w", claims.TokenType, apperr.ErrUnauthenticated)
	}
	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("token is blacklisted: %w", apperr.ErrUnauthenticated)
	}
	return claims, nil
}

// Refresh exchanges a live refresh token for a new access token. The staff
// flag is read from the account, not from the refresh token.
func (m *TokenManager) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := m.parseRefresh(ctx, refresh)
	if err != nil {
		return "", err
	}
	u, err := m.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("user %d no longer exists: %w", claims.UserID, apperr.ErrUnauthenticated)
	}
	if err != nil {
		return "", fmt.Errorf("load user %d: %w", claims.UserID, err)
	}
	return m.sign(u.ID, u.IsStaff, TokenTypeAccess, m.accessTTL)
}

// Verify checks any token issued by this manager.
func (m *TokenManager) Verify(ctx context.Context, raw string) error {
	claims, err := m.parse(raw)
	if err != nil {
		return err
	}
	if claims.TokenType == TokenTypeRefresh {
		_, err = m.parseRefresh(ctx, raw)
	}
	return err
}

// Blacklist revokes a refresh token for the rest of its lifetime.
func (m *TokenManager) Blacklist(ctx context.Context, refresh string) error {
	claims, err := m.parseRefresh(ctx, refresh)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revoked.Revoke(ctx, claims.ID, ttl)
}

// ExtractTokenFromRequest extracts a bearer token from the Authorization
// header. An absent header yields an empty token and no error.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}
	return parts[1], nil
}
