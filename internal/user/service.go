package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/validation"
)

type DBLayer interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

type TokenIssuer interface {
	IssuePair(u *models.User) (models.TokenPair, error)
}

type UserService struct {
	DB     DBLayer
	Tokens TokenIssuer
	Logger *logger.Logger
}

func NewUserService(db DBLayer, tokens TokenIssuer, log *logger.Logger) *UserService {
	return &UserService{DB: db, Tokens: tokens, Logger: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates a regular (non-staff) account.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	}
	if err := s.DB.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.Logger.LogSecurity("USER_REGISTERED", fmt.Sprintf("user %d registered", u.ID))
	return u, nil
}

// CreateStaff creates an admin account; used by the bootstrap CLI.
func (s *UserService) CreateStaff(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validation.Struct(models.RegisterRequest{Email: email, Password: password}); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Email: email, PasswordHash: hash, IsStaff: true}
	if err := s.DB.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.Logger.LogSecurity("STAFF_CREATED", fmt.Sprintf("staff user %d created", u.ID))
	return u, nil
}

// Login checks credentials and issues a token pair. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, req models.TokenRequest) (models.TokenPair, error) {
	u, err := s.DB.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return models.TokenPair{}, err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("failed login for %q", req.Email))
		return models.TokenPair{}, fmt.Errorf("no active account found with the given credentials: %w", apperr.ErrUnauthenticated)
	}
	return s.Tokens.IssuePair(u)
}

func (s *UserService) Profile(ctx context.Context, p auth.Principal) (*models.User, error) {
	if err := auth.Authorize(p, auth.ResourceProfile, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.DB.GetUserByID(ctx, p.UserID)
}

// UpdateProfile applies a full (PUT) or partial (PATCH) profile update. A
// full update requires email and password.
func (s *UserService) UpdateProfile(ctx context.Context, p auth.Principal, patch models.ProfilePatch, partial bool) (*models.User, error) {
	if err := auth.Authorize(p, auth.ResourceProfile, auth.ActionWrite); err != nil {
		return nil, err
	}
	u, err := s.DB.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
	}
	if err := validation.Patch(patch, partial); err != nil {
		return nil, err
	}

	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Password != nil {
		if u.PasswordHash, err = hashPassword(*patch.Password); err != nil {
			return nil, err
		}
	}
	if patch.FirstName != nil {
		u.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		u.LastName = strings.TrimSpace(*patch.LastName)
	}

	if err := s.DB.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
