package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/database"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/user"
	userdb "train-station/internal/user/db"
)

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) IssuePair(u *models.User) (models.TokenPair, error) {
	args := m.Called(u)
	return args.Get(0).(models.TokenPair), args.Error(1)
}

func setupService(t *testing.T) (*user.UserService, *MockTokenIssuer) {
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens := &MockTokenIssuer{}
	return user.NewUserService(&userdb.DB{Bun: db}, tokens, logger.NewNopLogger()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := setupService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, models.RegisterRequest{Email: " Ann@Example.com ", Password: "secret1", FirstName: "Ann"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.False(t, u.IsStaff)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	tokens.On("IssuePair", mock.MatchedBy(func(got *models.User) bool { return got.ID == u.ID })).
		Return(models.TokenPair{Access: "a", Refresh: "r"}, nil).Once()

	pair, err := svc.Login(ctx, models.TokenRequest{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "a", pair.Access)
	tokens.AssertExpectations(t)

	_, err = svc.Login(ctx, models.TokenRequest{Email: "ann@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = svc.Login(ctx, models.TokenRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Email: "not-an-email", Password: "abc"})
	fields := apperr.Fields(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")

	_, err = svc.Register(ctx, models.RegisterRequest{Email: "dup@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, models.RegisterRequest{Email: "dup@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.Fields(err), "email")
}

func TestProfile(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Profile(ctx, auth.Principal{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	u, err := svc.Register(ctx, models.RegisterRequest{Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	p := auth.Principal{UserID: u.ID}

	name := "Bob"
	updated, err := svc.UpdateProfile(ctx, p, models.ProfilePatch{FirstName: &name}, true)
	require.NoError(t, err)
	assert.Equal(t, "Bob", updated.FirstName)
	assert.Equal(t, "bob@example.com", updated.Email)

	_, err = svc.UpdateProfile(ctx, p, models.ProfilePatch{FirstName: &name}, false)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	bad, short := "bob-at-example", "abc"
	_, err = svc.UpdateProfile(ctx, p, models.ProfilePatch{Email: &bad, Password: &short}, true)
	fields := apperr.Fields(err)
	assert.Equal(t, []string{"enter a valid email address"}, fields["email"])
	assert.Contains(t, fields, "password")

	got, err := svc.Profile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.FirstName)
}

func TestCreateStaff(t *testing.T) {
	svc, _ := setupService(t)
	u, err := svc.CreateStaff(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
}
