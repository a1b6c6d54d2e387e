package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	refreshTokens    map[string]*models.RefreshToken
	lastLoginUpdated bool
	revokedAllFor    []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.userByEmail == nil || m.userByEmail.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByID != nil && m.userByID.ID == id {
		return m.userByID, nil
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func newAuthFixture(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "user-1", Email: "li.wei@example.com", PasswordHash: string(password), Active: true, Role: models.RoleCustomer}}
	svc := newAuthFixture(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "li.wei@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleCustomer, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "user-1", Email: "li.wei@example.com", PasswordHash: string(password), Active: true}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "li.wei@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "user-1", Email: "li.wei@example.com", PasswordHash: string(password), Active: false}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "li.wei@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "li.wei@example.com", PasswordHash: "hash", Active: true, Role: models.RoleCustomer}
	repo := &mockAuthRepo{userByEmail: user, userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt-1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthFixture(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshRejectsExpired(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "li.wei@example.com", Active: true}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"stale": {ID: "rt-1", UserID: user.ID, Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := newAuthFixture(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt-1", UserID: "user-2", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthFixture(repo)

	err := svc.Logout(context.Background(), "token", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-secret"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "user-1", PasswordHash: string(oldHash), Active: true}}
	svc := newAuthFixture(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{OldPassword: "old-secret", NewPassword: "brand-new-secret"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByEmail.PasswordHash)
	assert.Equal(t, []string{"user-1"}, repo.revokedAllFor)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := newAuthFixture(&mockAuthRepo{})
	user := &models.User{ID: "user-1", Email: "li.wei@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newAuthFixture(&mockAuthRepo{})
	other := NewAuthService(&mockAuthRepo{}, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	token, _, err := other.generateAccessToken(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
