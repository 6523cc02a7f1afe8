package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"farm-market/internal/db"
	"farm-market/internal/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserDB struct {
	CreateUserFunc     func(u *models.User) error
	GetUserByEmailFunc func(email string) (models.User, error)
	GetUserByIDFunc    func(id int64) (models.User, error)
}

func (m *mockUserDB) CreateUser(_ context.Context, u *models.User) error {
	return m.CreateUserFunc(u)
}

func (m *mockUserDB) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	return m.GetUserByEmailFunc(email)
}

func (m *mockUserDB) GetUserByID(_ context.Context, id int64) (models.User, error) {
	return m.GetUserByIDFunc(id)
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func parseClaims(t *testing.T, token, secret string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	return claims
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	mockDB := &mockUserDB{
		GetUserByEmailFunc: func(email string) (models.User, error) {
			return models.User{ID: 1, Email: email, PasswordHash: hashed(t, "secret-pass"), Role: models.RoleFarmer}, nil
		},
	}
	authSvc := NewAuthService(mockDB, testLogger(), "jwtSecret", time.Hour)

	token, err := authSvc.Authenticate(testCtx, "farmer@example.com", "secret-pass")
	require.NoError(t, err)

	claims := parseClaims(t, token, "jwtSecret")
	assert.Equal(t, float64(1), claims["user_id"])
	assert.Equal(t, models.RoleFarmer, claims["role"])
	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	assert.Greater(t, exp, float64(time.Now().Unix()))
}

func TestAuthService_Authenticate_UserNotFound(t *testing.T) {
	mockDB := &mockUserDB{
		GetUserByEmailFunc: func(email string) (models.User, error) {
			return models.User{}, fmt.Errorf("get user: %w", db.ErrNotFound)
		},
	}
	authSvc := NewAuthService(mockDB, testLogger(), "jwtSecret", time.Hour)

	token, err := authSvc.Authenticate(testCtx, "nobody@example.com", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, token)
}

func TestAuthService_Authenticate_WrongPassword(t *testing.T) {
	mockDB := &mockUserDB{
		GetUserByEmailFunc: func(email string) (models.User, error) {
			return models.User{ID: 2, PasswordHash: hashed(t, "real-pass"), Role: models.RoleUser}, nil
		},
	}
	authSvc := NewAuthService(mockDB, testLogger(), "jwtSecret", time.Hour)

	token, err := authSvc.Authenticate(testCtx, "someone@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, token)
}

func TestAuthService_Authenticate_EmptySecret(t *testing.T) {
	mockDB := &mockUserDB{
		GetUserByEmailFunc: func(email string) (models.User, error) {
			return models.User{ID: 1, PasswordHash: hashed(t, "secret-pass")}, nil
		},
	}
	authSvc := NewAuthService(mockDB, testLogger(), "", time.Hour)

	token, err := authSvc.Authenticate(testCtx, "a@example.com", "secret-pass")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not generate token: empty secret")
	assert.Empty(t, token)
}

func TestAuthService_Register(t *testing.T) {
	var stored models.User
	mockDB := &mockUserDB{
		CreateUserFunc: func(u *models.User) error {
			u.ID = 10
			stored = *u
			return nil
		},
	}
	authSvc := NewAuthService(mockDB, testLogger(), "jwtSecret", time.Hour)

	token, u, err := authSvc.Register(testCtx, RegisterInput{Email: " New@Example.com ", Password: "long-enough", Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.ID)
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("long-enough")))
	assert.Equal(t, float64(10), parseClaims(t, token, "jwtSecret")["user_id"])
}

func TestAuthService_Register_Rejects(t *testing.T) {
	mockDB := &mockUserDB{
		CreateUserFunc: func(u *models.User) error {
			return fmt.Errorf("create user: %w", db.ErrDuplicate)
		},
	}
	authSvc := NewAuthService(mockDB, testLogger(), "jwtSecret", time.Hour)

	tests := []struct {
		name   string
		in     RegisterInput
		expect error
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "long-enough"}, ErrInvalidInput},
		{"short password", RegisterInput{Email: "a@example.com", Password: "short"}, ErrInvalidInput},
		{"admin role", RegisterInput{Email: "a@example.com", Password: "long-enough", Role: models.RoleAdmin}, ErrInvalidInput},
		{"duplicate", RegisterInput{Email: "a@example.com", Password: "long-enough"}, ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := authSvc.Register(testCtx, tt.in)
			assert.ErrorIs(t, err, tt.expect)
		})
	}
}

func TestAuthService_Authenticate_NormalizesEmail(t *testing.T) {
	var looked string
	mockDB := &mockUserDB{
		GetUserByEmailFunc: func(email string) (models.User, error) {
			looked = email
			return models.User{ID: 3, Email: email, PasswordHash: hashed(t, "secret-pass"), Role: models.RoleUser}, nil
		},
	}
	authSvc := NewAuthService(mockDB, testLogger(), "jwtSecret", time.Hour)

	_, err := authSvc.Authenticate(testCtx, "  Mixed@Example.COM ", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", looked)
}
