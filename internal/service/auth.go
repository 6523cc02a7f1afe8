package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

var validate = validator.New()

// normalizeEmail gives one spelling per mailbox, so lookups and the unique
// index agree on what a duplicate is.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (string, models.User, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
	Profile(ctx context.Context, userID int64) (models.User, error)
}

type authService struct {
	authDB    db.UserDB
	log       pkg.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(authDB db.UserDB, logger pkg.Logger, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		authDB:    authDB,
		log:       logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (string, models.User, error) {
	email := normalizeEmail(in.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return "", models.User{}, invalidInput("invalid email")
	}
	if len(in.Password) < minPasswordLen {
		return "", models.User{}, invalidInput("password must be at least %d characters", minPasswordLen)
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleFarmer {
		return "", models.User{}, invalidInput("role must be %q or %q", models.RoleUser, models.RoleFarmer)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	u := models.User{Email: email, PasswordHash: string(hash), Name: strings.TrimSpace(in.Name), Role: role}
	if err := s.authDB.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return "", models.User{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		s.log.Error("failed to create user", zap.String("email", email), zap.Error(err))
		return "", models.User{}, err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", models.User{}, err
	}
	s.log.Info("User registered", zap.Int64("userID", u.ID), zap.String("role", u.Role))
	return token, u, nil
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	u, err := s.authDB.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.log.Warn("invalid credentials", zap.String("email", email))
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("invalid credentials: password mismatch", zap.String("email", email))
		return "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", err
	}
	s.log.Info("User authenticated", zap.Int64("userID", u.ID))
	return token, nil
}

func (s *authService) Profile(ctx context.Context, userID int64) (models.User, error) {
	u, err := s.authDB.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, fromDB(err)
	}
	return u, nil
}

func (s *authService) issueToken(u models.User) (string, error) {
	if s.jwtSecret == "" {
		s.log.Error("auth: empty JWT secret key")
		return "", errors.New("could not generate token: empty secret key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": u.ID,
		"role":    u.Role,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		s.log.Error("failed to generate token", zap.Int64("userID", u.ID), zap.Error(err))
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return tokenString, nil
}
