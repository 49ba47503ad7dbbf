package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/config"
	"planner/backend/internal/models"
	"planner/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	LoginUser(ctx context.Context, username, password string) (*models.User, error)
	GenerateToken(user *models.User) (string, time.Time, error)
}

type AuthServiceImpl struct {
	users *repositories.UserRepository
	cfg   config.AuthConfig
	now   func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

func NewAuthService(users *repositories.UserRepository, cfg config.AuthConfig) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, cfg: cfg, now: time.Now}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

// LoginUser returns ErrUnauthorized for an unknown user and a wrong password alike.
func (s *AuthServiceImpl) LoginUser(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}

// GenerateToken signs an HS256 access token carrying the numeric user id.
func (s *AuthServiceImpl) GenerateToken(user *models.User) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTokenTTL)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"user_id":  user.ID,
		"username": user.Username,
		"iss":      s.cfg.Issuer,
		"iat":      now.Unix(),
		"exp":      expiresAt.Unix(),
		"jti":      jti.String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}
