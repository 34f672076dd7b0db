package usecases

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"project_supportbot/internal/entities"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenTTL is how long an operator token stays valid
const TokenTTL = 24 * time.Hour

type AuthUsecase struct {
	admin     *entities.User
	jwtSecret []byte
	now       func() time.Time
}

// NewAuthUsecase hashes the configured operator password once at startup.
// An empty username or password disables login entirely.
func NewAuthUsecase(username, password, secret string) (*AuthUsecase, error) {
	uc := &AuthUsecase{
		jwtSecret: []byte(secret),
		now:       time.Now,
	}
	if username == "" || password == "" {
		return uc, nil
	}
	if secret == "" {
		return nil, errors.New("jwt secret is required when an admin account is configured")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	uc.admin = &entities.User{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         entities.RoleAdmin,
	}
	return uc, nil
}

// Enabled reports whether an operator account exists
func (uc *AuthUsecase) Enabled() bool {
	return uc.admin != nil
}

func (uc *AuthUsecase) Login(username, password string) (string, error) {
	if uc.admin == nil {
		return "", ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(uc.admin.Username)) != 1 {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(uc.admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uc.admin.Username,
		"role": uc.admin.Role,
		"exp":  uc.now().Add(TokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
