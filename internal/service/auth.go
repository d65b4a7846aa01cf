package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"

	"momoguard/internal/models"
)

var ( // Define custom errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidHash        = errors.New("invalid password hash format")
)

const (
	tokenTTL  = 24 * time.Hour
	adminRole = "admin"

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

type AuthService interface {
	Login(username, password string) (string, time.Time, error) // Returns JWT token, expiration time, and error
}

type authService struct {
	username     string
	passwordHash string
	jwtSecret    []byte
	logger       *zap.Logger
	now          func() time.Time
}

// NewAuthService creates the admin authenticator. passwordHash is an argon2id
// string produced by HashPassword.
func NewAuthService(username, passwordHash string, jwtSecret []byte, logger *zap.Logger) AuthService {
	return &authService{
		username:     username,
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *authService) Login(username, password string) (string, time.Time, error) {
	if s.passwordHash == "" || username != s.username {
		return "", time.Time{}, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(s.passwordHash, password)
	if err != nil {
		s.logger.Error("Stored admin password hash is unusable", zap.Error(err))
		return "", time.Time{}, ErrInvalidCredentials
	}
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expirationTime := now.Add(tokenTTL)
	claims := &models.Claims{
		Username: username,
		Role:     adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("Failed to generate JWT token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in successfully.", zap.String("username", username))
	return tokenString, expirationTime, nil
}

// HashPassword uses Argon2id to hash the password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$BASE64_SALT$BASE64_HASH
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, argonMemory, argonTime, argonThreads, encodedSalt, encodedHash), nil
}

// VerifyPassword compares a plaintext password with a hash from HashPassword.
func VerifyPassword(hashedPassword, password string) (bool, error) {
	// ["", "argon2id", "v=19", "m=65536,t=1,p=4", "salt", "hash"]
	sections := strings.Split(hashedPassword, "$")
	if len(sections) != 6 || sections[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(sections[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(sections[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(sections[5])
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}

	actual := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}
