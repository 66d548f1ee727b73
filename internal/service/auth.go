package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"churn-predictor/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// AuthService issues and checks tokens for the single configured admin.
type AuthService struct {
	username     string
	passwordHash string
	secret       []byte
	ttl          time.Duration
	logger       *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(username, passwordHash, secret string, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: passwordHash,
		secret:       []byte(secret),
		ttl:          ttl,
		logger:       logger,
	}
}

// Login returns a signed token and its expiry for valid credentials.
func (s *AuthService) Login(username, password string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 ||
		!VerifyPassword(s.passwordHash, password) {
		s.logger.Warn("Rejected admin login", zap.String("username", username))
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := time.Now()
	expirationTime := now.Add(s.ttl)
	claims := &models.Claims{
		Username: username,
		Role:     models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		s.logger.Error("Failed to generate JWT token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("Admin logged in", zap.String("username", username))
	return tokenString, expirationTime, nil
}

// ParseToken checks the signature and expiry of a token.
func (s *AuthService) ParseToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// HashPassword encodes password as
// $argon2id$v=19$m=65536,t=1,p=4$BASE64_SALT$BASE64_HASH.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword compares a plaintext password with an encoded hash.
func VerifyPassword(encoded, password string) bool {
	// "", "argon2id", "v=19", "m=65536,t=1,p=4", salt, hash
	sections := strings.Split(encoded, "$")
	if len(sections) != 6 || sections[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(sections[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(sections[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(sections[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
