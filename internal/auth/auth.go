package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/servicecenter/api/internal/models"
	apperrors "github.com/servicecenter/api/pkg/errors"
)

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Claims is the JWT payload: subject username plus role and city scope
type Claims struct {
	Role   models.Role `json:"role"`
	CityID int64       `json:"city_id"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates access tokens signed with a shared
// secret (HS256)
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed access token for the user
func (m *TokenManager) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:   user.Role,
		CityID: user.CityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates a token's signature and expiry and returns its claims.
// Any failure maps to Unauthenticated.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, apperrors.NewUnauthenticatedError("Could not validate credentials")
	}
	return claims, nil
}
