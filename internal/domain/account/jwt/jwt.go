package jwt

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"time"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Leeway: допуск по времени при проверке exp/iat. Токен принимается ещё
// Leeway после истечения, поэтому отзыв должен жить не меньше exp+Leeway.
const Leeway = 30 * time.Second

type AccessClaims struct {
	jwt.RegisteredClaims
	Type     string `json:"typ"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

type JWTUtil interface {
	GenerateAccessToken(userID uuid.UUID, username, email string) (token string, exp time.Time, jti string, err error)
	GenerateRefreshToken(userID uuid.UUID) (token string, exp time.Time, jti string, err error)
	ValidateAccessToken(token string) (claims AccessClaims, err error)
	ValidateRefreshToken(token string) (claims RefreshClaims, err error)
}
