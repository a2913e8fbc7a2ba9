package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned for tokens that fail verification.
var ErrInvalidSession = errors.New("invalid session token")

type adminClaims struct {
	Email string `json:"email"`
	// IssuedAtMs refines the second-precision iat claim.
	IssuedAtMs int64 `json:"iat_ms,omitempty"`
	jwt.RegisteredClaims
}

// AdminSession is the verified content of an admin session token.
type AdminSession struct {
	Email    string
	IssuedAt time.Time
}

// GenerateToken creates a signed admin session token issued at the given time.
func GenerateToken(secret, email string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := &adminClaims{
		Email:      email,
		IssuedAtMs: issuedAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the admin it was issued to.
func ParseToken(secret, tokenString string) (AdminSession, error) {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return AdminSession{}, errors.Join(ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid || claims.Email == "" || claims.IssuedAt == nil {
		return AdminSession{}, ErrInvalidSession
	}

	issuedAt := claims.IssuedAt.Time
	if claims.IssuedAtMs > 0 {
		issuedAt = time.UnixMilli(claims.IssuedAtMs)
	}
	return AdminSession{Email: claims.Email, IssuedAt: issuedAt}, nil
}
