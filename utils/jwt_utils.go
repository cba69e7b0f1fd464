package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by dashboard session tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

const DashboardRole = "dashboard"

// DashboardCookie carries the dashboard session token.
const DashboardCookie = "jwt_token"

var ErrEmptySecret = errors.New("jwt secret is not configured")

// GenerateJWT issues a dashboard token for subject valid for ttl.
func GenerateJWT(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	now := time.Now()

	claims := &Claims{
		Role: DashboardRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "abfeedback-api",
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT parses and validates a token string.
func ValidateJWT(secret []byte, tokenString string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Role != DashboardRole {
		return nil, fmt.Errorf("token role %q is not allowed", claims.Role)
	}

	return claims, nil
}
