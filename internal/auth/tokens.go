package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agora-community/agora_wallet/internal/identity"
)

// ErrInvalidToken covers malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the verified content of an access or refresh token.
type TokenClaims struct {
	UserID   string
	Username string
	Role     string
	Version  int
}

func signToken(user identity.User, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"ver":      user.TokenVersion,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseToken verifies the signature and expiry and extracts the claims.
func ParseToken(tokenStr, secret string) (TokenClaims, error) {
	parsed, err := jwt.Parse(tokenStr, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return TokenClaims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	ver, _ := claims["ver"].(float64)

	return TokenClaims{UserID: sub, Username: username, Role: role, Version: int(ver)}, nil
}
