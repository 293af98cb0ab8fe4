package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service signs and verifies the identify tokens that the web tier hands to
// browser clients before they open a realtime connection. The dispatcher only
// verifies; Sign exists for the web tier side and for tests.
type Service struct {
	secret string
	ttl    time.Duration
}

func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: secret, ttl: ttl}
}

// Sign issues an HS256 token whose subject is the user identity.
func (s *Service) Sign(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Verify parses an identify token and returns the user identity it carries.
func (s *Service) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return "", errors.New("token carries no user identity")
	}

	return claims.Subject, nil
}
