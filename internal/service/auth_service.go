package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// Domain errors for auth flows.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptyUserID  = errors.New("user id is empty")
	ErrNoSigningKey = errors.New("jwt signing key is not configured")
)

// AuthService issues and verifies the bearer tokens of the HTTP API. Tokens
// carry the coordination user id in the subject claim.
type AuthService struct {
	signingKey []byte
	now        func() time.Time
}

func NewAuthService(signingKey string) *AuthService {
	return &AuthService{signingKey: []byte(signingKey), now: time.Now}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken returns a signed token for userID valid for ttl (one day when
// ttl is zero).
func (s *AuthService) IssueToken(userID string, ttl time.Duration) (string, error) {
	if len(s.signingKey) == 0 {
		return "", ErrNoSigningKey
	}
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString(s.signingKey)
}

// ParseToken parses JWT and returns userID
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	if len(s.signingKey) == 0 {
		return "", ErrNoSigningKey
	}
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
