package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/msomdec/postwriter/internal/domain"
)

// MinTokenSecretLen is the shortest accepted HMAC secret.
const MinTokenSecretLen = 32

// TokenVerifier issues and checks the HS256 bearer tokens that gate the
// write endpoints.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a TokenVerifier. The secret must be at least
// MinTokenSecretLen bytes.
func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if len(secret) < MinTokenSecretLen {
		return nil, fmt.Errorf("%w: token secret must be at least %d bytes", domain.ErrInvalidInput, MinTokenSecretLen)
	}
	return &TokenVerifier{secret: []byte(secret)}, nil
}

// Issue signs a token for subject that expires after ttl.
func (v *TokenVerifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses and validates a token string and returns its subject.
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrUnauthorized
	}
	return sub, nil
}
