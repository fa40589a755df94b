package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jordanlanch/taxpipe/pkg/domain"
)

// Claims represents the scheduling-link token claims
type Claims struct {
	CaseNumber string `json:"case_number"`
	Domain     string `json:"domain"`
	jwt.RegisteredClaims
}

// Service issues and validates the time-boxed tokens embedded in outbound
// scheduling links. An expired token pulls the client out of automation until
// an operator re-issues one.
type Service struct {
	secret string
	ttl    time.Duration
}

// NewService creates a token service
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: secret, ttl: ttl}
}

// Issue generates a new signed token and returns it with its expiry.
func (s *Service) Issue(caseNumber, domain string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	claims := &Claims{
		CaseNumber: caseNumber,
		Domain:     domain,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and returns its claims
func (s *Service) Validate(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.NewStaleTokenError(err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
