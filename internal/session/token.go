// Package session authenticates requests with signed bearer tokens and carries the resulting
// domain.Session through the request context.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rtbecker76/universal-electronics2/internal/domain"
)

var (
	ErrNoSession    = domain.ErrNoSession
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked")
)

// Claims are the token claims. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	CustomerID int64  `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Admin      bool   `json:"admin,omitempty"`
}

func (c *Claims) Session() *domain.Session {
	return &domain.Session{UserID: c.Subject, CustomerID: c.CustomerID, Email: c.Email, IsAdmin: c.Admin}
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (tm *TokenManager) Issue(s domain.Session, ttl time.Duration) (string, error) {
	if s.UserID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidToken)
	}
	now := tm.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.UserID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CustomerID: s.CustomerID,
		Email:      s.Email,
		Admin:      s.IsAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (tm *TokenManager) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
