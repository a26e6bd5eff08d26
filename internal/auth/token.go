// Package auth issues and verifies identity tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs HS256 tokens carrying a user id and role.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewAuthenticator(secret []byte, ttl time.Duration, clk clock.Clock) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &Authenticator{secret: secret, ttl: ttl, clock: clk}, nil
}

func (a *Authenticator) Issue(userID string, role domain.Role) (string, time.Time, error) {
	if userID == "" || !role.Valid() {
		return "", time.Time{}, fmt.Errorf("auth: cannot issue token for %q/%q", userID, role)
	}
	now := a.clock.Now()
	exp := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify returns the identity inside token or ErrInvalidToken.
func (a *Authenticator) Verify(token string) (domain.Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	if c.Subject == "" || !c.Role.Valid() {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{UserID: c.Subject, Role: c.Role}, nil
}
