package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var _ port.Authenticator = (*Authenticator)(nil)

const DefaultTokenTTL = 12 * time.Hour

// An Authenticator admits the single configured admin account and
// issues HS256 tokens for it.
type Authenticator struct {
	email        string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewAuthenticator panics on an empty secret or password hash.
func NewAuthenticator(
	email, passwordHash, secret string, ttl time.Duration,
) *Authenticator {
	const op = "NewAuthenticator"

	if secret == "" || passwordHash == "" {
		panic(fmt.Errorf("%s: secret and password hash are required", op))
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{
		email:        email,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

func (a *Authenticator) Login(
	ctx context.Context, email, password string,
) (string, error) {
	const op = "Authenticator.Login"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.email)) == 1
	err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !emailOK || err != nil {
		return "", fmt.Errorf("%s: %w: bad credentials", op, domain.ErrUnauthorized)
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   a.email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

func (a *Authenticator) Verify(token string) error {
	const op = "Authenticator.Verify"

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(
		token, &claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUnauthorized, err)
	}
	if claims.Subject != a.email {
		return fmt.Errorf(
			"%s: %w: %w", op, domain.ErrUnauthorized,
			errors.New("unknown subject"),
		)
	}
	return nil
}
