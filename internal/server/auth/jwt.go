// Package auth mints and verifies the two kinds of signed tokens the server
// deals with: its own session credential and the one-time login token issued
// by the external dashboard. Both are HS256 JWTs over a shared secret.
package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is the identity carried by the session cookie.
type Session struct {
	UserID   string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

// LoginClaims is the payload of a one-time login token. Only Email is required.
type LoginClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// SessionAudience marks session credentials so they cannot be replayed as
// login tokens; both are signed with the same secret.
const SessionAudience = "taxvoice-session"

var parser = jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

// MintSession signs s with secret, expiring after ttl.
func MintSession(s Session, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Audience:  jwt.ClaimStrings{SessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:    s.Email,
		Name:     s.Name,
		Language: s.Language,
	})
	return token.SignedString(secret)
}

// ParseSession verifies a session credential and returns its identity.
func ParseSession(tokenString string, secret []byte) (*Session, error) {
	claims := &sessionClaims{}
	if err := parse(tokenString, claims, secret); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, common.ErrInvalidPayload
	}
	return &Session{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Language: claims.Language,
	}, nil
}

// MintLoginToken issues a one-time login token for email, as the external
// dashboard does.
func MintLoginToken(email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, LoginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	})
	return token.SignedString(secret)
}

// ParseLoginToken verifies a one-time login token. A token without an
// expiry is accepted; a token without an email claim is not. Session
// credentials, recognised by a subject or the session audience, are rejected.
func ParseLoginToken(tokenString string, secret []byte) (*LoginClaims, error) {
	claims := &LoginClaims{}
	if err := parse(tokenString, claims, secret); err != nil {
		return nil, err
	}
	if claims.Subject != "" || slices.Contains(claims.Audience, SessionAudience) {
		return nil, common.ErrInvalidToken
	}
	if claims.Email == "" {
		return nil, common.ErrInvalidPayload
	}
	return claims, nil
}

func parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case err != nil:
		return common.ErrInvalidToken
	case !token.Valid:
		return common.ErrInvalidToken
	}
	return nil
}
