// Package auth issues and checks the tokens that tie an HTTP client to its
// quiz session.
//
// FLOW:
//  1. POST /api/sessions creates a session and returns a signed token whose
//     subject is the session ID (also set as the "session" cookie)
//  2. Every /api/session/* request presents the token, either as
//     "Authorization: Bearer <token>" or via the cookie
//  3. RequireSession validates it and puts the session ID in the request
//     context, so handlers never take a session ID from the URL or body
//
// WHY JWT?
// The token is self-contained: the server verifies the HMAC signature and
// the expiry without a database lookup, and nobody can forge a token for
// someone else's session without the secret.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"<session id>","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every token and required on validation, so tokens
// minted by another service sharing the secret are rejected.
const Issuer = "code-debugger"

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService whose tokens live for ttl.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret []byte, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: session secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: secret, ttl: ttl}, nil
}

// TTL is how long issued tokens stay valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" (Subject) carries the session ID.
type claims struct {
	jwt.RegisteredClaims
}

// Issue signs a token for sessionID that expires after the configured TTL.
// It returns the token and its expiry time.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple, good for single-server deployments
func (s *TokenService) Issue(sessionID string) (string, time.Time, error) {
	return s.IssueWithDuration(sessionID, s.ttl)
}

// IssueWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to produce expired tokens.
func (s *TokenService) IssueWithDuration(sessionID string, d time.Duration) (string, time.Time, error) {
	if sessionID == "" {
		return "", time.Time{}, errors.New("auth: session ID is required")
	}

	now := time.Now()
	expires := now.Add(d)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    Issuer,
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expires, nil
}

// ErrTokenExpired is returned by Validate for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// Validate parses and verifies a JWT string and returns the session ID it
// was issued for.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches
//   - Algorithm is HS256 (prevents "alg: none" and algorithm confusion)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
