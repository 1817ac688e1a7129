// Package auth issues and verifies session credentials for the summarizer API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A user registers, logs in with a password, or signs in with Google.
//  2. The server issues a signed session token and stores it in the HttpOnly
//     "token" cookie (7 days).
//  3. On protected routes RequireAuth reads the cookie (or, for non-browser
//     clients, an "Authorization: Bearer" header), verifies the token and puts
//     the user ID in the request context.
//
// WHY JWT?
// The token carries everything the Auth Gate needs (user ID, expiry) and is
// signed with a server secret, so verifying it needs no database lookup.
//
// TOKEN STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"id":"<userID>","iss":"text-summarizer","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionDuration is how long an issued session token stays valid.
// The cookie Max-Age uses the same value.
const SessionDuration = 7 * 24 * time.Hour

const issuer = "text-summarizer"

var (
	// ErrInvalidToken covers every verification failure: bad signature,
	// malformed token, wrong algorithm or issuer, and expiry.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrMalformedPayload means the signature checked out but the token
	// does not say who it belongs to.
	ErrMalformedPayload = errors.New("auth: token payload has no user id")
)

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the token payload. The user ID travels in a private "id" claim,
// which is what existing clients of this API already decode.
type claims struct {
	UserID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a session token for userID that is valid for SessionDuration.
func (s *TokenService) Issue(userID string) (string, error) {
	return s.IssueWithDuration(userID, SessionDuration)
}

// IssueWithDuration signs a token with a custom lifetime.
// A negative duration yields an already-expired token, which tests rely on.
func (s *TokenService) IssueWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks a token and returns the user ID it was issued for.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - the signature matches our secret
//   - the algorithm is HS256 (a token claiming "none" or RS256 is refused)
//   - the issuer is ours
//   - exp is present and in the future
//
// Every such failure is reported as ErrInvalidToken. A token that passes all
// of them but carries no "id" claim yields ErrMalformedPayload.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if c.UserID == "" {
		return "", ErrMalformedPayload
	}

	return c.UserID, nil
}
