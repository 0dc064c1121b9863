// Package auth implements sign-in through external OAuth providers and the
// signed session cookie that represents a signed-in browser.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User visits /auth/{provider}/login → redirected to Google or GitHub
//  2. The provider calls back /auth/{provider}/callback with a code
//  3. Server exchanges the code for an Identity and records the account
//  4. Server issues a session JWT and stores it in an HttpOnly cookie
//  5. On every later request LoadSession validates the cookie and puts the
//     *Session into the request context
//
// The session is opaque to the rest of the application: handlers and views
// only ever see its presence and its display name.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
	"golang.org/x/crypto/hkdf"
)

const (
	issuer = "github-explorer"

	// sessionKeyInfo separates the session signing key from anything else
	// that may ever be derived from the same secret.
	sessionKeyInfo = "github-explorer session v1"

	// DefaultSessionTTL is used when NewTokenService is given ttl <= 0.
	DefaultSessionTTL = 24 * time.Hour
)

// Session is the signed-in state carried by the session cookie.
type Session struct {
	ID        string    `json:"id"`        // jti: one per sign-in, identifies the browsing session
	AccountID string    `json:"accountId"` // sub: the account registry ID
	Provider  string    `json:"provider"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires"`
}

// DisplayName is the name, falling back to the email.
func (s *Session) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// TokenService issues and validates session tokens.
type TokenService struct {
	key []byte
	ttl time.Duration
}

// sessionClaims is the JWT payload.
type sessionClaims struct {
	jwt.RegisteredClaims
	Provider string `json:"prv"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// NewTokenService derives the HS256 signing key from secret with
// HKDF-SHA256. The secret must be at least 16 characters.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("auth: deriving session key: %w", err)
	}

	return &TokenService{key: key, ttl: ttl}, nil
}

// TTL is the lifetime of issued sessions.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a new session for accountID. Every call yields a fresh session
// ID, so each sign-in starts a new browsing session.
func (s *TokenService) Issue(accountID string, identity *Identity) (string, *Session, error) {
	return s.issueWithDuration(accountID, identity, s.ttl)
}

func (s *TokenService) issueWithDuration(accountID string, identity *Identity, d time.Duration) (string, *Session, error) {
	if accountID == "" {
		return "", nil, errors.New("auth: account ID must not be empty")
	}
	if identity == nil {
		return "", nil, errors.New("auth: identity must not be nil")
	}

	now := time.Now()
	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Provider: identity.Provider,
		Name:     identity.Name,
		Email:    identity.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", nil, fmt.Errorf("auth: signing session: %w", err)
	}

	return signed, claimsToSession(&c), nil
}

// Parse validates a session token: signature, HS256, issuer and expiry.
func (s *TokenService) Parse(tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			return s.key, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: session expired")
		}
		return nil, fmt.Errorf("auth: invalid session: %w", err)
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid session claims")
	}
	if c.Subject == "" || c.ID == "" {
		return nil, fmt.Errorf("auth: session has no subject or id")
	}

	return claimsToSession(c), nil
}

func claimsToSession(c *sessionClaims) *Session {
	sess := &Session{
		ID:        c.ID,
		AccountID: c.Subject,
		Provider:  c.Provider,
		Name:      c.Name,
		Email:     c.Email,
	}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess
}
