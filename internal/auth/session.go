package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSession is returned for malformed or badly signed tokens.
	ErrInvalidSession = errors.New("auth: invalid session token")
	// ErrExpiredSession is returned for well-formed but expired tokens.
	ErrExpiredSession = errors.New("auth: session expired")
)

// SessionClaims carry the authenticated user through API requests.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates the HS256 session tokens the API
// hands out after the OAuth callback.
type SessionManager struct {
	secret []byte
	expiry time.Duration
}

// NewSessionManager creates a manager signing with secret; tokens live
// for expiry.
func NewSessionManager(secret string, expiry time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), expiry: expiry}
}

// Issue signs a session token for the user.
func (m *SessionManager) Issue(userID, email string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mailsort",
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature and expiry and returns the claims.
func (m *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSession
		}
		return nil, ErrInvalidSession
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
