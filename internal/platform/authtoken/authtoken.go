// Package authtoken mints and verifies the signed bearer tokens used by the
// ledger HTTP API. Tokens are HMAC-signed JWTs carrying the caller's Discord
// user id.
package authtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTTL = 24 * time.Hour

// ErrInvalidToken reports a token that failed signature or claims validation.
var ErrInvalidToken = errors.New("auth token is invalid")

// ErrExpiredToken reports a token past its expiry.
var ErrExpiredToken = errors.New("auth token is expired")

// Claims captures the validated identity carried by a token.
type Claims struct {
	UserID    string
	Issuer    string
	TokenID   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Minter signs and verifies tokens with a shared HMAC secret.
type Minter struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New builds a Minter. The secret must be non-empty; ttl defaults to 24h
// when zero, and now defaults to time.Now.
func New(secret []byte, issuer string, ttl time.Duration, now func() time.Time) (*Minter, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth token secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("auth token issuer is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Minter{secret: secret, issuer: issuer, ttl: ttl, now: now}, nil
}

// Mint issues a signed token for the given user id.
func (m *Minter) Mint(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	issuedAt := m.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and claims and returns the identity.
func (m *Minter) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	if parsed.Issuer != m.issuer {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(parsed.UserID) == "" || parsed.ID == "" || parsed.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	now := m.now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, ErrExpiredToken
	}

	return Claims{
		UserID:    parsed.UserID,
		Issuer:    parsed.Issuer,
		TokenID:   parsed.ID,
		ExpiresAt: exp,
	}, nil
}
