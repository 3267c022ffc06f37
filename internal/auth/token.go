// Package auth provides token issuing/verification and password hashing.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrInvalidToken is the single failure outcome for token verification.
// Malformed tokens, bad signatures, wrong algorithms and expired
// timestamps all collapse into this error so that callers cannot leak
// which check failed.
var ErrInvalidToken = errors.New("invalid token")

// Issuer mints and verifies signed, time-bounded access and refresh
// tokens. It is constructed once from configuration at startup and passed
// by reference wherever tokens are needed; there is no package-level
// state. Both token kinds carry the same claim shape (subject + expiry),
// they differ only in TTL.
type Issuer struct {
	secret     []byte
	method     jwt.SigningMethod
	alg        string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer builds an Issuer for the given HMAC algorithm name
// (HS256, HS384 or HS512). Unknown algorithms are rejected at startup
// rather than at first use.
func NewIssuer(secret, alg string, accessTTLMin, refreshTTLDays int) (*Issuer, error) {
	var method jwt.SigningMethod
	switch alg {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	return &Issuer{
		secret:     []byte(secret),
		method:     method,
		alg:        alg,
		accessTTL:  time.Duration(accessTTLMin) * time.Minute,
		refreshTTL: time.Duration(refreshTTLDays) * 24 * time.Hour,
	}, nil
}

// IssueAccess signs a short-lived access token for the subject and
// returns the serialized token with its expiry.
func (i *Issuer) IssueAccess(subject string) (string, time.Time, error) {
	return i.issue(subject, i.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the subject. The
// caller is responsible for persisting it as the user's single active
// refresh token.
func (i *Issuer) IssueRefresh(subject string) (string, time.Time, error) {
	return i.issue(subject, i.refreshTTL)
}

func (i *Issuer) issue(subject string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the token's signature and expiry and returns its subject.
// It does NOT consult storage: for refresh tokens the caller must also
// compare the presented value against the user's stored token.
func (i *Issuer) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{i.alg}))
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
