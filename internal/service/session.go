// Package service holds the session and billing orchestration logic.
// Handlers stay thin; everything that touches more than one collaborator
// lives here, behind small interfaces so tests can swap in fakes.
package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/account-service/internal/auth"
	"github.com/iliyamo/account-service/internal/model"
)

// UserStore is the slice of the credential store the services need.
// *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, username, passwordHash string) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	SetRefreshToken(ctx context.Context, username, token string) error
	ClearRefreshToken(ctx context.Context, username string) error
	SetCustomerRefIfEmpty(ctx context.Context, username, customerRef string) (bool, error)
	MarkSubscribed(ctx context.Context, username, customerRef string) error
	SetSubscribedByCustomer(ctx context.Context, customerRef string, active bool) (int64, error)
}

// ErrInvalidCredentials covers both "user not found" and "password
// mismatch" on login. The two cases are deliberately indistinguishable so
// responses cannot be used as a username oracle.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUserNotFound is returned where an endpoint's contract explicitly
// discloses unknown usernames (checkout finalization).
var ErrUserNotFound = errors.New("user not found")

// TokenPair is the result of a successful login.
type TokenPair struct {
	Access     string
	AccessExp  time.Time
	Refresh    string
	RefreshExp time.Time
}

// SessionManager orchestrates signup, login, refresh and logout. It
// enforces the single-active-refresh-token invariant: the pair issued by
// the most recent login is the only one whose refresh token exchanges.
type SessionManager struct {
	store      UserStore
	issuer     *auth.Issuer
	bcryptCost int
}

func NewSessionManager(store UserStore, issuer *auth.Issuer, bcryptCost int) *SessionManager {
	return &SessionManager{store: store, issuer: issuer, bcryptCost: bcryptCost}
}

// Signup creates an account. The new user starts logged out: no tokens
// are issued until the first login.
func (s *SessionManager) Signup(ctx context.Context, username, password string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.store.Create(ctx, username, hash)
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: id, Username: username}, nil
}

// Login verifies the credentials and issues a fresh access/refresh pair.
// The new refresh token replaces whatever was stored, so any earlier
// session's refresh token is invalidated atomically.
func (s *SessionManager) Login(ctx context.Context, username, password string) (TokenPair, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}

	access, accessExp, err := s.issuer.IssueAccess(u.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(u.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.store.SetRefreshToken(ctx, u.Username, refresh); err != nil {
		return TokenPair{}, fmt.Errorf("save refresh token: %w", err)
	}
	return TokenPair{Access: access, AccessExp: accessExp, Refresh: refresh, RefreshExp: refreshExp}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// presented token must verify AND match the stored one bit-for-bit; the
// refresh token itself is not rotated, it stays valid until logout or
// re-login. Every failure mode collapses into auth.ErrInvalidToken.
func (s *SessionManager) Refresh(ctx context.Context, presented string) (string, time.Time, error) {
	subject, err := s.issuer.Verify(presented)
	if err != nil {
		return "", time.Time{}, auth.ErrInvalidToken
	}
	u, err := s.store.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, auth.ErrInvalidToken
		}
		return "", time.Time{}, fmt.Errorf("load user: %w", err)
	}
	stored := u.StoredRefreshToken()
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return "", time.Time{}, auth.ErrInvalidToken
	}
	return s.issuer.IssueAccess(u.Username)
}

// Logout clears the stored refresh token. It is idempotent: logging out
// an already logged-out user succeeds.
func (s *SessionManager) Logout(ctx context.Context, username string) error {
	return s.store.ClearRefreshToken(ctx, username)
}

// Authenticate verifies an access token and resolves its subject to a
// stored user. A valid signature over a subject that no longer exists is
// rejected the same way as any other bad token.
func (s *SessionManager) Authenticate(ctx context.Context, accessToken string) (model.User, error) {
	subject, err := s.issuer.Verify(accessToken)
	if err != nil {
		return model.User{}, auth.ErrInvalidToken
	}
	return s.userBySubject(ctx, subject)
}

// Profile loads the account for an already verified subject, e.g. one the
// JWT middleware extracted from a bearer token.
func (s *SessionManager) Profile(ctx context.Context, username string) (model.User, error) {
	return s.userBySubject(ctx, username)
}

func (s *SessionManager) userBySubject(ctx context.Context, subject string) (model.User, error) {
	u, err := s.store.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, auth.ErrInvalidToken
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
