package model

import (
	"database/sql"
	"time"
)

// User represents an account record as stored in the `users` table.
// Each field corresponds to a column. The json tags are omitted because
// these structs are used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Username         – unique login name (an email address in practice).
//  PasswordHash     – bcrypt hashed password; never exposed or logged.
//  IsSubscribed     – local cache of the payment provider's subscription status.
//  StripeCustomerID – external payment customer reference (null until first checkout).
//  RefreshToken     – the single currently valid refresh token (null when logged out).
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
	ID               uint64         // users.id
	Username         string         // users.username
	PasswordHash     string         // users.password_hash
	IsSubscribed     bool           // users.is_subscribed
	StripeCustomerID sql.NullString // users.stripe_customer_id (nullable)
	RefreshToken     sql.NullString // users.refresh_token (nullable)
	CreatedAt        time.Time      // users.created_at
	UpdatedAt        time.Time      // users.updated_at
}

// CustomerRef returns the payment customer reference or "" when unset.
func (u User) CustomerRef() string {
	if u.StripeCustomerID.Valid {
		return u.StripeCustomerID.String
	}
	return ""
}

// StoredRefreshToken returns the persisted refresh token or "" when the
// user is logged out.
func (u User) StoredRefreshToken() string {
	if u.RefreshToken.Valid {
		return u.RefreshToken.String
	}
	return ""
}
