package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/account-service/internal/model"
)

// UserRepo is the credential store. All mutations are single-row
// conditional UPDATEs keyed by username or customer reference, so
// concurrent requests for the same user serialize on the row lock and
// never require an in-process lock.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,username,password_hash,is_subscribed,stripe_customer_id,refresh_token,created_at,updated_at"

// Create inserts a user with the given password hash and returns its ID.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (uint64, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?,?)",
		username, passwordHash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsSubscribed,
		&u.StripeCustomerID, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// SetRefreshToken replaces the user's stored refresh token with the given
// value. Any previously issued refresh token stops being exchangeable the
// moment this commits (revocation by replacement).
func (r *UserRepo) SetRefreshToken(ctx context.Context, username, token string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=? WHERE username=?",
		token, username)
	return err
}

// ClearRefreshToken nulls out the stored refresh token. Clearing an
// already-null token is not an error, which makes logout idempotent.
func (r *UserRepo) ClearRefreshToken(ctx context.Context, username string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=NULL WHERE username=?",
		username)
	return err
}

// SetCustomerRefIfEmpty persists the payment customer reference only when
// none is stored yet. It reports whether this call won the write, so a
// concurrent request that raced ahead never gets overwritten.
func (r *UserRepo) SetCustomerRefIfEmpty(ctx context.Context, username, customerRef string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET stripe_customer_id=? WHERE username=? AND stripe_customer_id IS NULL",
		customerRef, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSubscribed flips is_subscribed on and backfills the customer
// reference when it is still empty. Re-applying it for an already
// subscribed user changes nothing, so checkout confirmation can be
// retried safely.
func (r *UserRepo) MarkSubscribed(ctx context.Context, username, customerRef string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_subscribed=1, stripe_customer_id=COALESCE(stripe_customer_id, NULLIF(?,'')) WHERE username=?",
		customerRef, username)
	return err
}

// SetSubscribedByCustomer overwrites is_subscribed for the user matched by
// payment customer reference and returns the number of changed rows. Zero
// means either no user tracks that customer or the flag already had the
// requested value; callers treat both as a no-op.
func (r *UserRepo) SetSubscribedByCustomer(ctx context.Context, customerRef string, active bool) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_subscribed=? WHERE stripe_customer_id=?",
		active, customerRef)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
