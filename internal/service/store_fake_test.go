package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

// fakeStore is an in-memory UserStore with the same observable behavior
// as the MySQL repository, including rows-changed semantics for
// SetSubscribedByCustomer.
type fakeStore struct {
	users  map[string]*model.User
	nextID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*model.User{}}
}

func (f *fakeStore) Create(_ context.Context, username, passwordHash string) (uint64, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if _, ok := f.users[username]; ok {
		return 0, repository.ErrUsernameTaken
	}
	f.nextID++
	f.users[username] = &model.User{ID: f.nextID, Username: username, PasswordHash: passwordHash}
	return f.nextID, nil
}

func (f *fakeStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	u, ok := f.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (f *fakeStore) SetRefreshToken(_ context.Context, username, token string) error {
	if u, ok := f.users[username]; ok {
		u.RefreshToken = sql.NullString{String: token, Valid: true}
	}
	return nil
}

func (f *fakeStore) ClearRefreshToken(_ context.Context, username string) error {
	if u, ok := f.users[username]; ok {
		u.RefreshToken = sql.NullString{}
	}
	return nil
}

func (f *fakeStore) SetCustomerRefIfEmpty(_ context.Context, username, customerRef string) (bool, error) {
	u, ok := f.users[username]
	if !ok || u.StripeCustomerID.Valid {
		return false, nil
	}
	u.StripeCustomerID = sql.NullString{String: customerRef, Valid: true}
	return true, nil
}

func (f *fakeStore) MarkSubscribed(_ context.Context, username, customerRef string) error {
	if u, ok := f.users[username]; ok {
		u.IsSubscribed = true
		if !u.StripeCustomerID.Valid && customerRef != "" {
			u.StripeCustomerID = sql.NullString{String: customerRef, Valid: true}
		}
	}
	return nil
}

func (f *fakeStore) SetSubscribedByCustomer(_ context.Context, customerRef string, active bool) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.StripeCustomerID.Valid && u.StripeCustomerID.String == customerRef && u.IsSubscribed != active {
			u.IsSubscribed = active
			n++
		}
	}
	return n, nil
}
