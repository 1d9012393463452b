//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-rooms/errors"
	"chat-rooms/store"
)

type IUserRepository interface {
	Ensure(ctx context.Context, username string) (User, error)
	TouchLastActive(ctx context.Context, username string) error
}

// User is the minimal record the chat core keeps per identity. Accounts
// and credentials are owned by the auth system, not here.
type User struct {
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

type UserRepository struct {
	store store.Client
	log   *slog.Logger
	now   func() time.Time
}

func NewUserRepository(client store.Client, log *slog.Logger) *UserRepository {
	return &UserRepository{store: client, log: log, now: time.Now}
}

// Ensure returns the stored record, auto-provisioning one on first
// contact. A record that no longer parses is replaced the same way.
func (u *UserRepository) Ensure(ctx context.Context, username string) (User, error) {
	raw, found, err := u.store.Get(ctx, userKey(username))
	if err != nil {
		return User{}, fmt.Errorf("%w: get user %s: %v", errors.ErrStore, username, err)
	}
	if found {
		var user User
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			return user, nil
		}
		u.log.Warn("malformed user record, re-provisioning", "user", username)
	}

	user := User{Username: username, CreatedAt: u.now(), LastActiveAt: u.now()}
	if err := u.save(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (u *UserRepository) TouchLastActive(ctx context.Context, username string) error {
	user, err := u.Ensure(ctx, username)
	if err != nil {
		return err
	}
	user.LastActiveAt = u.now()
	return u.save(ctx, user)
}

func (u *UserRepository) save(ctx context.Context, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user %s: %w", user.Username, err)
	}
	if err := u.store.Set(ctx, userKey(user.Username), string(data), 0); err != nil {
		return fmt.Errorf("%w: save user %s: %v", errors.ErrStore, user.Username, err)
	}
	return nil
}
