package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloudidian/mailsort/internal/model"
)

// UpsertUser inserts a user or updates the mutable profile and token
// fields of an existing one. Called from the OAuth callback.
func (s *Store) UpsertUser(ctx context.Context, user *model.User) error {
	if user.ID == "" || user.Email == "" {
		return fmt.Errorf("user id and email must not be empty")
	}
	now := time.Now().UTC()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (
			id, email, name, picture,
			encrypted_access_token, encrypted_refresh_token, token_expiry,
			created_at, updated_at, last_login, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			picture = excluded.picture,
			encrypted_access_token = excluded.encrypted_access_token,
			encrypted_refresh_token = excluded.encrypted_refresh_token,
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at,
			last_login = excluded.last_login,
			is_active = excluded.is_active`),
		user.ID, user.Email, user.Name, user.Picture,
		user.EncryptedAccessToken, user.EncryptedRefreshToken, user.TokenExpiry,
		user.CreatedAt, user.UpdatedAt, user.LastLogin, user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// GetUser loads a user by id. Returns ErrNotFound if it does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user, s.rebind(`SELECT * FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	return &user, nil
}

// SaveUserTokens persists refreshed OAuth tokens. Touches only the token
// fields so profile updates are never clobbered. An empty refresh token
// leaves the stored one in place (Google omits it on refresh responses).
func (s *Store) SaveUserTokens(ctx context.Context, id, encryptedAccess, encryptedRefresh string, expiry *time.Time) error {
	now := time.Now().UTC()
	var err error
	if encryptedRefresh == "" {
		_, err = s.db.ExecContext(ctx, s.rebind(`
			UPDATE users SET encrypted_access_token = ?, token_expiry = ?, updated_at = ?
			WHERE id = ?`),
			encryptedAccess, expiry, now, id)
	} else {
		_, err = s.db.ExecContext(ctx, s.rebind(`
			UPDATE users SET encrypted_access_token = ?, encrypted_refresh_token = ?, token_expiry = ?, updated_at = ?
			WHERE id = ?`),
			encryptedAccess, encryptedRefresh, expiry, now, id)
	}
	if err != nil {
		return fmt.Errorf("saving user tokens: %w", err)
	}
	return nil
}
