package model

import "time"

// User is a mailbox owner who has connected their Google account. OAuth
// tokens are stored encrypted at rest; the auth package owns the cipher.
type User struct {
	ID                    string     `db:"id" json:"id"`
	Email                 string     `db:"email" json:"email"`
	Name                  string     `db:"name" json:"name"`
	Picture               string     `db:"picture" json:"picture,omitempty"`
	EncryptedAccessToken  string     `db:"encrypted_access_token" json:"-"`
	EncryptedRefreshToken string     `db:"encrypted_refresh_token" json:"-"`
	TokenExpiry           *time.Time `db:"token_expiry" json:"-"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	LastLogin             *time.Time `db:"last_login" json:"last_login,omitempty"`
	IsActive              bool       `db:"is_active" json:"is_active"`
}
