package domain

import (
	"context"
	"time"
)

// User represents an end user of the authorization server. Profile fields
// feed the claims projection; the failed-login fields are mutated only by
// the login attempt guard.
type User struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	Username     string `bson:"username" json:"username"`
	PasswordHash string `bson:"password_hash" json:"-"`

	Name              string   `bson:"name,omitempty" json:"name,omitempty"`
	PreferredUsername string   `bson:"preferred_username,omitempty" json:"preferred_username,omitempty"`
	Email             string   `bson:"email,omitempty" json:"email,omitempty"`
	EmailVerified     bool     `bson:"email_verified" json:"email_verified"`
	Roles             []string `bson:"roles,omitempty" json:"roles,omitempty"`
	Groups            []string `bson:"groups,omitempty" json:"groups,omitempty"`
	Permissions       []string `bson:"permissions,omitempty" json:"permissions,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	FailedLoginAttempts int        `bson:"failed_login_attempts,omitempty" json:"-"`
	LastFailedLogin     *time.Time `bson:"last_failed_login,omitempty" json:"-"`
	LockedUntil         *time.Time `bson:"locked_until,omitempty" json:"-"`
}

// UserRepository provides access to persisted users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
}

// PasswordHasher abstracts the password hashing algorithm. The server only
// ever verifies; hashing is used when seeding fixture users.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}
