package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCodeNotFound is returned by code repositories when a code is absent,
// already redeemed, or expired out of the store.
var ErrCodeNotFound = errors.New("authorization code not found")

// AuthCode represents an outstanding OAuth 2.0 authorization code. A code is
// bound to the client and redirect URI it was minted for and disappears from
// the store on redemption or expiry.
type AuthCode struct {
	Code        string    `bson:"code" json:"code"`
	ClientID    string    `bson:"client_id" json:"client_id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	RedirectURI string    `bson:"redirect_uri" json:"redirect_uri"`
	Scope       string    `bson:"scope" json:"scope"`
	Nonce       string    `bson:"nonce,omitempty" json:"nonce,omitempty"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// AuthCodeRepository stores outstanding authorization codes. Implementations
// do not enforce single-use themselves; the ledger serializes the
// get/delete pair so redemption stays atomic per process.
type AuthCodeRepository interface {
	SaveAuthCode(ctx context.Context, code *AuthCode) error
	GetAuthCode(ctx context.Context, code string) (*AuthCode, error)
	DeleteAuthCode(ctx context.Context, code string) error
	DeleteExpiredAuthCodes(ctx context.Context) error
}
