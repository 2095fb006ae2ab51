package domain

import (
	"context"
	"time"
)

// Client represents a registered OAuth2 client application. Records are
// immutable after registration.
type Client struct {
	ID           string   `bson:"client_id" json:"client_id"`
	Secret       string   `bson:"client_secret,omitempty" json:"client_secret,omitempty"`
	Name         string   `bson:"client_name,omitempty" json:"client_name,omitempty"`
	RedirectURIs []string `bson:"redirect_uris" json:"redirect_uris"`
	// Scopes is the optional scope allow-list. Empty means any requested
	// scope is accepted.
	Scopes        []string  `bson:"allowed_scopes,omitempty" json:"scope,omitempty"`
	GrantTypes    []string  `bson:"grant_types,omitempty" json:"grant_types,omitempty"`
	ResponseTypes []string  `bson:"response_types,omitempty" json:"response_types,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// ClientRepository provides access to registered clients.
type ClientRepository interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, clientID string) (*Client, error)
}
