package mockauth

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/mockauth/domain"
)

// generateRandomString creates a cryptographically secure random string of
// the specified length.
func generateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	_, _ = rand.Read(b)

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}

	return string(b)
}

// NewClientRecord builds a confidential client record for dynamic
// registration. Grant types default to the two supported grants when the
// request names none.
func NewClientRecord(name string, redirectURIs, grantTypes []string, scope string) *domain.Client {
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code", "client_credentials"}
	}

	return &domain.Client{
		ID:            uuid.NewString(),
		Secret:        generateRandomString(32),
		Name:          name,
		RedirectURIs:  redirectURIs,
		Scopes:        ScopeTokens(scope),
		GrantTypes:    grantTypes,
		ResponseTypes: []string{"code"},
		CreatedAt:     time.Now().UTC(),
	}
}
