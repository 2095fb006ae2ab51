package mockauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/mockauth/domain"
	oautherr "go.pilab.hu/mockauth/errors"
)

// AuthCodeTTL is the lifetime of an authorization code.
const AuthCodeTTL = 10 * time.Minute

// CodeLedger owns outstanding authorization codes. Redemption and deletion
// are one critical section, so a code can be redeemed at most once even when
// two exchanges race.
type CodeLedger struct {
	mu   sync.Mutex
	repo domain.AuthCodeRepository
	now  func() time.Time
}

// NewCodeLedger creates a ledger over the given code repository.
func NewCodeLedger(repo domain.AuthCodeRepository) *CodeLedger {
	return &CodeLedger{
		repo: repo,
		now:  time.Now,
	}
}

// generateCode returns an unguessable code value with 256 bits of entropy.
func generateCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue mints a new authorization code bound to the client, redirect URI,
// scope and user of the authorization request.
func (l *CodeLedger) Issue(ctx context.Context, clientID, redirectURI, scope, userID, nonce string) (*domain.AuthCode, error) {
	value, err := generateCode()
	if err != nil {
		return nil, err
	}

	now := l.now()
	code := &domain.AuthCode{
		Code:        value,
		ClientID:    clientID,
		UserID:      userID,
		RedirectURI: redirectURI,
		Scope:       scope,
		Nonce:       nonce,
		ExpiresAt:   now.Add(AuthCodeTTL),
		CreatedAt:   now,
	}

	if err := l.repo.SaveAuthCode(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("client_id", clientID).Str("user_id", userID).Msg("Authorization code issued")

	return code, nil
}

// Redeem exchanges a code for its record. It fails with invalid_grant when
// the code is absent, expired (the stale record is deleted as a side
// effect), or bound to a different client or redirect URI. On success the
// record is removed and returned; removal and return are atomic under the
// ledger mutex.
func (l *CodeLedger) Redeem(ctx context.Context, code, clientID, redirectURI string) (*domain.AuthCode, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.repo.GetAuthCode(ctx, code)
	if err != nil {
		return nil, oautherr.NewInvalidGrant("Invalid authorization code")
	}

	if !record.ExpiresAt.After(l.now()) {
		if derr := l.repo.DeleteAuthCode(ctx, code); derr != nil {
			log.Warn().Err(derr).Msg("Failed to delete expired authorization code")
		}
		return nil, oautherr.NewInvalidGrant("Authorization code expired")
	}

	if record.ClientID != clientID {
		return nil, oautherr.NewInvalidGrant("Authorization code was issued to another client")
	}

	if record.RedirectURI != redirectURI {
		return nil, oautherr.NewInvalidGrant("redirect_uri does not match the authorization request")
	}

	if err := l.repo.DeleteAuthCode(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	return record, nil
}

// Sweep removes all expired codes. Redeem enforces expiry on its own, so the
// sweep only reclaims storage.
func (l *CodeLedger) Sweep(ctx context.Context) error {
	return l.repo.DeleteExpiredAuthCodes(ctx)
}

// RunSweeper sweeps expired codes on the given interval until the context is
// canceled.
func (l *CodeLedger) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to sweep expired authorization codes")
			}
		}
	}
}
