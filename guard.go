package mockauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/mockauth/domain"
)

const (
	// MaxFailedLoginAttempts is the failure count that triggers a lockout.
	MaxFailedLoginAttempts = 5
	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 15 * time.Minute
)

// LoginGuard tracks per-user login failures and lockout windows. Counter
// updates are read-modify-write cycles over the user repository, serialized
// by a mutex so concurrent failures cannot lose increments.
type LoginGuard struct {
	mu    sync.Mutex
	users domain.UserRepository
	now   func() time.Time
}

// NewLoginGuard creates a guard over the given user repository.
func NewLoginGuard(users domain.UserRepository) *LoginGuard {
	return &LoginGuard{
		users: users,
		now:   time.Now,
	}
}

// RecordFailure increments the user's failure counter and, at the threshold,
// opens a lockout window. Locks self-expire; there is no unlock operation.
func (g *LoginGuard) RecordFailure(ctx context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user for failure tracking: %w", err)
	}

	now := g.now()
	user.FailedLoginAttempts++
	user.LastFailedLogin = &now

	if user.FailedLoginAttempts >= MaxFailedLoginAttempts {
		lockedUntil := now.Add(LockoutDuration)
		user.LockedUntil = &lockedUntil
		log.Warn().
			Str("user_id", userID).
			Time("locked_until", lockedUntil).
			Msg("Account locked after repeated login failures")
	}

	return g.users.UpdateUser(ctx, user)
}

// RecordSuccess resets the failure counter and clears any lockout.
func (g *LoginGuard) RecordSuccess(ctx context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user for failure reset: %w", err)
	}

	if user.FailedLoginAttempts == 0 && user.LockedUntil == nil {
		return nil
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	return g.users.UpdateUser(ctx, user)
}

// IsLocked reports whether the user is inside an active lockout window.
func (g *LoginGuard) IsLocked(user *domain.User) bool {
	return user.LockedUntil != nil && user.LockedUntil.After(g.now())
}
