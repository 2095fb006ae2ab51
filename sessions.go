package mockauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// SessionTTL is the lifetime of an interactive login session.
const SessionTTL = time.Hour

// Session represents an authenticated browser session established by a
// successful credential challenge.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps login sessions in memory with automatic expiry.
type SessionStore struct {
	cache *ttlcache.Cache[string, *Session]
	ttl   time.Duration
}

// NewSessionStore creates a session store with automatic cleanup.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
		ttlcache.WithDisableTouchOnHit[string, *Session](),
	)
	go cache.Start()

	return &SessionStore{cache: cache, ttl: ttl}
}

// Create establishes a new session for the user. ExpiresAt matches the cache
// entry TTL, so the session cookie and the store expire together.
func (s *SessionStore) Create(userID string) *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.cache.Set(session.ID, session, ttlcache.DefaultTTL)
	return session
}

// Get returns the session with the given ID, if it exists and has not
// expired.
func (s *SessionStore) Get(id string) (*Session, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.cache.Delete(id)
}

// Stop shuts down the background cleanup loop.
func (s *SessionStore) Stop() {
	s.cache.Stop()
}
