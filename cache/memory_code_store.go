// Package cache provides in-memory repository implementations backed by
// ttlcache. They are the default storage for single-process test
// deployments.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"go.pilab.hu/mockauth/domain"
)

// MemoryCodeStore implements domain.AuthCodeRepository using ttlcache.
// Entries expire with the code itself, so stale records vanish without an
// explicit sweep.
type MemoryCodeStore struct {
	cache *ttlcache.Cache[string, *domain.AuthCode]
}

// NewMemoryCodeStore creates a new in-memory code store with automatic
// cleanup.
func NewMemoryCodeStore() *MemoryCodeStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.AuthCode](),
	)
	go cache.Start()

	return &MemoryCodeStore{cache: cache}
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (s *MemoryCodeStore) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	// ttlcache keeps non-positive TTLs forever, and the redis backend
	// rejects expired codes too.
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization code %s is already expired", code.Code)
	}
	s.cache.Set(code.Code, code, ttl)
	return nil
}

// GetAuthCode implements domain.AuthCodeRepository.
func (s *MemoryCodeStore) GetAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	item := s.cache.Get(code)
	if item == nil {
		return nil, domain.ErrCodeNotFound
	}
	return item.Value(), nil
}

// DeleteAuthCode implements domain.AuthCodeRepository.
func (s *MemoryCodeStore) DeleteAuthCode(_ context.Context, code string) error {
	s.cache.Delete(code)
	return nil
}

// DeleteExpiredAuthCodes implements domain.AuthCodeRepository.
func (s *MemoryCodeStore) DeleteExpiredAuthCodes(_ context.Context) error {
	s.cache.DeleteExpired()
	return nil
}

// Count returns the number of outstanding codes.
func (s *MemoryCodeStore) Count() int {
	return s.cache.Len()
}

// Stop shuts down the background cleanup loop.
func (s *MemoryCodeStore) Stop() {
	s.cache.Stop()
}

var _ domain.AuthCodeRepository = (*MemoryCodeStore)(nil)
