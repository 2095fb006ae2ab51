// Package redis provides a Redis-backed authorization-code repository for
// deployments that want codes to survive a server restart.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/mockauth/domain"
)

// CodeStore implements domain.AuthCodeRepository using Redis. Records are
// stored with a key TTL matching the code expiry, so Redis reclaims stale
// codes on its own and DeleteExpiredAuthCodes has nothing left to do.
type CodeStore struct {
	client *redis.Client
	prefix string
}

// NewCodeStore creates a new CodeStore instance.
func NewCodeStore(client *redis.Client, prefix string) *CodeStore {
	return &CodeStore{
		client: client,
		prefix: prefix,
	}
}

func (r *CodeStore) redisKey(code string) string {
	return fmt.Sprintf("%s:authcode:%s", r.prefix, code)
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (r *CodeStore) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization code %s is already expired", code.Code)
	}

	if err := r.client.Set(ctx, r.redisKey(code.Code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store authorization code in Redis: %w", err)
	}

	return nil
}

// GetAuthCode implements domain.AuthCodeRepository.
func (r *CodeStore) GetAuthCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	payload, err := r.client.Get(ctx, r.redisKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to read authorization code from Redis: %w", err)
	}

	var record domain.AuthCode
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	return &record, nil
}

// DeleteAuthCode implements domain.AuthCodeRepository.
func (r *CodeStore) DeleteAuthCode(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, r.redisKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to delete authorization code from Redis: %w", err)
	}
	return nil
}

// DeleteExpiredAuthCodes implements domain.AuthCodeRepository. Redis expires
// keys itself; nothing to sweep.
func (r *CodeStore) DeleteExpiredAuthCodes(_ context.Context) error {
	return nil
}

var _ domain.AuthCodeRepository = (*CodeStore)(nil)
