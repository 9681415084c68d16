package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bharath2805/healthassistant/internal/repository"
)

const stateKeyPrefix = "auth:google:state:"

// RedisLoginStateStore implements LoginStateStore backed by Redis.
type RedisLoginStateStore struct {
	client redis.UniversalClient
}

var _ repository.LoginStateStore = (*RedisLoginStateStore)(nil)

// NewRedisLoginStateStore constructs a Redis-backed state store.
func NewRedisLoginStateStore(client redis.UniversalClient) *RedisLoginStateStore {
	return &RedisLoginStateStore{client: client}
}

// Save persists the state nonce with TTL.
func (s *RedisLoginStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, stateKeyPrefix+state, "1", ttl).Err(); err != nil {
		return fmt.Errorf("persist login state: %w", err)
	}
	return nil
}

// Consume checks the state nonce and deletes it so it can be used only once.
func (s *RedisLoginStateStore) Consume(ctx context.Context, state string) (bool, error) {
	if err := s.client.GetDel(ctx, stateKeyPrefix+state).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("consume login state: %w", err)
	}
	return true, nil
}
