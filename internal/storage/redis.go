package storage

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "flowex:state:"

type redisStore struct {
	r *redis.Client
}

// NewRedis returns a Store backed by a Redis hashless key-per-domain layout.
// Records persist with no TTL; Remove is the only way a domain disappears.
func NewRedis(client *redis.Client) Store {
	return &redisStore{r: client}
}

// NewRedisAddr dials addr and returns a Redis-backed Store.
func NewRedisAddr(addr string) Store {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
}

func (s *redisStore) Get(ctx context.Context, domain string) ([]byte, bool, error) {
	b, err := s.r.Get(ctx, redisKeyPrefix+domain).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: redis get %s: %w", domain, err)
	}
	return b, true, nil
}

func (s *redisStore) Set(ctx context.Context, domain string, blob []byte) error {
	if err := s.r.Set(ctx, redisKeyPrefix+domain, blob, 0).Err(); err != nil {
		return fmt.Errorf("storage: redis set %s: %w", domain, err)
	}
	return nil
}

func (s *redisStore) Remove(ctx context.Context, domain string) error {
	if err := s.r.Del(ctx, redisKeyPrefix+domain).Err(); err != nil {
		return fmt.Errorf("storage: redis del %s: %w", domain, err)
	}
	return nil
}
