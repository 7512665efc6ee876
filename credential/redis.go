package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the credential in Redis as three string keys under a
// prefix, e.g. "gotodo:ACCESS_TOKEN". Several CLI processes sharing one
// Redis therefore share one login.
//
//	Performance: Load is 1 MGET; Save, Update and Clear are single
//	MULTI/EXEC transactions.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. An empty prefix defaults to "gotodo".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gotodo"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) keys() []string {
	return []string{
		s.key(KeyAccessToken),
		s.key(KeyRefreshToken),
		s.key(KeyUserRole),
	}
}

func (s *RedisStore) Load(ctx context.Context) (Credential, error) {
	vals, err := s.redis.MGet(ctx, s.keys()...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Credential{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	m := make(map[string]string, 3)
	names := []string{KeyAccessToken, KeyRefreshToken, KeyUserRole}
	for i, v := range vals {
		if str, ok := v.(string); ok && i < len(names) {
			m[names[i]] = str
		}
	}
	return fromMap(m), nil
}

func (s *RedisStore) Save(ctx context.Context, c Credential) error {
	m := c.toMap()
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys()...)
		for k, v := range m {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, patch Credential) error {
	m := patch.toMap()
	if len(m) == 0 {
		return nil
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range m {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.keys()...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
