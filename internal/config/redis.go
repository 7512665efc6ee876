package config

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// MiniRedis is the Redis address that selects an in-process miniredis.
const MiniRedis = "mini"

// OpenRedis connects to the configured Redis and pings it. The returned
// close function releases the client and, for "mini", stops the embedded
// server.
func (c *Config) OpenRedis(ctx context.Context) (redis.UniversalClient, func(), error) {
	addr := c.Redis.Addr
	var mr *miniredis.Miniredis
	if addr == MiniRedis {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	closeFn := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, closeFn, nil
}
