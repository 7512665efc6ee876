package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter budgets. A zero Max disables that limit.
type Config struct {
	Prefix string

	MaxSignInAttempts int
	SignInCooldown    time.Duration
	EnableIPThrottle  bool

	MaxRefreshAttempts int
	RefreshCooldown    time.Duration
}

// Limiter counts sign-in failures and refresh calls in Redis fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gotodo"
	}
	return &Limiter{
		redis:  client,
		config: cfg,
	}
}

// CheckSignIn fails with [ErrRateLimited] once email, or ip when IP
// throttling is on, has used up its failure budget.
func (l *Limiter) CheckSignIn(ctx context.Context, email, ip string) error {
	if l.config.MaxSignInAttempts <= 0 {
		return nil
	}
	for _, key := range l.signInKeys(email, ip) {
		if err := l.checkCounter(ctx, key, l.config.MaxSignInAttempts); err != nil {
			return err
		}
	}
	return nil
}

// FailSignIn records a failed sign-in. It returns [ErrRateLimited] when the
// failure exhausted the budget.
func (l *Limiter) FailSignIn(ctx context.Context, email, ip string) error {
	if l.config.MaxSignInAttempts <= 0 {
		return nil
	}
	var limited bool
	for _, key := range l.signInKeys(email, ip) {
		count, err := l.incrementWithTTL(ctx, key, l.config.SignInCooldown)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxSignInAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetSignIn forgets recorded failures after a successful sign-in.
func (l *Limiter) ResetSignIn(ctx context.Context, email, ip string) error {
	if l.config.MaxSignInAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, l.signInKeys(email, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// AllowRefresh counts one refresh for sessionID and fails with
// [ErrRateLimited] past the budget.
func (l *Limiter) AllowRefresh(ctx context.Context, sessionID string) error {
	if l.config.MaxRefreshAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.key("rl:refresh", sessionID), l.config.RefreshCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// SignInAttempts returns the recorded failures for email. Unknown emails
// return zero.
func (l *Limiter) SignInAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, l.key("rl:signin", normalize(email))).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) signInKeys(email, ip string) []string {
	keys := []string{l.key("rl:signin", normalize(email))}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.key("rl:signin-ip", ip))
	}
	return keys
}

func (l *Limiter) key(kind, id string) string {
	return l.config.Prefix + ":" + kind + ":" + id
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) checkCounter(ctx context.Context, key string, max int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(max) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the first hit starts it.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
