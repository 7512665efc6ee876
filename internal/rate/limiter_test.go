package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestSignInBudget(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxSignInAttempts: 3, SignInCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.FailSignIn(ctx, "Ann@x.io", ""); err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
	}
	if err := l.CheckSignIn(ctx, "ann@x.io", ""); err != nil {
		t.Fatalf("still within budget: %v", err)
	}
	if err := l.FailSignIn(ctx, "ann@x.io", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third failure should exhaust budget, got %v", err)
	}
	if err := l.CheckSignIn(ctx, "ann@x.io", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	if n, _ := l.SignInAttempts(ctx, "ANN@x.io"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.CheckSignIn(ctx, "ann@x.io", ""); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestSignInResetAndIP(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxSignInAttempts: 1, SignInCooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.FailSignIn(ctx, "a@x.io", "10.0.0.1")
	if err := l.CheckSignIn(ctx, "b@x.io", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("ip budget should be shared, got %v", err)
	}
	if err := l.ResetSignIn(ctx, "a@x.io", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckSignIn(ctx, "a@x.io", "10.0.0.1"); err != nil {
		t.Fatalf("reset should clear counters: %v", err)
	}
}

func TestRefreshBudget(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxRefreshAttempts: 2, RefreshCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.AllowRefresh(ctx, "sid"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.AllowRefresh(ctx, "sid"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	if err := l.AllowRefresh(ctx, "other"); err != nil {
		t.Fatalf("other session unaffected: %v", err)
	}
}

func TestDisabledLimitsAndRedisDown(t *testing.T) {
	l, mr := newLimiter(t, Config{})
	ctx := context.Background()
	mr.Close()

	if err := l.FailSignIn(ctx, "a@x.io", ""); err != nil {
		t.Fatalf("disabled limiter must not touch redis: %v", err)
	}

	l2 := New(l.redis, Config{MaxRefreshAttempts: 1})
	if err := l2.AllowRefresh(ctx, "sid"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
