package credential

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(rdb, "gt"), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

type storeCase struct {
	name  string
	store func(t *testing.T) (Store, func())
}

func allStores() []storeCase {
	return []storeCase{
		{name: "memory", store: func(t *testing.T) (Store, func()) {
			return NewMemoryStore(Credential{}), func() {}
		}},
		{name: "file", store: func(t *testing.T) (Store, func()) {
			return NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json")), func() {}
		}},
		{name: "redis", store: func(t *testing.T) (Store, func()) {
			s, _, done := newRedisStoreTest(t)
			return s, done
		}},
	}
}

func TestStoreEmptyLoadIsZero(t *testing.T) {
	for _, tc := range allStores() {
		t.Run(tc.name, func(t *testing.T) {
			s, done := tc.store(t)
			defer done()

			c, err := s.Load(context.Background())
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !c.Empty() || c.Authenticated() {
				t.Fatalf("expected empty credential, got %+v", c)
			}
		})
	}
}

func TestStoreSaveUpdateClear(t *testing.T) {
	for _, tc := range allStores() {
		t.Run(tc.name, func(t *testing.T) {
			s, done := tc.store(t)
			defer done()
			ctx := context.Background()

			if err := s.Save(ctx, Credential{AccessToken: "a1", RefreshToken: "r1", Role: RoleCommon}); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := s.Update(ctx, Credential{AccessToken: "a2"}); err != nil {
				t.Fatalf("update: %v", err)
			}

			c, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if c.AccessToken != "a2" || c.RefreshToken != "r1" || c.Role != RoleCommon {
				t.Fatalf("unexpected credential after update: %+v", c)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			c, err = s.Load(ctx)
			if err != nil {
				t.Fatalf("load after clear: %v", err)
			}
			if !c.Empty() {
				t.Fatalf("expected cleared credential, got %+v", c)
			}
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("second clear must be idempotent: %v", err)
			}
		})
	}
}

func TestStoreSaveReplacesMissingFields(t *testing.T) {
	for _, tc := range allStores() {
		t.Run(tc.name, func(t *testing.T) {
			s, done := tc.store(t)
			defer done()
			ctx := context.Background()

			_ = s.Save(ctx, Credential{AccessToken: "a1", RefreshToken: "r1", Role: RolePremium})
			if err := s.Save(ctx, Credential{AccessToken: "a2"}); err != nil {
				t.Fatalf("save: %v", err)
			}
			c, _ := s.Load(ctx)
			if c.RefreshToken != "" || c.Role != RoleNone {
				t.Fatalf("save must overwrite every field, got %+v", c)
			}
		})
	}
}

func TestStoreConcurrentUpdates(t *testing.T) {
	for _, tc := range allStores() {
		t.Run(tc.name, func(t *testing.T) {
			s, done := tc.store(t)
			defer done()
			ctx := context.Background()
			_ = s.Save(ctx, Credential{RefreshToken: "r"})

			const workers = 16
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					if err := s.Update(ctx, Credential{AccessToken: "tok"}); err != nil {
						t.Errorf("update: %v", err)
					}
				}()
			}
			wg.Wait()

			c, _ := s.Load(ctx)
			if c.AccessToken != "tok" || c.RefreshToken != "r" {
				t.Fatalf("unexpected credential: %+v", c)
			}
		})
	}
}

func TestRedisStoreKeyLayout(t *testing.T) {
	s, mr, done := newRedisStoreTest(t)
	defer done()

	if err := s.Save(context.Background(), Credential{AccessToken: "a", RefreshToken: "r", Role: RoleAdmin}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for key, want := range map[string]string{
		"gt:ACCESS_TOKEN":  "a",
		"gt:REFRESH_TOKEN": "r",
		"gt:USER_ROLE":     "ADMIN",
	} {
		got, err := mr.Get(key)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		if got != want {
			t.Fatalf("%s: expected %q, got %q", key, want, got)
		}
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr, done := newRedisStoreTest(t)
	defer done()
	mr.Close()

	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected error from closed redis")
	}
}

func TestFileStoreWritesLocalStorageShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s := NewFileStore(path)
	if err := s.Save(context.Background(), Credential{AccessToken: "a", Role: RoleCommon}); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "{\n  \"ACCESS_TOKEN\": \"a\",\n  \"USER_ROLE\": \"COMMON\"\n}"
	if string(data) != want {
		t.Fatalf("unexpected file content:\n%s", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Fatalf("expected corrupt file error")
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"":        RoleNone,
		"common":  RoleCommon,
		"PREMIUM": RolePremium,
		" Admin ": RoleAdmin,
		"GOLD":    Role("GOLD"),
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Fatalf("ParseRole(%q): expected %q, got %q", in, want, got)
		}
	}
	if Role("GOLD").Known() {
		t.Fatalf("GOLD must not be a known role")
	}
}
