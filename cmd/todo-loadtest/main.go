// Command todo-loadtest drives many clients against an in-process API server
// and reports latency for plain requests and for requests that must refresh
// their access token first.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/credential"
	"github.com/MrEthical07/goTodo/internal/devapi"
	"github.com/MrEthical07/goTodo/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type userState struct {
	client *goTodo.Client
	store  *credential.MemoryStore
	mu     sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of signed-in users")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (list + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("todo-loadtest-signing-key-32byte"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jwt manager: %v\n", err)
		os.Exit(1)
	}
	api, err := devapi.New(devapi.Config{
		JWT:        manager,
		Redis:      client,
		KeyPrefix:  fmt.Sprintf("loadtest-%d", time.Now().UnixNano()),
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	httpClient := &http.Client{
		Timeout:   15 * time.Second,
		Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency},
	}

	states := make([]*userState, *users)
	fmt.Printf("signing in %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		st, err := newUser(ctx, srv.URL, httpClient, i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed user %d: %v\n", i, err)
			os.Exit(1)
		}
		defer st.client.Close()
		states[i] = st
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	listStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		st := states[r.Intn(len(states))]
		_, err := st.client.ListTodos(ctx)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		st := states[r.Intn(len(states))]
		// One request at a time per user so each measured call refreshes.
		st.mu.Lock()
		defer st.mu.Unlock()
		if err := expire(ctx, st.store, manager); err != nil {
			return err
		}
		_, err := st.client.ListTodos(ctx)
		return err
	})

	var refreshes, replays uint64
	for _, st := range states {
		snap := st.client.MetricsSnapshot()
		refreshes += snap.Counters[goTodo.MetricRefreshSuccess]
		replays += snap.Counters[goTodo.MetricReplay]
	}

	fmt.Println("---- results ----")
	printStats("list", listStats)
	printStats("refresh", refreshStats)
	fmt.Printf("refreshes=%d replays=%d\n", refreshes, replays)
}

func newUser(ctx context.Context, baseURL string, httpClient *http.Client, i int) (*userState, error) {
	cfg := goTodo.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.Metrics.Enabled = true

	store := credential.NewMemoryStore(credential.Credential{})
	c, err := goTodo.New().
		WithConfig(cfg).
		WithStore(store).
		WithHTTPClient(httpClient).
		Build()
	if err != nil {
		return nil, err
	}

	email := fmt.Sprintf("user-%d@loadtest.local", i)
	if err := c.SignUp(ctx, goTodo.SignUpRequest{Email: email, Password: "loadtest"}); err != nil {
		return nil, err
	}
	if _, err := c.Login(ctx, email, "loadtest"); err != nil {
		return nil, err
	}
	if _, err := c.CreateTodo(ctx, "item"); err != nil {
		return nil, err
	}
	return &userState{client: c, store: store}, nil
}

func expire(ctx context.Context, store credential.Store, manager *jwt.Manager) error {
	cred, err := store.Load(ctx)
	if err != nil {
		return err
	}
	claims, err := jwt.Inspect(cred.AccessToken)
	if err != nil {
		return err
	}
	expired, err := manager.CreateAccessWithTTL(claims.Subject, claims.Email, claims.Role, -time.Minute)
	if err != nil {
		return err
	}
	return store.Update(ctx, credential.Credential{AccessToken: expired})
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
