package flows

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goTodo/credential"
	"github.com/MrEthical07/goTodo/jwt"
)

// fakeAPI accepts exactly one access token and issues newAccess on refresh.
type fakeAPI struct {
	mu            sync.Mutex
	validAccess   string
	validRefresh  string
	newAccess     string
	refreshStatus int
	forbidden     bool
	invalidAuth   bool

	refreshCalls  atomic.Int32
	apiCalls      atomic.Int32
	authHeaders   []string
	refreshBodies []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.refreshBodies = append(f.refreshBodies, body["refreshToken"]+"|"+r.Header.Get("Authorization"))
		status := f.refreshStatus
		ok := body["refreshToken"] == f.validRefresh
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"INVALID_REFRESH"}`))
			return
		}
		f.mu.Lock()
		f.validAccess = f.newAccess
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": f.newAccess})
	})
	mux.HandleFunc("/api/todos/", func(w http.ResponseWriter, r *http.Request) {
		f.serveTodos(w, r)
	})
	mux.HandleFunc("/api/todos", func(w http.ResponseWriter, r *http.Request) {
		f.serveTodos(w, r)
	})
	return mux
}

func (f *fakeAPI) serveTodos(w http.ResponseWriter, r *http.Request) {
	f.apiCalls.Add(1)
	auth := r.Header.Get("Authorization")

	f.mu.Lock()
	f.authHeaders = append(f.authHeaders, auth)
	valid := auth == "Bearer "+f.validAccess
	forbidden := f.forbidden
	invalidAuth := f.invalidAuth
	f.mu.Unlock()

	switch {
	case invalidAuth:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"INVALID_AUTH"}`))
	case forbidden:
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"premium only"}`))
	case auth != "" && !valid:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"EXPIRED"}`))
	default:
		_, _ = w.Write([]byte(`{"todos":[{"id":"1","title":"milk","done":false}]}`))
	}
}

func (f *fakeAPI) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func newSendDeps(srv *httptest.Server, store credential.Store) SendDeps {
	return SendDeps{
		Dispatch: DispatchDeps{
			BaseURL: srv.URL,
			HTTP:    srv.Client(),
			Store:   store,
		},
		Refresh: RefreshDeps{
			URL:             srv.URL + "/api/auth/refresh",
			HTTP:            srv.Client(),
			Store:           store,
			TokenKeys:       []string{"accessToken", "assessToken"},
			RefreshTokenKey: "refreshToken",
		},
		InvalidAuthMessage: "INVALID_AUTH",
	}
}

func mustRequest(t *testing.T, method, path string, body any) *PendingRequest {
	t.Helper()
	req, err := NewPendingRequest(method, path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestDispatchWithoutTokenSendsNoAuthorization(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{})
	res := RunSend(context.Background(), mustRequest(t, http.MethodGet, "/api/todos", nil), newSendDeps(srv, store))

	if res.State != StateSucceeded {
		t.Fatalf("expected success, got %s: %v", res.State, res.Err)
	}
	if got := api.headers(); len(got) != 1 || got[0] != "" {
		t.Fatalf("expected one request without Authorization, got %q", got)
	}

	var payload struct {
		Todos []map[string]any `json:"todos"`
	}
	if err := json.Unmarshal(res.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Todos) != 1 || payload.Todos[0]["title"] != "milk" {
		t.Fatalf("payload must be passed through unchanged, got %s", res.Payload)
	}
}

func TestDispatchAttachesBearerExactly(t *testing.T) {
	api := &fakeAPI{validAccess: "tok-1"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "tok-1"})
	if _, err := RunDispatch(context.Background(), mustRequest(t, http.MethodGet, "/api/todos", nil), newSendDeps(srv, store).Dispatch); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := api.headers(); len(got) != 1 || got[0] != "Bearer tok-1" {
		t.Fatalf("expected exactly %q, got %q", "Bearer tok-1", got)
	}
}

func TestDispatchNon200IsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"already premium"}`))
	}))
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{})
	_, err := RunDispatch(context.Background(), mustRequest(t, http.MethodPut, "/api/auth/promote", nil), newSendDeps(srv, store).Dispatch)

	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if he.Status != http.StatusBadRequest || he.Message != "already premium" {
		t.Fatalf("unexpected error: %+v", he)
	}
}

func TestDispatchCreatedIsNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := RunDispatch(context.Background(), mustRequest(t, http.MethodPost, "/x", nil), newSendDeps(srv, credential.NewMemoryStore(credential.Credential{})).Dispatch)
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusCreated {
		t.Fatalf("only 200 is success, got %v", err)
	}
}

func TestDispatchSendsJSONBodyAndRequestID(t *testing.T) {
	var gotBody, gotType, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		gotBody = buf.String()
		gotType = r.Header.Get("Content-Type")
		gotID = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(`{"todos":[]}`))
	}))
	defer srv.Close()

	req := mustRequest(t, http.MethodPatch, "/api/todos", map[string]any{"id": "5", "done": true})
	if _, err := RunDispatch(context.Background(), req, newSendDeps(srv, credential.NewMemoryStore(credential.Credential{})).Dispatch); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if gotBody != `{"done":true,"id":"5"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if gotType != "application/json" {
		t.Fatalf("unexpected content type %q", gotType)
	}
	if gotID != req.ID || gotID == "" {
		t.Fatalf("expected request id %q, got %q", req.ID, gotID)
	}
}

func TestDispatchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	deps := newSendDeps(srv, credential.NewMemoryStore(credential.Credential{}))
	srv.Close()

	_, err := RunDispatch(context.Background(), mustRequest(t, http.MethodGet, "/api/todos", nil), deps.Dispatch)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestDispatchInvalidJSONIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := RunDispatch(context.Background(), mustRequest(t, http.MethodGet, "/", nil), newSendDeps(srv, credential.NewMemoryStore(credential.Credential{})).Dispatch)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSendRefreshesOnceAndReplaysWithNewToken(t *testing.T) {
	api := &fakeAPI{validAccess: "fresh", validRefresh: "r-1", newAccess: "fresh"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "stale", RefreshToken: "r-1", Role: credential.RoleCommon})
	req := mustRequest(t, http.MethodDelete, "/api/todos/5", nil)
	res := RunSend(context.Background(), req, newSendDeps(srv, store))

	if res.State != StateRetried {
		t.Fatalf("expected retried, got %s: %v", res.State, res.Err)
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if got := api.headers(); len(got) != 2 || got[0] != "Bearer stale" || got[1] != "Bearer fresh" {
		t.Fatalf("expected original + one replay with new token, got %q", got)
	}
	if !req.Attempted() {
		t.Fatalf("retry flag must be set after a refresh")
	}

	cred, _ := store.Load(context.Background())
	if cred.AccessToken != "fresh" || cred.RefreshToken != "r-1" || cred.Role != credential.RoleCommon {
		t.Fatalf("unexpected stored credential: %+v", cred)
	}
	if body := api.refreshBodies[0]; body != "r-1|" {
		t.Fatalf("refresh must carry the refresh token and no Authorization, got %q", body)
	}
}

func TestSendGuardStopsSecondRefresh(t *testing.T) {
	api := &fakeAPI{validAccess: "x", validRefresh: "r-1", newAccess: "y"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "stale", RefreshToken: "r-1"})
	req := mustRequest(t, http.MethodGet, "/api/todos", nil)
	req.MarkAttempted()

	res := RunSend(context.Background(), req, newSendDeps(srv, store))
	if res.State != StateFailed || !res.GuardTripped {
		t.Fatalf("expected guard to fail the request, got %+v", res)
	}
	if got := api.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected zero refresh calls, got %d", got)
	}
	var he *HTTPError
	if !errors.As(res.Err, &he) || he.Status != http.StatusUnauthorized {
		t.Fatalf("expected the 401 to propagate, got %v", res.Err)
	}
}

func TestSendReplay401IsNotRefreshedAgain(t *testing.T) {
	var refreshCalls, apiCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		_, _ = w.Write([]byte(`{"accessToken":"still-rejected"}`))
	})
	mux.HandleFunc("/api/todos", func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "stale", RefreshToken: "r-1"})
	res := RunSend(context.Background(), mustRequest(t, http.MethodGet, "/api/todos", nil), newSendDeps(srv, store))

	if res.State != StateFailed {
		t.Fatalf("expected failed after single replay, got %s", res.State)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Fatalf("expected original + one replay, got %d", got)
	}
}

func TestSendRefreshFailureClearsTokens(t *testing.T) {
	api := &fakeAPI{validAccess: "x", validRefresh: "other", newAccess: "y"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "stale", RefreshToken: "bad", Role: credential.RoleCommon})
	res := RunSend(context.Background(), mustRequest(t, http.MethodGet, "/api/todos", nil), newSendDeps(srv, store))

	if res.State != StateLoggedOut {
		t.Fatalf("expected logged out, got %s", res.State)
	}
	if res.Refresh == nil || res.Refresh.Failure != RefreshFailureRejected || !res.Refresh.Cleared {
		t.Fatalf("unexpected refresh result: %+v", res.Refresh)
	}
	cred, _ := store.Load(context.Background())
	if !cred.Empty() {
		t.Fatalf("expected both tokens cleared, got %+v", cred)
	}
	if got := api.apiCalls.Load(); got != 1 {
		t.Fatalf("no replay after failed refresh, got %d api calls", got)
	}
}

func TestSendRefreshTransportFailureClearsTokens(t *testing.T) {
	api := &fakeAPI{validAccess: "x"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "stale", RefreshToken: "r"})
	deps := newSendDeps(srv, store)
	deps.Refresh.URL = "http://127.0.0.1:1/api/auth/refresh"

	res := RunSend(context.Background(), mustRequest(t, http.MethodGet, "/api/todos", nil), deps)
	if res.State != StateLoggedOut || res.Refresh.Failure != RefreshFailureTransport {
		t.Fatalf("unexpected result: %+v", res)
	}
	if cred, _ := store.Load(context.Background()); !cred.Empty() {
		t.Fatalf("expected cleared store, got %+v", cred)
	}
}

func TestSendForbiddenNoRefresh(t *testing.T) {
	api := &fakeAPI{validAccess: "tok", forbidden: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	initial := credential.Credential{AccessToken: "tok", RefreshToken: "r", Role: credential.RoleCommon}
	store := credential.NewMemoryStore(initial)
	res := RunSend(context.Background(), mustRequest(t, http.MethodPut, "/api/todos", nil), newSendDeps(srv, store))

	var he *HTTPError
	if res.State != StateFailed || !errors.As(res.Err, &he) || he.Status != http.StatusForbidden {
		t.Fatalf("expected 403 failure, got %+v", res)
	}
	if api.refreshCalls.Load() != 0 {
		t.Fatalf("403 must not trigger a refresh")
	}
	if cred, _ := store.Load(context.Background()); cred != initial {
		t.Fatalf("store must be unchanged, got %+v", cred)
	}
}

func TestSendInvalidAuthPropagatesImmediately(t *testing.T) {
	api := &fakeAPI{invalidAuth: true, validRefresh: "r"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{RefreshToken: "r"})
	req := mustRequest(t, http.MethodGet, "/api/todos", nil)
	res := RunSend(context.Background(), req, newSendDeps(srv, store))

	if res.State != StateFailed || !res.NoSession {
		t.Fatalf("expected no-session failure, got %+v", res)
	}
	if api.refreshCalls.Load() != 0 || req.Attempted() {
		t.Fatalf("INVALID_AUTH must not spend the retry budget")
	}
}

func TestSendConcurrentRequestsHaveIndependentBudgets(t *testing.T) {
	api := &fakeAPI{validAccess: "fresh", validRefresh: "r-1", newAccess: "fresh"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "stale", RefreshToken: "r-1"})
	deps := newSendDeps(srv, store)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan SendResult, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			req, _ := NewPendingRequest(http.MethodGet, "/api/todos", nil)
			results <- RunSend(context.Background(), req, deps)
		}()
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.State != StateSucceeded && res.State != StateRetried {
			t.Fatalf("every request must succeed on its own budget, got %s: %v", res.State, res.Err)
		}
	}
	if got := api.refreshCalls.Load(); got > workers {
		t.Fatalf("at most one refresh per request, got %d", got)
	}
}

func TestSendRotatedRefreshTokenIsStored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"assessToken":"new-a","refreshToken":"new-r"}`))
	})
	mux.HandleFunc("/api/todos", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new-a" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"todos":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "old", RefreshToken: "old-r"})
	res := RunSend(context.Background(), mustRequest(t, http.MethodGet, "/api/todos", nil), newSendDeps(srv, store))
	if res.State != StateRetried {
		t.Fatalf("expected retried, got %s: %v", res.State, res.Err)
	}
	cred, _ := store.Load(context.Background())
	if cred.AccessToken != "new-a" || cred.RefreshToken != "new-r" {
		t.Fatalf("unexpected stored credential %+v", cred)
	}
}

func TestSendProactiveRefreshUsesBudget(t *testing.T) {
	m, err := jwt.NewManager(jwt.Config{AccessTTL: time.Minute, SigningMethod: jwt.MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	expired, _ := m.CreateAccessWithTTL("u", "", "", -time.Minute)

	api := &fakeAPI{validAccess: "fresh", validRefresh: "r-1", newAccess: "fresh"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: expired, RefreshToken: "r-1"})
	deps := newSendDeps(srv, store)
	deps.Proactive = true
	deps.Leeway = 10 * time.Second

	req := mustRequest(t, http.MethodGet, "/api/todos", nil)
	res := RunSend(context.Background(), req, deps)
	if res.State != StateRetried {
		t.Fatalf("expected retried state, got %s: %v", res.State, res.Err)
	}
	if got := api.headers(); len(got) != 1 || got[0] != "Bearer fresh" {
		t.Fatalf("expected a single dispatch with the fresh token, got %q", got)
	}
	if api.refreshCalls.Load() != 1 || !req.Attempted() {
		t.Fatalf("proactive refresh must spend the budget exactly once")
	}
}

func TestPendingRequestFlagIsOneShot(t *testing.T) {
	req := mustRequest(t, http.MethodGet, "/", nil)
	if req.Attempted() {
		t.Fatalf("new request must not be attempted")
	}
	if !req.MarkAttempted() {
		t.Fatalf("first mark must succeed")
	}
	if req.MarkAttempted() {
		t.Fatalf("second mark must fail")
	}
	if !req.Attempted() {
		t.Fatalf("flag must stay set")
	}
}

func TestJoinURL(t *testing.T) {
	cases := []struct{ base, path, want string }{
		{"http://localhost:8181", "/api/todos", "http://localhost:8181/api/todos"},
		{"http://localhost:8181/", "api/todos", "http://localhost:8181/api/todos"},
		{"http://localhost:8181", "https://other/x", "https://other/x"},
		{"http://localhost:8181", "", "http://localhost:8181"},
	}
	for _, tc := range cases {
		if got := JoinURL(tc.base, tc.path); got != tc.want {
			t.Fatalf("JoinURL(%q,%q): expected %q, got %q", tc.base, tc.path, tc.want, got)
		}
	}
}

func TestDispatchAnonymousIgnoresStoredToken(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := credential.NewMemoryStore(credential.Credential{AccessToken: "tok"})
	req := mustRequest(t, http.MethodGet, "/api/todos", nil)
	req.Anonymous = true
	if _, err := RunDispatch(context.Background(), req, newSendDeps(srv, store).Dispatch); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := api.headers(); len(got) != 1 || got[0] != "" {
		t.Fatalf("anonymous request must not carry Authorization, got %q", got)
	}
}
