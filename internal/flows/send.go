package flows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goTodo/jwt"
)

// SendState is the terminal state of one request in the Refresh Coordinator.
type SendState int

const (
	// StateSucceeded: the first dispatch returned 200.
	StateSucceeded SendState = iota
	// StateRetried: a refresh happened and the replay returned 200.
	StateRetried
	// StateFailed: the failure is propagated unchanged.
	StateFailed
	// StateLoggedOut: the refresh failed and stored credentials were cleared.
	StateLoggedOut
)

func (s SendState) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StateRetried:
		return "retried"
	case StateFailed:
		return "failed"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// SendResult is the outcome of [RunSend].
type SendResult struct {
	State   SendState
	Payload json.RawMessage
	Err     error
	// Refresh is set when a refresh call was made for this request.
	Refresh *RefreshResult
	// GuardTripped reports a 401 that was not retried because the request
	// had already spent its retry budget.
	GuardTripped bool
	// NoSession reports a 401 tagged as "no session at all".
	NoSession bool
	// Replayed reports that the request was sent a second time after a
	// refresh.
	Replayed bool
}

// SendDeps captures Refresh Coordinator dependencies.
type SendDeps struct {
	Dispatch DispatchDeps
	Refresh  RefreshDeps
	// InvalidAuthMessage tags 401s that mean "never logged in"; those are
	// propagated without a refresh.
	InvalidAuthMessage string
	// Proactive refreshes before dispatch when the stored access token is a
	// JWT expiring within Leeway.
	Proactive bool
	Leeway    time.Duration
	Now       func() time.Time
	// OnRefresh observes every refresh attempt on the request's goroutine,
	// with the request's context.
	OnRefresh func(context.Context, *PendingRequest, RefreshResult)
	Warn      func(string, ...any)
}

// RunSend drives one request through the Refresh Coordinator state machine:
//
//	INITIAL -> 401, budget unspent   -> REFRESHING -> ok   -> replay once
//	                                             -> fail -> LOGGED_OUT
//	INITIAL -> non-401 failure       -> FAILED
//	INITIAL -> 401, budget spent     -> FAILED
//	INITIAL -> 401, INVALID_AUTH tag -> FAILED
func RunSend(ctx context.Context, req *PendingRequest, deps SendDeps) SendResult {
	var refreshed *RefreshResult

	if deps.Proactive && !req.Anonymous && !req.Attempted() && accessExpiring(ctx, deps) {
		req.MarkAttempted()
		rr := refresh(ctx, req, deps)
		refreshed = &rr
		if rr.Failure != RefreshFailureNone {
			return SendResult{State: StateLoggedOut, Err: rr.Err, Refresh: refreshed}
		}
		req.SetBearer(rr.AccessToken)
	}

	payload, err := RunDispatch(ctx, req, deps.Dispatch)
	if err == nil {
		state := StateSucceeded
		if refreshed != nil {
			state = StateRetried
		}
		return SendResult{State: state, Payload: payload, Refresh: refreshed}
	}

	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusUnauthorized {
		return SendResult{State: StateFailed, Err: err, Refresh: refreshed}
	}
	if deps.InvalidAuthMessage != "" && he.Message == deps.InvalidAuthMessage {
		return SendResult{State: StateFailed, Err: err, Refresh: refreshed, NoSession: true}
	}
	if !req.MarkAttempted() {
		return SendResult{State: StateFailed, Err: err, Refresh: refreshed, GuardTripped: true}
	}

	rr := refresh(ctx, req, deps)
	if rr.Failure != RefreshFailureNone {
		return SendResult{State: StateLoggedOut, Err: errors.Join(err, rr.Err), Refresh: &rr}
	}
	req.SetBearer(rr.AccessToken)

	payload, err = RunDispatch(ctx, req, deps.Dispatch)
	if err != nil {
		return SendResult{State: StateFailed, Err: err, Refresh: &rr, Replayed: true}
	}
	return SendResult{State: StateRetried, Payload: payload, Refresh: &rr, Replayed: true}
}

func refresh(ctx context.Context, req *PendingRequest, deps SendDeps) RefreshResult {
	rr := RunRefresh(ctx, deps.Refresh)
	if deps.OnRefresh != nil {
		deps.OnRefresh(ctx, req, rr)
	}
	return rr
}

func accessExpiring(ctx context.Context, deps SendDeps) bool {
	cred, err := deps.Dispatch.Store.Load(ctx)
	if err != nil {
		warn(deps.Warn, "goTodo: credential load for expiry check failed", "error", err)
		return false
	}
	if cred.AccessToken == "" {
		return false
	}
	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}
	return jwt.ExpiresWithin(cred.AccessToken, deps.Leeway, now)
}
