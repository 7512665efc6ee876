package goTodo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goTodo/credential"
	internalaudit "github.com/MrEthical07/goTodo/internal/audit"
	"github.com/MrEthical07/goTodo/internal/flows"
	"github.com/MrEthical07/goTodo/jwt"
	"go.uber.org/zap"
)

// Messages passed to [Navigator.Alert].
const (
	AlertSessionExpired = "Your session has expired. Please log in again."
	AlertForbidden      = "The server refused this request."
)

// Client is the authenticated to-do API client. It is safe for concurrent
// use once built.
type Client struct {
	config    Config
	baseURL   string
	store     credential.Store
	http      *http.Client
	flows     flows.Service
	navigator Navigator
	logger    *zap.Logger
	metrics   *Metrics
	audit     *internalaudit.Dispatcher

	closed atomic.Bool
}

func (c *Client) ready() bool {
	return c != nil && c.flows.Initialized() && !c.closed.Load()
}

// BaseURL returns the API base URL requests are sent to.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Store returns the credential store shared by every request.
func (c *Client) Store() credential.Store {
	if c == nil {
		return nil
	}
	return c.store
}

// Send issues one API call with the stored access token attached.
//
// A 401 caused by an expired access token is recovered transparently: the
// token is refreshed once and the call replayed once. When the refresh fails,
// stored credentials are cleared and the result is [OutcomeUnauthenticated].
// Send never calls the [Navigator]; use [Client.Handle] for that.
func (c *Client) Send(ctx context.Context, method, path string, body any) Result {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return Result{Kind: OutcomeOther, Err: err}
	}
	ctx = internalaudit.WithRequestID(ctx, req.ID)

	c.metricInc(MetricRequest)
	res := c.flows.Send(ctx, req)
	out := c.classify(res)
	c.record(ctx, req, res, out)
	return out
}

// sendAnonymous dispatches once without credentials or refresh handling.
func (c *Client) sendAnonymous(ctx context.Context, method, path string, body any) Result {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return Result{Kind: OutcomeOther, Err: err}
	}
	req.Anonymous = true
	ctx = internalaudit.WithRequestID(ctx, req.ID)

	c.metricInc(MetricRequest)
	payload, err := c.flows.Dispatch(ctx, req)
	res := flows.SendResult{State: flows.StateSucceeded, Payload: payload}
	if err != nil {
		res = flows.SendResult{State: flows.StateFailed, Err: err}
	}
	out := c.classify(res)
	c.record(ctx, req, res, out)
	return out
}

// newRequest adopts the request ID set by [WithRequestID], if any.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*flows.PendingRequest, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	req, err := flows.NewPendingRequest(method, path, body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	if id := internalaudit.RequestIDFromContext(ctx); id != "" {
		req.ID = id
	}
	return req, nil
}

// Handle runs call and reacts to its outcome the same way for every
// operation:
//
//   - success: onSuccess receives the payload;
//   - unauthenticated: credentials are cleared, then the navigator is told
//     OnLogout and Redirect(LoginPath), each exactly once;
//   - forbidden: the navigator shows an alert, credentials stay untouched;
//   - anything else: no side effects.
//
// onFailure, when non-nil, sees every failed result after the built-in
// reaction. The result is returned as well.
func (c *Client) Handle(ctx context.Context, call func(context.Context) Result, onSuccess func(json.RawMessage), onFailure func(Result)) Result {
	if !c.ready() {
		res := Result{Kind: OutcomeOther, Err: ErrClientNotReady}
		if onFailure != nil {
			onFailure(res)
		}
		return res
	}

	res := call(ctx)
	switch res.Kind {
	case OutcomeSuccess:
		if onSuccess != nil {
			onSuccess(res.Payload)
		}
		return res
	case OutcomeUnauthenticated:
		c.endSession(ctx, res)
	case OutcomeForbidden:
		msg := res.Message
		if msg == "" {
			msg = AlertForbidden
		}
		c.navigator.Alert(msg)
	}

	if onFailure != nil {
		onFailure(res)
	}
	return res
}

func (c *Client) endSession(ctx context.Context, res Result) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("credential clear on forced logout failed", zap.Error(err))
	}
	c.metricInc(MetricLogout)
	c.emitAudit(ctx, AuditLogout, true, nil, res.Status, nil, func() map[string]string {
		return map[string]string{"reason": "forced"}
	})
	c.logger.Info("session ended", zap.Int("status", res.Status), zap.Error(res.Err))

	c.navigator.Alert(AlertSessionExpired)
	c.navigator.OnLogout()
	c.navigator.Redirect(c.config.API.LoginPath)
}

// classify maps a coordinator result to the public outcome.
func (c *Client) classify(res flows.SendResult) Result {
	out := Result{
		Payload:   res.Payload,
		Refreshed: res.Refresh != nil && res.Refresh.Failure == flows.RefreshFailureNone,
	}

	switch res.State {
	case flows.StateSucceeded, flows.StateRetried:
		out.Kind = OutcomeSuccess
		out.Status = http.StatusOK
		return out
	case flows.StateLoggedOut:
		out.Kind = OutcomeUnauthenticated
		out.Status = http.StatusUnauthorized
		out.Err = fmt.Errorf("%w: %w: %w", ErrUnauthenticated, ErrSessionExpired, refreshReason(res))
		return out
	}

	var he *HTTPError
	if errors.As(res.Err, &he) {
		out.Status = he.Status
		out.Message = he.Message
		switch he.Status {
		case http.StatusUnauthorized:
			out.Kind = OutcomeUnauthenticated
			out.Err = fmt.Errorf("%w: %w", ErrUnauthenticated, res.Err)
		case http.StatusForbidden:
			out.Kind = OutcomeForbidden
			out.Err = fmt.Errorf("%w: %w", ErrForbidden, res.Err)
		case http.StatusBadRequest:
			out.Kind = OutcomeOther
			out.Err = fmt.Errorf("%w: %w", ErrBadRequest, res.Err)
		default:
			out.Kind = OutcomeOther
			out.Err = res.Err
		}
		return out
	}

	switch {
	case errors.Is(res.Err, flows.ErrTransport), errors.Is(res.Err, flows.ErrStore):
		out.Kind = OutcomeNetworkError
		out.Err = fmt.Errorf("%w: %w", ErrNetwork, res.Err)
	case errors.Is(res.Err, flows.ErrDecode):
		out.Kind = OutcomeOther
		out.Status = http.StatusOK
		out.Err = fmt.Errorf("%w: %w", ErrDecode, res.Err)
	default:
		out.Kind = OutcomeOther
		out.Err = res.Err
	}
	return out
}

func refreshReason(res flows.SendResult) error {
	if res.Refresh == nil {
		return res.Err
	}
	var sentinel error
	switch res.Refresh.Failure {
	case flows.RefreshFailureNoToken:
		sentinel = ErrNoRefreshToken
	case flows.RefreshFailureTransport, flows.RefreshFailureStore:
		sentinel = ErrNetwork
	default:
		sentinel = ErrRefreshRejected
	}
	return fmt.Errorf("%w: %w", sentinel, res.Err)
}

// record updates metrics, audit and logs for one finished request.
func (c *Client) record(ctx context.Context, req *flows.PendingRequest, res flows.SendResult, out Result) {
	if id, ok := OutcomeMetric(out.Kind); ok {
		c.metricInc(id)
	}
	if !out.OK() {
		c.metricInc(MetricRequestFailure)
	}
	if res.Replayed {
		c.metricInc(MetricReplay)
	}
	if res.GuardTripped {
		c.metricInc(MetricRetryGuardTripped)
	}
	if res.NoSession {
		c.metricInc(MetricInvalidAuth)
	}

	switch {
	case res.State == flows.StateLoggedOut:
		c.metricInc(MetricSessionExpired)
		c.emitAudit(ctx, AuditSessionExpired, false, req, out.Status, out.Err, func() map[string]string {
			if res.Refresh == nil {
				return nil
			}
			return map[string]string{"failure": res.Refresh.Failure.String()}
		})
	case out.Kind == OutcomeForbidden:
		c.emitAudit(ctx, AuditForbidden, false, req, out.Status, out.Err, nil)
	}

	if ce := c.logger.Check(zap.DebugLevel, "request finished"); ce != nil {
		ce.Write(
			zap.String("request_id", req.ID),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("state", res.State.String()),
			zap.Stringer("outcome", out.Kind),
			zap.Int("status", out.Status),
		)
	}
}

func (c *Client) onRefresh(ctx context.Context, req *flows.PendingRequest, rr flows.RefreshResult) {
	requestID := internalaudit.RequestIDFromContext(ctx)
	if req != nil {
		requestID = req.ID
	}

	if rr.Failure == flows.RefreshFailureNone {
		c.metricInc(MetricRefreshSuccess)
		c.emitAudit(ctx, AuditRefreshSuccess, true, req, rr.Status, nil, func() map[string]string {
			return map[string]string{"rotated": fmt.Sprint(rr.RefreshToken != "")}
		})
		c.logger.Debug("access token refreshed", zap.String("request_id", requestID))
		return
	}

	c.metricInc(MetricRefreshFailure)
	reason := refreshReason(flows.SendResult{Refresh: &rr, Err: rr.Err})
	c.emitAudit(ctx, AuditRefreshFailure, false, req, rr.Status, reason, func() map[string]string {
		return map[string]string{
			"failure": rr.Failure.String(),
			"cleared": fmt.Sprint(rr.Cleared),
		}
	})
	c.logger.Warn("access token refresh failed",
		zap.String("request_id", requestID),
		zap.Stringer("failure", rr.Failure),
		zap.Bool("cleared", rr.Cleared),
		zap.Error(rr.Err),
	)
}

func (c *Client) observeRoundTrip(_ int, d time.Duration) {
	c.metrics.Observe(MetricRequestLatency, d)
}

func (c *Client) metricInc(id MetricID) {
	if c == nil {
		return
	}
	c.metrics.Inc(id)
}

// Logout tells the server the session ends, then clears stored credentials
// and calls [Navigator.OnLogout]. A server failure is logged and does not
// keep credentials around.
func (c *Client) Logout(ctx context.Context) error {
	if !c.ready() {
		return ErrClientNotReady
	}

	cred, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if cred.Authenticated() {
		res := c.Handle(ctx, func(ctx context.Context) Result {
			return c.Send(ctx, http.MethodGet, c.config.API.authPath("/logout"), nil)
		}, nil, nil)
		if res.Kind == OutcomeUnauthenticated {
			// Handle already cleared the store and notified the navigator.
			return nil
		}
		if !res.OK() {
			c.logger.Warn("server logout failed", zap.Stringer("outcome", res.Kind), zap.Error(res.Err))
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	c.metricInc(MetricLogout)
	c.emitAudit(ctx, AuditLogout, true, nil, 0, nil, func() map[string]string {
		return map[string]string{"reason": "user"}
	})
	c.navigator.OnLogout()
	return nil
}

// Session reports the locally stored session. It performs no network call.
func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	if !c.ready() {
		return SessionInfo{}, ErrClientNotReady
	}
	cred, err := c.store.Load(ctx)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	info := SessionInfo{
		Authenticated:   cred.Authenticated(),
		HasRefreshToken: cred.RefreshToken != "",
		Role:            cred.Role,
	}
	if cred.AccessToken == "" {
		return info, nil
	}
	claims, err := jwt.Inspect(cred.AccessToken)
	if err != nil {
		return info, nil
	}
	info.Subject = claims.Subject
	info.Email = claims.Email
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if info.Role == credential.RoleNone && claims.Role != "" {
		info.Role = credential.ParseRole(claims.Role)
	}
	return info, nil
}

// MetricsSnapshot returns a copy of the client's counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events lost to a full buffer.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// Close flushes pending audit events. Later calls on the client fail with
// [ErrClientNotReady]. Close is idempotent.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.closed.Swap(true) {
		return
	}
	c.audit.Close()
	_ = c.logger.Sync()
}
