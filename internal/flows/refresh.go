package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goTodo/credential"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNoToken
	RefreshFailureStore
	RefreshFailureTransport
	RefreshFailureRejected
	RefreshFailureDecode
	RefreshFailureMissingAccess
)

func (k RefreshFailureKind) String() string {
	switch k {
	case RefreshFailureNone:
		return "none"
	case RefreshFailureNoToken:
		return "no_refresh_token"
	case RefreshFailureStore:
		return "store"
	case RefreshFailureTransport:
		return "transport"
	case RefreshFailureRejected:
		return "rejected"
	case RefreshFailureDecode:
		return "decode"
	case RefreshFailureMissingAccess:
		return "missing_access_token"
	default:
		return "unknown"
	}
}

// RefreshResult carries either the new tokens or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	Status       int
	AccessToken  string
	RefreshToken string
	// Cleared reports whether stored credentials were wiped after a failure.
	Cleared bool
}

// RefreshDeps captures refresh call dependencies.
type RefreshDeps struct {
	URL             string
	HTTP            Doer
	Store           credential.Store
	TokenKeys       []string
	RefreshTokenKey string
	UserAgent       string
	MaxBodyBytes    int64
	Warn            func(string, ...any)
}

// RunRefresh exchanges the stored refresh token for a new access token.
//
// The call goes straight to the transport with no Authorization header, so
// an expired access token is never presented to the refresh endpoint. On
// success the new access token (and a rotated refresh token, if the server
// sent one) replaces the stored value. On any failure both stored tokens are
// cleared.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	res := runRefresh(ctx, deps)
	if res.Failure == RefreshFailureNone {
		return res
	}

	if err := deps.Store.Clear(ctx); err != nil {
		warn(deps.Warn, "goTodo: credential clear after refresh failure failed", "error", err)
	} else {
		res.Cleared = true
	}
	return res
}

func runRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	cred, err := deps.Store.Load(ctx)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: fmt.Errorf("%w: %v", ErrStore, err)}
	}
	if cred.RefreshToken == "" {
		return RefreshResult{Failure: RefreshFailureNoToken, Err: errors.New("no refresh token stored")}
	}

	body, err := json.Marshal(map[string]string{"refreshToken": cred.RefreshToken})
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, deps.URL, bytes.NewReader(body))
	if err != nil {
		return RefreshResult{Failure: RefreshFailureTransport, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if deps.UserAgent != "" {
		httpReq.Header.Set("User-Agent", deps.UserAgent)
	}

	status, respBody, err := roundTrip(deps.HTTP, httpReq, deps.MaxBodyBytes)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureTransport, Err: err, Status: status}
	}
	if status != http.StatusOK {
		return RefreshResult{Failure: RefreshFailureRejected, Err: newHTTPError(status, respBody), Status: status}
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: fmt.Errorf("%w: %v", ErrDecode, err), Status: status}
	}

	access := firstString(payload, deps.TokenKeys)
	if access == "" {
		return RefreshResult{
			Failure: RefreshFailureMissingAccess,
			Err:     fmt.Errorf("%w: refresh response has none of %v", ErrDecode, deps.TokenKeys),
			Status:  status,
		}
	}
	rotated := ""
	if deps.RefreshTokenKey != "" {
		rotated = firstString(payload, []string{deps.RefreshTokenKey})
	}

	if err := deps.Store.Update(ctx, credential.Credential{AccessToken: access, RefreshToken: rotated}); err != nil {
		// The replay still carries the new token; only persistence is lost.
		warn(deps.Warn, "goTodo: storing refreshed access token failed", "error", err)
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		Status:       status,
		AccessToken:  access,
		RefreshToken: rotated,
	}
}

func firstString(payload map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func warn(fn func(string, ...any), msg string, kv ...any) {
	if fn != nil {
		fn(msg, kv...)
	}
}
