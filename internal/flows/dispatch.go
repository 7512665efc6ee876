package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goTodo/credential"
)

const defaultMaxBodyBytes = 1 << 20

// Doer is the transport used by the flows; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DispatchDeps captures Request Dispatcher dependencies.
type DispatchDeps struct {
	BaseURL      string
	HTTP         Doer
	Store        credential.Store
	UserAgent    string
	MaxBodyBytes int64
	Observe      func(status int, d time.Duration)
}

// RunDispatch sends req with the current access token attached and returns
// the raw JSON payload of a 200 response. Any other status yields
// *HTTPError; the Dispatcher does not interpret status codes further and
// never mutates the credential store.
func RunDispatch(ctx context.Context, req *PendingRequest, deps DispatchDeps) (json.RawMessage, error) {
	token := req.Bearer()
	if token == "" && !req.Anonymous {
		cred, err := deps.Store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		token = cred.AccessToken
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, JoinURL(deps.BaseURL, req.Path), req.bodyReader())
	if err != nil {
		return nil, err
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.ID != "" {
		httpReq.Header.Set("X-Request-ID", req.ID)
	}
	if deps.UserAgent != "" {
		httpReq.Header.Set("User-Agent", deps.UserAgent)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	status, body, err := roundTrip(deps.HTTP, httpReq, deps.MaxBodyBytes)
	if deps.Observe != nil {
		deps.Observe(status, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, newHTTPError(status, body)
	}
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrDecode)
	}
	return json.RawMessage(body), nil
}

// JoinURL appends path to base. Absolute http(s) URLs are used unchanged.
func JoinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func roundTrip(client Doer, req *http.Request, limit int64) (int, []byte, error) {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return resp.StatusCode, body, nil
}
