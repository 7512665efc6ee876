package goTodo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/goTodo/internal/flows"
	"github.com/MrEthical07/goTodo/jwt"
	"golang.org/x/oauth2"
)

// TokenSource exposes the stored session as an [oauth2.TokenSource], so
// other HTTP clients can call the API with the same credentials.
//
// Every Token call reads the credential store. When a refresh token is stored
// and the access token is missing, or is a JWT expiring within
// Config.Refresh.Leeway, the token is refreshed first. A failed refresh
// clears the store and returns an error wrapping [ErrSessionExpired].
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &storeTokenSource{ctx: ctx, client: c}
}

// HTTPClient returns an *http.Client that authorizes every request with
// [Client.TokenSource]. Tokens are not cached: each request reads the store,
// so a refresh by [Client.Send] or a logout is seen by the next request, and
// an empty store fails the request with [ErrUnauthenticated]. It performs no
// 401 recovery of its own.
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	if ctx == nil {
		ctx = context.Background()
	}
	base := http.DefaultTransport
	var timeout time.Duration
	if c != nil && c.http != nil {
		if c.http.Transport != nil {
			base = c.http.Transport
		}
		timeout = c.http.Timeout
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: c.TokenSource(ctx), Base: base},
		Timeout:   timeout,
	}
}

type storeTokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	c := s.client
	if !c.ready() {
		return nil, ErrClientNotReady
	}

	cred, err := c.store.Load(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	access := cred.AccessToken
	stale := access == "" || jwt.ExpiresWithin(access, c.config.Refresh.Leeway, time.Now())
	if stale && cred.RefreshToken != "" {
		rr := c.flows.Refresh(s.ctx)
		c.onRefresh(s.ctx, nil, rr)
		if rr.Failure != flows.RefreshFailureNone {
			reason := refreshReason(flows.SendResult{Refresh: &rr, Err: rr.Err})
			return nil, fmt.Errorf("%w: %w: %w", ErrUnauthenticated, ErrSessionExpired, reason)
		}
		access = rr.AccessToken
	}
	if access == "" {
		return nil, ErrUnauthenticated
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if claims, err := jwt.Inspect(access); err == nil && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return tok, nil
}
