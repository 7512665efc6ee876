package goTodo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/goTodo/credential"
)

// Login signs in with email and password and stores the issued tokens and
// role. The call never carries a stored token and never triggers a refresh.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	if !c.ready() {
		return LoginResponse{}, ErrClientNotReady
	}

	res := c.sendAnonymous(ctx, http.MethodPost, c.config.API.authPath("/signin"), map[string]string{
		"email":    email,
		"password": password,
	})
	var lr LoginResponse
	if err := res.Decode(&lr); err != nil {
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, AuditLoginFailure, false, nil, res.Status, err, nil)
		return LoginResponse{}, err
	}
	if lr.Token == "" {
		c.metricInc(MetricLoginFailure)
		err := fmt.Errorf("%w: sign-in response has no token", ErrDecode)
		c.emitAudit(ctx, AuditLoginFailure, false, nil, res.Status, err, nil)
		return LoginResponse{}, err
	}

	cred := credential.Credential{
		AccessToken:  lr.Token,
		RefreshToken: lr.RefreshToken,
		Role:         credential.ParseRole(lr.Role),
	}
	if err := c.store.Save(ctx, cred); err != nil {
		return LoginResponse{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	c.metricInc(MetricLoginSuccess)
	c.emitAudit(ctx, AuditLoginSuccess, true, nil, res.Status, nil, func() map[string]string {
		return map[string]string{"role": string(cred.Role)}
	})
	return lr, nil
}

// SignUp registers a new account. It does not sign in.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) error {
	if !c.ready() {
		return ErrClientNotReady
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrBadRequest)
	}
	res := c.sendAnonymous(ctx, http.MethodPost, c.config.API.authPath(""), req)
	return res.Err
}

// CheckEmail reports whether email is already registered.
func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	if !c.ready() {
		return false, ErrClientNotReady
	}
	res := c.sendAnonymous(ctx, http.MethodGet, c.config.API.authPath("/check?email="+url.QueryEscape(email)), nil)
	var taken bool
	if err := res.Decode(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// Promote upgrades the account to premium. On success the new access token
// and role replace the stored ones. An account that is already premium fails
// with an error wrapping [ErrBadRequest].
func (c *Client) Promote(ctx context.Context) (PromoteResponse, error) {
	if !c.ready() {
		return PromoteResponse{}, ErrClientNotReady
	}

	pr, err := handleJSON[PromoteResponse](ctx, c, http.MethodPut, c.config.API.authPath("/promote"), nil)
	if err != nil {
		return PromoteResponse{}, err
	}
	if pr.Token == "" {
		return PromoteResponse{}, fmt.Errorf("%w: promote response has no token", ErrDecode)
	}

	role := credential.ParseRole(pr.Role)
	if err := c.store.Update(ctx, credential.Credential{AccessToken: pr.Token, Role: role}); err != nil {
		return PromoteResponse{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	c.metricInc(MetricPromoteSuccess)
	c.emitAudit(ctx, AuditPromoteSuccess, true, nil, http.StatusOK, nil, func() map[string]string {
		return map[string]string{"role": string(role)}
	})
	return pr, nil
}
