package goTodo

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goTodo/internal/flows"
)

// AuditErrorCode is the redacted error classification stored in
// [AuditEvent.Error]. Raw error strings never reach audit sinks since they
// can echo server bodies.
type AuditErrorCode string

const (
	auditErrUnauthenticated AuditErrorCode = "unauthenticated"
	auditErrNoRefreshToken  AuditErrorCode = "no_refresh_token"
	auditErrRefreshRejected AuditErrorCode = "refresh_rejected"
	auditErrForbidden       AuditErrorCode = "forbidden"
	auditErrBadRequest      AuditErrorCode = "bad_request"
	auditErrNetwork         AuditErrorCode = "network"
	auditErrDecode          AuditErrorCode = "decode"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	req *flows.PendingRequest,
	status int,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Success:   success,
		Metadata:  metadata,
	}
	if req != nil {
		event.RequestID = req.ID
		event.Method = req.Method
		event.Path = req.Path
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

// auditErrorCode checks the most specific sentinels first; a session-expired
// error also wraps ErrUnauthenticated.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNoRefreshToken):
		return auditErrNoRefreshToken
	case errors.Is(err, ErrRefreshRejected):
		return auditErrRefreshRejected
	case errors.Is(err, ErrNetwork):
		return auditErrNetwork
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrBadRequest):
		return auditErrBadRequest
	case errors.Is(err, ErrDecode):
		return auditErrDecode
	default:
		return auditErrInternal
	}
}
