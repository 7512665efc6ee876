package goTodo

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/goTodo/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one session event: a refresh, a forced logout, a refused
// request or a sign-in. Token values are never recorded.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the client's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs each event through a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink returns a sink whose events are read from Events().
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink logging through l under the "audit" name.
func NewZapSink(l *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(l)
}

// WithRequestID returns a copy of ctx carrying id. Requests sent under it use
// id instead of a generated one, and audit events emitted under it, including
// the forced logout of [Client.Handle], are stamped with it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return internalaudit.WithRequestID(ctx, id)
}

// Audit event types.
const (
	AuditRefreshSuccess = "refresh_success"
	AuditRefreshFailure = "refresh_failure"
	AuditSessionExpired = "session_expired"
	AuditLogout         = "logout"
	AuditForbidden      = "forbidden"
	AuditLoginSuccess   = "login_success"
	AuditLoginFailure   = "login_failure"
	AuditPromoteSuccess = "promote_success"
)
