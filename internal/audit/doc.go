// Package audit implements async event dispatching for session events of the
// client: refreshes, forced logouts, refused requests, sign-ins.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, request, status, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the root client does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goTodo or any sibling internal package.
//   - Record token values.
package audit
