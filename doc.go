// Package goTodo provides an authenticated client for the to-do HTTP API with
// transparent access-token refresh.
//
// Every request carries the stored access token as a bearer token. A 401
// caused by an expired token is recovered once: the client exchanges the
// stored refresh token for a new access token and replays the request a
// single time. If that refresh fails, stored credentials are cleared and the
// request ends [OutcomeUnauthenticated]. A 403 is never refreshed.
//
// A [Client] is built with [Builder.Build] and is safe to call from multiple
// goroutines. Each request owns its retry budget, so concurrent requests never
// block or cancel one another's refresh.
//
// # Architecture boundaries
//
// goTodo is the public surface. It exposes [Client], [Builder], [Config],
// [Result] and the typed to-do operations. Request dispatch and the refresh
// state machine live in internal/flows; credential persistence is the
// credential package.
//
// # What this package must NOT do
//
//   - Log or audit token values.
//   - Retry a request more than once, or refresh on anything but a 401.
//   - Call the [Navigator] from [Client.Send]; only [Client.Handle] does.
//   - Import any sub-package that re-imports goTodo (no import cycles).
package goTodo
