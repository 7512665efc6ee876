// Package credential provides the client-side credential store: the access
// token, refresh token and user role that authenticate calls to the to-do API.
//
// # Storage layout
//
// Every backend persists the same three string values under the keys
// [KeyAccessToken], [KeyRefreshToken] and [KeyUserRole]. The in-memory store
// keeps them in a map, the file store writes them as a flat JSON object and
// the Redis store writes them as plain string keys under a prefix.
//
// # Architecture boundaries
//
// This package owns credential persistence only. It does NOT issue network
// calls to the API, decide when a token must be refreshed, or interpret JWT
// claims; those belong to the client flows.
//
// # What this package must NOT do
//
//   - Import goTodo, jwt, or internal/flows (no upward imports).
//   - Log or otherwise expose token values.
//   - Mutate state on read.
package credential
