// Package middleware guards API routes with bearer access tokens issued by a
// [jwt.Manager].
//
// # Guards
//
//   - [Guard]: net/http middleware.
//   - [GinGuard]: the same checks as a gin handler.
//   - [RequireRole], [GinRequireRole]: reject authenticated callers whose role
//     is not allowed, with 403.
//
// A request without a bearer token gets 401 {"message":"INVALID_AUTH"}; a
// token that fails verification, including an expired one, gets
// 401 {"message":"EXPIRED_TOKEN"}. Clients refresh only on the second kind.
//
// # What this package must NOT do
//
//   - Issue tokens or touch refresh tokens.
//   - Answer 401 for authorization failures; those are 403.
package middleware
