// Package devapi is an in-process implementation of the to-do API for local
// runs and end-to-end tests.
//
// Users and to-dos live in memory. Refresh sessions and throttling counters
// live in Redis, so a miniredis instance is enough to run it. Access tokens
// are JWTs issued by a [jwt.Manager]; refresh tokens are opaque.
//
// Error bodies are {"code": <status>, "message": <tag>}. A missing bearer
// token is answered with INVALID_AUTH and a bad or expired one with
// EXPIRED_TOKEN, which is what clients key their refresh decision on.
//
// # What this package must NOT do
//
//   - Import the goTodo client package.
//   - Persist anything to disk.
package devapi
