// Package rate throttles sign-in failures and refresh calls of the
// development API server with Redis fixed-window counters.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit. Keys, under the configured prefix:
//   - rl:signin:<email>
//   - rl:signin-ip:<ip>
//   - rl:refresh:<session id>
//
// # What this package must NOT do
//
//   - Decide what a throttled caller is told; handlers map [ErrRateLimited].
package rate
