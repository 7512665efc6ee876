// Package internal holds packages that are private to goTodo.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: viper-backed settings for the binaries
//   - devapi: gin implementation of the to-do API used for local runs and tests
//   - flows: request dispatch, refresh and replay orchestration
//   - logger: zap logger construction
//   - rate: Redis fixed-window counters for sign-in and refresh throttling
//
// # What this package must NOT do
//
//   - Export types that appear in the public goTodo API.
//   - Be imported by any package outside the goTodo module.
package internal
