// Package flows contains the request pipeline of the client: the Request
// Dispatcher ([RunDispatch]), the refresh call ([RunRefresh]) and the Refresh
// Coordinator ([RunSend]) that ties them together.
//
// Each flow function accepts a typed dependency struct and returns a result
// value. Flows never panic on HTTP failures; every failure is reported in the
// returned result so the root package can map it to a public outcome.
//
// # Architecture boundaries
//
// Flow functions coordinate the credential store and the HTTP transport. They
// do NOT own either resource (goTodo.Client does), and they
// never call the UI collaborators (logout, redirect, alert).
//
// # What this package must NOT do
//
//   - Hold mutable state between calls; per-request state lives on
//     [PendingRequest].
//   - Import goTodo (to avoid import cycles).
//   - Send the stored access token to the refresh endpoint.
package flows
