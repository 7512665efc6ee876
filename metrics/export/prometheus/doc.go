// Package prometheus renders goTodo client metrics in Prometheus text
// exposition format.
//
// Counters are named gotodo_*_total. Finished requests form one family
// labelled by outcome (gotodo_requests_total{outcome="forbidden"}); refreshes
// and sign-ins are labelled by result. Round trip latency is the
// gotodo_request_latency_seconds histogram.
//
// # What this package must NOT do
//
//   - Register anything in a global Prometheus registry; callers mount
//     [PrometheusExporter.Handler].
//   - Mutate client state.
package prometheus
