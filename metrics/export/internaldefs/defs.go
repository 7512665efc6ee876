package internaldefs

import (
	goTodo "github.com/MrEthical07/goTodo"
)

// Series is one exported time series: a client counter plus the label value
// that tells it apart inside its family. Unlabelled families have a single
// series with an empty Value.
type Series struct {
	ID    goTodo.MetricID
	Value string
}

// Family is one exported counter name. Label is empty for single-series
// families.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// CounterFamilies lists every exported counter in render order.
var CounterFamilies = []Family{
	{
		Name:   "gotodo_requests_total",
		Help:   "Finished API requests by outcome.",
		Label:  "outcome",
		Series: outcomeSeries(),
	},
	{
		Name:  "gotodo_refreshes_total",
		Help:  "Access token refresh calls by result.",
		Label: "result",
		Series: []Series{
			{ID: goTodo.MetricRefreshSuccess, Value: "success"},
			{ID: goTodo.MetricRefreshFailure, Value: "failure"},
		},
	},
	single("gotodo_replays_total", "Requests replayed after a refresh.", goTodo.MetricReplay),
	single("gotodo_retry_guard_trips_total", "401 responses not retried because the request was already retried.", goTodo.MetricRetryGuardTripped),
	single("gotodo_invalid_auth_total", "401 responses tagged as having no session.", goTodo.MetricInvalidAuth),
	single("gotodo_sessions_expired_total", "Sessions ended by a failed refresh.", goTodo.MetricSessionExpired),
	{
		Name:  "gotodo_logins_total",
		Help:  "Sign-in attempts by result.",
		Label: "result",
		Series: []Series{
			{ID: goTodo.MetricLoginSuccess, Value: "success"},
			{ID: goTodo.MetricLoginFailure, Value: "failure"},
		},
	},
	single("gotodo_logouts_total", "Explicit and forced logouts.", goTodo.MetricLogout),
	single("gotodo_promotions_total", "Successful premium promotions.", goTodo.MetricPromoteSuccess),
}

// LatencyName is the round trip latency histogram, exported as cumulative
// buckets labelled by upper bound.
const (
	LatencyName = "gotodo_request_latency_seconds"
	LatencyHelp = "HTTP round trip latency, refresh calls excluded."
	LatencyID   = goTodo.MetricRequestLatency
)

// AuditDroppedName counts audit events the client could not queue.
const (
	AuditDroppedName = "gotodo_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped on a full buffer or an ended context."
)

// HistogramBounds are the upper bucket bounds in seconds, matching the
// client's fixed buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

func outcomeSeries() []Series {
	kinds := goTodo.Outcomes()
	out := make([]Series, 0, len(kinds))
	for _, k := range kinds {
		if id, ok := goTodo.OutcomeMetric(k); ok {
			out = append(out, Series{ID: id, Value: k.String()})
		}
	}
	return out
}

func single(name, help string, id goTodo.MetricID) Family {
	return Family{Name: name, Help: help, Series: []Series{{ID: id}}}
}

// CumulativeBuckets turns the client's per-bucket counts into running
// totals. Missing buckets count as zero.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
