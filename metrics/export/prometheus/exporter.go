package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() goTodo.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders client metrics in Prometheus text exposition
// format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from client on every scrape.
func NewPrometheusExporter(client *goTodo.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. It is empty while metrics are disabled
// and no audit event was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	w := &textWriter{}
	for _, f := range internaldefs.CounterFamilies {
		w.header(f.Name, f.Help, "counter")
		for _, s := range f.Series {
			w.sample(f.Name, f.Label, s.Value, snapshot.Counters[s.ID])
		}
	}

	name := internaldefs.LatencyName
	cumulative := internaldefs.CumulativeBuckets(snapshot.Histograms[internaldefs.LatencyID])
	w.header(name, internaldefs.LatencyHelp, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", "le", le, cumulative[i])
	}
	w.sample(name+"_count", "", "", cumulative[len(cumulative)-1])
	// Snapshots carry no sum.
	w.sample(name+"_sum", "", "", 0)

	w.header(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", "", dropped)

	return w.b.String()
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) header(name, help, kind string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *textWriter) sample(name, label, value string, v uint64) {
	w.b.WriteString(name)
	if label != "" {
		w.b.WriteString("{" + label + "=\"" + value + "\"}")
	}
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(v, 10))
	w.b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
