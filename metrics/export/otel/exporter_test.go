package otel

import (
	"context"
	"sync"
	"testing"

	goTodo "github.com/MrEthical07/goTodo"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goTodo.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goTodo.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goTodo.MetricsSnapshot{
		Counters:   make(map[goTodo.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goTodo.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gotodo-test")

	src := &fakeSource{
		snapshot: goTodo.MetricsSnapshot{
			Counters: map[goTodo.MetricID]uint64{
				goTodo.MetricReplay:    3,
				goTodo.MetricForbidden: 2,
			},
			Histograms: map[goTodo.MetricID][]uint64{
				goTodo.MetricRequestLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	values := collectValues(rm)
	if values["gotodo_replays_total"] != 3 {
		t.Fatalf("expected replay counter 3, got %d", values["gotodo_replays_total"])
	}
	if values["gotodo_requests_total{outcome=forbidden}"] != 2 {
		t.Fatalf("expected forbidden outcome 2, got %v", values)
	}
	if _, ok := values["gotodo_requests_total{outcome=network_error}"]; !ok {
		t.Fatalf("expected every outcome series, got %v", values)
	}
	if values["gotodo_request_latency_seconds_bucket{le=+Inf}"] != 8 {
		t.Fatalf("expected +Inf bucket 8, got %d", values["gotodo_request_latency_seconds_bucket{le=+Inf}"])
	}
	if values["gotodo_request_latency_seconds_count"] != 8 {
		t.Fatalf("expected count 8, got %d", values["gotodo_request_latency_seconds_count"])
	}
	if values["gotodo_audit_dropped_total"] != 1 {
		t.Fatalf("expected audit dropped 1, got %d", values["gotodo_audit_dropped_total"])
	}
}

// collectValues keys each data point by instrument name plus its single
// attribute, if any.
func collectValues(rm metricdata.ResourceMetrics) map[string]int64 {
	values := map[string]int64{}
	record := func(name string, set attribute.Set, v int64) {
		key := name
		iter := set.Iter()
		for iter.Next() {
			kv := iter.Attribute()
			key += "{" + string(kv.Key) + "=" + kv.Value.Emit() + "}"
		}
		values[key] = v
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					record(m.Name, dp.Attributes, dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					record(m.Name, dp.Attributes, dp.Value)
				}
			}
		}
	}
	return values
}

func TestNewOTelExporterRejectsNilClient(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("gotodo-test")
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gotodo-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gotodo-test")

	src := &fakeSource{
		snapshot: goTodo.MetricsSnapshot{
			Counters: map[goTodo.MetricID]uint64{
				goTodo.MetricReplay: 1,
			},
			Histograms: map[goTodo.MetricID][]uint64{
				goTodo.MetricRequestLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goTodo.MetricReplay] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
