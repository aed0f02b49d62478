package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"loomgraph.cycle.duration", m.CycleDuration},
		{"loomgraph.projection.duration", m.ProjectionDuration},
		{"loomgraph.rewrite.duration", m.RewriteDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestStageDurationAndLLMErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, "segment", 0.1, nil)
	m.RecordStage(ctx, "segment", 0.2, errors.New("boom"))

	rm := collect(t, reader)

	stageMet := findMetric(rm, "loomgraph.stage.duration")
	if stageMet == nil {
		t.Fatal("stage duration metric not found")
	}
	hist, ok := stageMet.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("stage duration metric is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("want 2 distinct status data points, got %d", len(hist.DataPoints))
	}

	errMet := findMetric(rm, "loomgraph.llm.errors")
	if errMet == nil {
		t.Fatal("llm errors metric not found")
	}
	sum, ok := errMet.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("llm errors metric is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("llm errors = %+v, want one data point with value 1", sum.DataPoints)
	}
}

func TestNodeCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.NodesCreated.Add(ctx, 3)
	m.NodesAppended.Add(ctx, 5)
	m.RecordDecisionSkipped(ctx, "no_match")

	rm := collect(t, reader)

	checks := []struct {
		name string
		want int64
	}{
		{"loomgraph.nodes.created", 3},
		{"loomgraph.nodes.appended", 5},
		{"loomgraph.decisions.skipped", 1},
	}
	for _, tc := range checks {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not a sum", tc.name)
			}
			if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != tc.want {
				t.Errorf("metric %q = %+v, want %d", tc.name, sum.DataPoints, tc.want)
			}
		})
	}
}

func TestRewriteAndFuzzyCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RewritesCompleted.Add(ctx, 2)
	m.RewritesFailed.Add(ctx, 1)
	m.FuzzyMatches.Add(ctx, 4)

	rm := collect(t, reader)

	checks := []struct {
		name string
		want int64
	}{
		{"loomgraph.rewrites.completed", 2},
		{"loomgraph.rewrites.failed", 1},
		{"loomgraph.fuzzy_matches", 4},
	}
	for _, tc := range checks {
		met := findMetric(rm, tc.name)
		if met == nil {
			t.Fatalf("metric %q not found", tc.name)
		}
		sum, ok := met.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatalf("metric %q is not a sum", tc.name)
		}
		if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != tc.want {
			t.Errorf("metric %q = %+v, want %d", tc.name, sum.DataPoints, tc.want)
		}
	}
}

func TestDirtyNodesGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DirtyNodes.Add(ctx, 5)
	m.DirtyNodes.Add(ctx, -2)

	rm := collect(t, reader)
	met := findMetric(rm, "loomgraph.dirty_nodes")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 3 {
		t.Errorf("gauge value = %+v, want 3", sum.DataPoints)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}

