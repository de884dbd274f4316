package collector

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spanworks/spanrelay/internal/export"
	"github.com/spanworks/spanrelay/internal/processor"
	"github.com/spanworks/spanrelay/internal/recorder"
	"github.com/spanworks/spanrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatherValue returns the value of the first sample of the named metric
// family, or fails the test if the family is absent.
func gatherValue(t *testing.T, families []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		require.NotEmpty(t, family.GetMetric())
		metric := family.GetMetric()[0]
		if metric.GetCounter() != nil {
			return metric.GetCounter().GetValue()
		}
		return metric.GetGauge().GetValue()
	}
	t.Fatalf("metric family %q not found", name)
	return 0
}

func newTestPipeline(t *testing.T) (*recorder.SpanRecorder, processor.Processor) {
	t.Helper()
	rec := recorder.NewSpanRecorder(64, time.Minute)
	proc := processor.NewBatchProcessor(rec, export.NewLogExporter(), 10, time.Hour)
	return rec, proc
}

func TestPipelineCollector_Registers(t *testing.T) {
	rec, proc := newTestPipeline(t)
	registry := prometheus.NewRegistry()

	collector := NewPipelineCollector(rec, proc, "test")
	require.NoError(t, registry.Register(collector))
}

func TestPipelineCollector_Collect(t *testing.T) {
	rec, proc := newTestPipeline(t)

	for _, span := range testutil.MakeSpans(3) {
		require.NoError(t, rec.Record(span))
	}
	require.NoError(t, proc.ForceFlush(context.Background()))

	registry := prometheus.NewRegistry()
	collector := NewPipelineCollector(rec, proc, "1.2.3")
	require.NoError(t, registry.Register(collector))

	families, err := registry.Gather()
	require.NoError(t, err)

	assert.Equal(t, float64(3), gatherValue(t, families, "relay_spans_received_total"))
	assert.Equal(t, float64(3), gatherValue(t, families, "relay_spans_recorded_total"))
	assert.Equal(t, float64(3), gatherValue(t, families, "relay_spans_exported_total"))
	assert.Equal(t, float64(1), gatherValue(t, families, "relay_export_batches_total"))
	assert.Equal(t, float64(0), gatherValue(t, families, "relay_export_failures_total"))
	assert.Equal(t, float64(0), gatherValue(t, families, "relay_queue_depth"))
}

func TestPipelineCollector_QueueDepth(t *testing.T) {
	rec, proc := newTestPipeline(t)

	for _, span := range testutil.MakeSpans(5) {
		require.NoError(t, rec.Record(span))
	}

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(NewPipelineCollector(rec, proc, "test")))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(5), gatherValue(t, families, "relay_queue_depth"))
}

func TestPipelineCollector_DuplicateAndDropCounters(t *testing.T) {
	rec := recorder.NewSpanRecorder(2, time.Minute)
	proc := processor.NewBatchProcessor(rec, export.NewLogExporter(), 10, time.Hour)

	span := testutil.MakeSpan()
	require.NoError(t, rec.Record(span))
	require.NoError(t, rec.Record(span)) // duplicate, suppressed

	// Fill past capacity to force a drop-oldest eviction
	require.NoError(t, rec.Record(testutil.MakeSpan()))
	require.NoError(t, rec.Record(testutil.MakeSpan()))

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(NewPipelineCollector(rec, proc, "test")))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(1), gatherValue(t, families, "relay_spans_duplicate_total"))
	assert.Equal(t, float64(1), gatherValue(t, families, "relay_spans_dropped_total"))
}

func TestPipelineCollector_BuildInfoVersionLabel(t *testing.T) {
	rec, proc := newTestPipeline(t)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(NewPipelineCollector(rec, proc, "2.0.0")))

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "relay_build_info" {
			continue
		}
		require.Len(t, family.GetMetric(), 1)
		labels := family.GetMetric()[0].GetLabel()
		require.Len(t, labels, 1)
		assert.Equal(t, "version", labels[0].GetName())
		assert.Equal(t, "2.0.0", labels[0].GetValue())
		return
	}
	t.Fatal("relay_build_info not gathered")
}
