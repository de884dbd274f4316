// Package collector implements the Prometheus Collector interface for the
// span relay pipeline. It exposes counters and gauges describing ingestion,
// buffering, and export health for scraping by a Prometheus server.
package collector

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/processor"
	"github.com/spanworks/spanrelay/internal/recorder"
	"github.com/spanworks/spanrelay/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CollectorOption configures optional PipelineCollector settings.
type CollectorOption func(*collectorOptions)

type collectorOptions struct {
	tracerProvider trace.TracerProvider
}

func defaultCollectorOptions() collectorOptions {
	return collectorOptions{
		tracerProvider: nil, // Will use noop via TracerWrapper
	}
}

// WithCollectorTracerProvider sets the TracerProvider for the collector.
// If not provided, tracing operations use a noop provider (no overhead).
func WithCollectorTracerProvider(tp trace.TracerProvider) CollectorOption {
	return func(o *collectorOptions) {
		o.tracerProvider = tp
	}
}

// PipelineCollector implements the Prometheus Collector interface over the
// relay pipeline. Metrics are read from the recorder and processor counters
// on-demand when Prometheus scrapes the /metrics endpoint; no state is kept
// in the collector itself.
//
// The collector exposes:
//   - relay_spans_received_total: spans offered to the recorder
//   - relay_spans_recorded_total: spans accepted into the buffer
//   - relay_spans_dropped_total: spans evicted on buffer overflow
//   - relay_spans_duplicate_total: spans suppressed by deduplication
//   - relay_spans_exported_total: spans delivered to the backend
//   - relay_export_batches_total: export calls attempted
//   - relay_export_failures_total: export calls that failed
//   - relay_queue_depth: spans currently buffered
//   - relay_build_info: build metadata (labels: version)
type PipelineCollector struct {
	rec     *recorder.SpanRecorder
	proc    processor.Processor
	version string
	tracing *telemetry.TracerWrapper

	spansReceived   *prometheus.Desc
	spansRecorded   *prometheus.Desc
	spansDropped    *prometheus.Desc
	spansDuplicate  *prometheus.Desc
	spansExported   *prometheus.Desc
	exportBatches   *prometheus.Desc
	exportFailures  *prometheus.Desc
	queueDepth      *prometheus.Desc
	buildInfo       *prometheus.Desc
}

// NewPipelineCollector creates a collector over the given recorder and
// processor and registers Prometheus metric descriptors.
//
// Example:
//
//	collector := NewPipelineCollector(rec, proc, "1.0.0", WithCollectorTracerProvider(tp))
//	registry.MustRegister(collector)
func NewPipelineCollector(rec *recorder.SpanRecorder, proc processor.Processor, version string, opts ...CollectorOption) *PipelineCollector {
	options := defaultCollectorOptions()
	for _, opt := range opts {
		opt(&options)
	}

	tracing := telemetry.NewTracerWrapper(options.tracerProvider, "spanrelay/collector")

	return &PipelineCollector{
		rec:     rec,
		proc:    proc,
		version: version,
		tracing: tracing,
		spansReceived: prometheus.NewDesc(
			"relay_spans_received_total",
			"The number of spans offered to the recorder",
			nil, nil,
		),
		spansRecorded: prometheus.NewDesc(
			"relay_spans_recorded_total",
			"The number of spans accepted into the buffer",
			nil, nil,
		),
		spansDropped: prometheus.NewDesc(
			"relay_spans_dropped_total",
			"The number of spans evicted on buffer overflow",
			nil, nil,
		),
		spansDuplicate: prometheus.NewDesc(
			"relay_spans_duplicate_total",
			"The number of spans suppressed by deduplication",
			nil, nil,
		),
		spansExported: prometheus.NewDesc(
			"relay_spans_exported_total",
			"The number of spans delivered to the backend",
			nil, nil,
		),
		exportBatches: prometheus.NewDesc(
			"relay_export_batches_total",
			"The number of export calls attempted",
			nil, nil,
		),
		exportFailures: prometheus.NewDesc(
			"relay_export_failures_total",
			"The number of export calls that failed",
			nil, nil,
		),
		queueDepth: prometheus.NewDesc(
			"relay_queue_depth",
			"The number of spans currently buffered",
			nil, nil,
		),
		buildInfo: prometheus.NewDesc(
			"relay_build_info",
			"Build metadata of the running relay",
			[]string{"version"}, nil,
		),
	}
}

// Describe sends the descriptors of each metric to the provided channel.
// This method is required by the prometheus.Collector interface and is called
// during collector registration to validate metric definitions.
func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.spansReceived
	ch <- c.spansRecorded
	ch <- c.spansDropped
	ch <- c.spansDuplicate
	ch <- c.spansExported
	ch <- c.exportBatches
	ch <- c.exportFailures
	ch <- c.queueDepth
	ch <- c.buildInfo
}

// Collect reads the pipeline counters and sends them to the provided channel.
// This method is required by the prometheus.Collector interface and is called
// automatically by Prometheus during each scrape cycle.
//
// When OpenTelemetry tracing is enabled, this method creates a span for the
// scrape cycle and records queue depth and scrape duration.
func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	scrapeStart := time.Now()
	_, span := c.tracing.StartSpan(context.Background(), "prometheus.scrape", trace.SpanKindServer)
	defer span.End()

	recStats := c.rec.Stats()
	procStats := c.proc.Stats()
	depth := c.rec.Len()

	ch <- prometheus.MustNewConstMetric(c.spansReceived, prometheus.CounterValue, float64(recStats.Received))
	ch <- prometheus.MustNewConstMetric(c.spansRecorded, prometheus.CounterValue, float64(recStats.Recorded))
	ch <- prometheus.MustNewConstMetric(c.spansDropped, prometheus.CounterValue, float64(recStats.Dropped))
	ch <- prometheus.MustNewConstMetric(c.spansDuplicate, prometheus.CounterValue, float64(recStats.Duplicates))
	ch <- prometheus.MustNewConstMetric(c.spansExported, prometheus.CounterValue, float64(procStats.ExportedSpans))
	ch <- prometheus.MustNewConstMetric(c.exportBatches, prometheus.CounterValue, float64(procStats.Batches))
	ch <- prometheus.MustNewConstMetric(c.exportFailures, prometheus.CounterValue, float64(procStats.FailedBatches))
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(depth))
	ch <- prometheus.MustNewConstMetric(c.buildInfo, prometheus.GaugeValue, 1, c.version)

	span.SetAttributes(
		attribute.Int(telemetry.AttrRelayQueueDepth, depth),
		attribute.Float64(telemetry.AttrScrapeDurationMS, float64(time.Since(scrapeStart).Milliseconds())),
		attribute.String(telemetry.AttrScrapeStatus, "success"),
	)
	span.SetStatus(codes.Ok, "")

	log.Debugf("Scraped pipeline metrics (queue depth %d)", depth)
}
