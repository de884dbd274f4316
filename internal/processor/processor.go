// Package processor moves spans from the recorder to an exporter adapter,
// by policy: SimpleProcessor forwards spans as soon as they arrive, while
// BatchProcessor buffers and flushes on batch size or interval.
package processor

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/export"
	"github.com/spanworks/spanrelay/internal/recorder"
	"github.com/spanworks/spanrelay/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stats holds cumulative counters for a processor.
// All counters are monotonic for the lifetime of the processor.
type Stats struct {
	// Batches is the number of export calls attempted.
	Batches uint64

	// ExportedSpans is the number of spans successfully delivered.
	ExportedSpans uint64

	// FailedBatches is the number of export calls that returned an error.
	FailedBatches uint64

	// FailedSpans is the number of spans in failed batches. Failed batches
	// are dropped, not re-queued: transport-level retries have already run
	// by the time the processor sees an error.
	FailedSpans uint64
}

// Processor drains spans from the recorder and hands them to the exporter.
//
// Lifecycle: Run blocks until Shutdown is called and is meant to be started
// in its own goroutine. Shutdown stops the loop and performs a final flush
// bounded by the given context. ForceFlush exports everything currently
// buffered without stopping the loop.
type Processor interface {
	Run()
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Stats() Stats
}

// Option configures optional processor settings.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
}

func defaultOptions() options {
	return options{
		tracerProvider: nil, // Will use noop via TracerWrapper
	}
}

// WithTracerProvider sets the TracerProvider for the processor's flush spans.
// If not provided, tracing operations use a noop provider (no overhead).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// base carries the state shared by both processor policies.
type base struct {
	rec      *recorder.SpanRecorder
	exporter export.SpanExporter
	tracing  *telemetry.TracerWrapper

	statsMu sync.Mutex
	stats   Stats

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newBase(rec *recorder.SpanRecorder, exporter export.SpanExporter, opts options) base {
	return base{
		rec:      rec,
		exporter: exporter,
		tracing:  telemetry.NewTracerWrapper(opts.tracerProvider, "spanrelay/processor"),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// exportBatch sends one batch to the exporter and updates counters.
// Export failures are counted and logged, never fatal: the relay keeps
// forwarding whatever it can.
func (b *base) exportBatch(ctx context.Context, max int) error {
	batch := b.rec.Drain(max)
	if len(batch) == 0 {
		return nil
	}

	ctx, span := b.tracing.StartSpan(ctx, "pipeline.flush", trace.SpanKindInternal)
	defer span.End()

	start := time.Now()
	err := b.exporter.ExportSpans(ctx, batch)
	duration := time.Since(start)

	span.SetAttributes(
		attribute.Int(telemetry.AttrExportBatchSize, len(batch)),
		attribute.Float64(telemetry.AttrExportDurationMS, float64(duration.Milliseconds())),
	)

	b.statsMu.Lock()
	b.stats.Batches++
	if err != nil {
		b.stats.FailedBatches++
		b.stats.FailedSpans += uint64(len(batch))
	} else {
		b.stats.ExportedSpans += uint64(len(batch))
	}
	b.statsMu.Unlock()

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(telemetry.AttrExportStatus, "failure"))
		log.Errorf("Failed to export batch of %d spans: %v", len(batch), err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(telemetry.AttrExportStatus, "success"))
	return nil
}

// drainAll exports everything currently buffered, in batch-size chunks.
func (b *base) drainAll(ctx context.Context, max int) error {
	var firstErr error
	for b.rec.Len() > 0 {
		if ctx.Err() != nil {
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			break
		}
		if err := b.exportBatch(ctx, max); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns a snapshot of the cumulative counters.
func (b *base) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

// shutdown stops the loop, waits for it to exit, and performs a final flush.
func (b *base) shutdown(ctx context.Context, max int) error {
	b.stopOnce.Do(func() {
		close(b.quit)
	})

	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Final flush of anything recorded after the last loop iteration
	return b.drainAll(ctx, max)
}

// SimpleProcessor implements the immediate forwarding policy: spans are
// exported as soon as they arrive, one export call per poll. Use it for
// low-volume relays and debugging; BatchProcessor is the production policy.
type SimpleProcessor struct {
	base
	pollInterval time.Duration
}

// simplePollInterval bounds the forwarding latency of the simple policy.
const simplePollInterval = 50 * time.Millisecond

// NewSimpleProcessor creates a processor with the immediate forwarding policy.
func NewSimpleProcessor(rec *recorder.SpanRecorder, exporter export.SpanExporter, opts ...Option) *SimpleProcessor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SimpleProcessor{
		base:         newBase(rec, exporter, o),
		pollInterval: simplePollInterval,
	}
}

// Run drains and exports continuously until Shutdown is called.
// It blocks and is meant to be started in its own goroutine.
func (p *SimpleProcessor) Run() {
	defer close(p.done)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			// Export everything available; each poll is one export call
			if err := p.exportBatch(context.Background(), 0); err != nil {
				continue
			}
		}
	}
}

// ForceFlush exports everything currently buffered.
func (p *SimpleProcessor) ForceFlush(ctx context.Context) error {
	return p.drainAll(ctx, 0)
}

// Shutdown stops the loop and performs a final flush bounded by ctx.
func (p *SimpleProcessor) Shutdown(ctx context.Context) error {
	return p.base.shutdown(ctx, 0)
}

// BatchProcessor implements the buffered policy: spans are exported when the
// batch size is reached or the flush interval elapses, whichever comes first.
type BatchProcessor struct {
	base
	batchSize     int
	flushInterval time.Duration
}

// sizeCheckDivisor determines how often the size trigger is evaluated
// relative to the flush interval.
const sizeCheckDivisor = 10

// NewBatchProcessor creates a processor with the buffered policy.
//
// Parameters:
//   - rec: The recorder to drain
//   - exporter: The exporter adapter that receives batches
//   - batchSize: Maximum spans per export call (size flush trigger)
//   - flushInterval: Maximum time a span waits before export (time flush trigger)
func NewBatchProcessor(rec *recorder.SpanRecorder, exporter export.SpanExporter, batchSize int, flushInterval time.Duration, opts ...Option) *BatchProcessor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &BatchProcessor{
		base:          newBase(rec, exporter, o),
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Run flushes on batch size or interval until Shutdown is called.
// It blocks and is meant to be started in its own goroutine.
func (p *BatchProcessor) Run() {
	defer close(p.done)

	flushTicker := time.NewTicker(p.flushInterval)
	defer flushTicker.Stop()

	sizeInterval := p.flushInterval / sizeCheckDivisor
	if sizeInterval < time.Millisecond {
		sizeInterval = time.Millisecond
	}
	sizeTicker := time.NewTicker(sizeInterval)
	defer sizeTicker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-flushTicker.C:
			// Time trigger: export whatever has accumulated
			if err := p.exportBatch(context.Background(), p.batchSize); err != nil {
				continue
			}
		case <-sizeTicker.C:
			// Size trigger: only flush full batches
			for p.rec.Len() >= p.batchSize {
				if err := p.exportBatch(context.Background(), p.batchSize); err != nil {
					break
				}
			}
		}
	}
}

// ForceFlush exports everything currently buffered, in batch-size chunks.
func (p *BatchProcessor) ForceFlush(ctx context.Context) error {
	return p.drainAll(ctx, p.batchSize)
}

// Shutdown stops the loop and performs a final flush bounded by ctx.
func (p *BatchProcessor) Shutdown(ctx context.Context) error {
	return p.base.shutdown(ctx, p.batchSize)
}
