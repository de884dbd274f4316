// Package recorder implements the span recorder: a bounded, thread-safe
// accumulator of finished spans with duplicate suppression. The recorder sits
// between ingestion and the processor; it never blocks producers.
package recorder

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/models"
)

const defaultDedupTTL = 2 * time.Minute

// Stats holds cumulative counters for the recorder.
// All counters are monotonic for the lifetime of the recorder.
type Stats struct {
	// Received is the total number of spans offered via Record.
	Received uint64

	// Recorded is the number of spans accepted into the buffer.
	Recorded uint64

	// Dropped is the number of spans evicted because the buffer was full.
	// The oldest span is dropped to keep the freshest telemetry.
	Dropped uint64

	// Duplicates is the number of spans suppressed by the dedup cache.
	Duplicates uint64
}

// SpanRecorder accumulates finished spans in a bounded FIFO buffer.
//
// Duplicate suppression: instrumented applications commonly report the same
// span through two paths (a client library and a local agent), which shows up
// as duplicate-looking spans in the tracing backend. The recorder suppresses
// exact duplicates by (traceId, spanId) within a TTL window.
//
// Overflow policy: when the buffer is full the oldest span is dropped and
// counted. Producers never block.
//
// Thread-safety: all methods are safe for concurrent use.
type SpanRecorder struct {
	mu       sync.Mutex
	buf      []models.Span
	capacity int
	dedup    *cache.Cache
	stats    Stats
}

// NewSpanRecorder creates a recorder with the given buffer capacity and
// duplicate suppression window.
//
// If capacity <= 0, the default buffer size from models is used.
// If dedupTTL <= 0, defaults to 2 minutes. Cleanup interval is set to 2x TTL.
func NewSpanRecorder(capacity int, dedupTTL time.Duration) *SpanRecorder {
	if capacity <= 0 {
		capacity = models.DefaultBufferSize
	}
	if dedupTTL <= 0 {
		dedupTTL = defaultDedupTTL
	}
	return &SpanRecorder{
		buf:      make([]models.Span, 0, capacity),
		capacity: capacity,
		dedup:    cache.New(dedupTTL, dedupTTL*2),
	}
}

// Record offers a finished span to the recorder.
//
// The span is validated, checked against the dedup cache, and appended to the
// buffer. When the buffer is at capacity the oldest span is evicted first.
//
// Returns an error only if the span fails validation; duplicates and
// overflow evictions are counted in Stats but are not errors.
func (r *SpanRecorder) Record(span models.Span) error {
	if err := span.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Received++

	key := span.Key()
	if _, seen := r.dedup.Get(key); seen {
		r.stats.Duplicates++
		log.Debugf("Suppressed duplicate span %s", key)
		return nil
	}
	r.dedup.Set(key, struct{}{}, cache.DefaultExpiration)

	if len(r.buf) >= r.capacity {
		// Drop oldest to keep the freshest telemetry
		r.buf = r.buf[1:]
		r.stats.Dropped++
	}
	r.buf = append(r.buf, span)
	r.stats.Recorded++

	return nil
}

// Drain removes and returns up to max spans from the front of the buffer.
// If max <= 0 or exceeds the buffer length, all buffered spans are returned.
// Returns nil when the buffer is empty.
func (r *SpanRecorder) Drain(max int) []models.Span {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == 0 {
		return nil
	}

	n := len(r.buf)
	if max > 0 && max < n {
		n = max
	}

	out := make([]models.Span, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]

	return out
}

// Len returns the current number of buffered spans.
func (r *SpanRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Capacity returns the configured buffer capacity.
func (r *SpanRecorder) Capacity() int {
	return r.capacity
}

// Stats returns a snapshot of the cumulative counters.
func (r *SpanRecorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Flush clears the dedup cache without changing its TTL.
func (r *SpanRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dedup.Flush()
}

// SetDedupTTL applies a new duplicate suppression window and clears the
// existing one. go-cache fixes the default TTL at construction, so the cache
// is rebuilt; entries stored before the call are discarded with it.
//
// Use on config reload when the dedup window changes.
func (r *SpanRecorder) SetDedupTTL(dedupTTL time.Duration) {
	if dedupTTL <= 0 {
		dedupTTL = defaultDedupTTL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dedup = cache.New(dedupTTL, dedupTTL*2)
}
