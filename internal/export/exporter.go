// Package export provides exporter adapters that translate recorded spans
// into a backend-specific wire format and transmit them. The primary adapter
// targets the Zipkin v2 JSON ingestion endpoint.
package export

import (
	"context"

	"github.com/spanworks/spanrelay/internal/models"
)

// SpanExporter defines the interface for transmitting finished spans to an
// external backend. This interface abstracts the wire format and transport
// and enables easy mocking in unit tests.
//
// Implementations must be safe for concurrent use: the processor may call
// ExportSpans from its flush loop while ForceFlush runs on another goroutine.
type SpanExporter interface {
	// ExportSpans transmits the given batch to the backend.
	// An empty batch is a no-op and must return nil.
	//
	// Parameters:
	//   - ctx: Context for request cancellation, timeout, and trace propagation
	//   - spans: The finished spans to transmit
	//
	// Returns an error if the batch could not be delivered. The caller decides
	// whether to drop or retry; implementations should not retry beyond their
	// own transport-level policy.
	ExportSpans(ctx context.Context, spans []models.Span) error

	// Shutdown releases resources associated with the exporter. After Shutdown
	// returns, ExportSpans must fail fast.
	Shutdown(ctx context.Context) error
}
