package export

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/models"
)

// LogExporter writes span summaries to the application log instead of a
// backend. It is used in debug mode and as a dry-run target when no Zipkin
// backend is available.
type LogExporter struct {
	closed atomic.Bool
}

// NewLogExporter creates a new log exporter.
func NewLogExporter() *LogExporter {
	return &LogExporter{}
}

// ExportSpans logs a one-line summary per span at info level.
// An empty batch is a no-op.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []models.Span) error {
	if e.closed.Load() {
		return fmt.Errorf("exporter is closed")
	}
	for i := range spans {
		span := &spans[i]
		log.WithFields(log.Fields{
			"traceId":  span.TraceID,
			"spanId":   span.ID,
			"service":  span.ServiceName(),
			"duration": span.Duration,
		}).Infof("span %s", span.Name)
	}
	return nil
}

// Shutdown marks the exporter closed. Subsequent exports fail fast.
func (e *LogExporter) Shutdown(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("exporter already closed")
	}
	return nil
}
