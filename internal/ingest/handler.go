// Package ingest implements the HTTP span intake endpoint. It accepts
// Zipkin v2 JSON span batches, validates each span, and records accepted
// spans into the pipeline buffer.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/models"
	"github.com/spanworks/spanrelay/internal/recorder"
	"github.com/spanworks/spanrelay/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxBodyBytes caps the accepted request body size. Batches above the cap
// are rejected with 413 before decoding.
const maxBodyBytes = 8 << 20 // 8 MiB

const contentTypeJSON = "application/json"

// HandlerOption configures optional Handler settings.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	tracerProvider trace.TracerProvider
}

func defaultHandlerOptions() handlerOptions {
	return handlerOptions{
		tracerProvider: nil, // Will use noop via TracerWrapper
	}
}

// WithTracerProvider sets the TracerProvider for ingest spans.
// If not provided, tracing operations use a noop provider (no overhead).
func WithTracerProvider(tp trace.TracerProvider) HandlerOption {
	return func(o *handlerOptions) {
		o.tracerProvider = tp
	}
}

// Handler accepts span batches over HTTP and records them.
//
// The endpoint mirrors the Zipkin v2 POST /api/v2/spans contract: a JSON
// array of spans in the request body, answered with 202 Accepted. Spans
// that fail validation are counted and skipped; the batch as a whole is
// still accepted so one malformed span cannot poison its neighbors.
type Handler struct {
	rec     *recorder.SpanRecorder
	tracing *telemetry.TracerWrapper
}

// NewHandler creates an ingest handler over the given recorder.
//
// Example:
//
//	handler := ingest.NewHandler(rec, ingest.WithTracerProvider(tp))
//	mux.Handle("/api/v2/spans", handler)
func NewHandler(rec *recorder.SpanRecorder, opts ...HandlerOption) *Handler {
	options := defaultHandlerOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Handler{
		rec:     rec,
		tracing: telemetry.NewTracerWrapper(options.tracerProvider, "spanrelay/ingest"),
	}
}

// ServeHTTP handles POST /api/v2/spans requests.
//
// Responses:
//   - 202: batch accepted (possibly with some spans rejected)
//   - 400: body is not a JSON span array
//   - 405: method other than POST
//   - 413: body exceeds the size cap
//   - 415: content type other than application/json
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracing.StartSpan(r.Context(), "spans.ingest", trace.SpanKindServer)
	defer span.End()

	span.SetAttributes(
		attribute.String(telemetry.AttrHTTPMethod, r.Method),
		attribute.String(telemetry.AttrHTTPURL, r.URL.Path),
		attribute.Int64(telemetry.AttrIngestContentLength, r.ContentLength),
	)

	if r.Method != http.MethodPost {
		span.SetStatus(codes.Error, "method not allowed")
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, contentTypeJSON) {
		span.SetStatus(codes.Error, "unsupported content type")
		http.Error(w, fmt.Sprintf("unsupported content type %q, expected %s", contentType, contentTypeJSON), http.StatusUnsupportedMediaType)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var batch []models.Span
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		span.SetStatus(codes.Error, err.Error())
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "span batch too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Errorf("Failed to decode span batch: %v", err)
		http.Error(w, "body must be a JSON array of spans", http.StatusBadRequest)
		return
	}

	accepted := 0
	rejected := 0
	for _, s := range batch {
		if err := h.rec.Record(s); err != nil {
			rejected++
			log.Debugf("Rejected span %s: %v", s.Key(), err)
			continue
		}
		accepted++
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrIngestSpanCount, accepted),
		attribute.Int(telemetry.AttrIngestRejectedCount, rejected),
	)
	span.SetStatus(codes.Ok, "")

	if rejected > 0 {
		log.Warnf("Accepted span batch with rejections (accepted %d, rejected %d)", accepted, rejected)
	} else {
		log.Debugf("Accepted span batch of %d spans", accepted)
	}

	w.WriteHeader(http.StatusAccepted)
}
