package export

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/logging"
	"github.com/spanworks/spanrelay/internal/models"
	"github.com/spanworks/spanrelay/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout        = 1 * time.Minute    // Default timeout for HTTP requests
	contentType           = "application/json" // Content type for span batches
	httpContentTypeHeader = "Content-Type"     // HTTP header name for content type

	// Retry configuration
	retryCount       = 3                // Number of retry attempts
	retryWaitTime    = 5 * time.Second  // Initial wait time between retries
	retryMaxWaitTime = 60 * time.Second // Maximum wait time between retries

	// Connection pool configuration
	maxIdleConns        = 100              // Total idle connections across all hosts
	maxIdleConnsPerHost = 20               // Idle connections per host (default is 2, too low)
	idleConnTimeout     = 90 * time.Second // Timeout for idle connections

	// Shutdown wait for in-flight exports
	closeWaitTimeout = 30 * time.Second
)

// HTTP header names used in export requests.
const (
	HeaderAuthorization = "Authorization" // Authorization header for backend auth tokens
)

// ExporterOption configures optional ZipkinExporter settings.
type ExporterOption func(*exporterOptions)

type exporterOptions struct {
	tracerProvider trace.TracerProvider
}

func defaultExporterOptions() exporterOptions {
	return exporterOptions{
		tracerProvider: nil, // Will use noop via TracerWrapper
	}
}

// WithTracerProvider sets the TracerProvider for distributed tracing.
// If not provided, tracing operations use a noop provider (no overhead).
func WithTracerProvider(tp trace.TracerProvider) ExporterOption {
	return func(o *exporterOptions) {
		o.tracerProvider = tp
	}
}

// ZipkinExporter transmits span batches to a Zipkin backend over HTTP.
// It translates recorded spans into the Zipkin v2 JSON wire format and POSTs
// them to the backend's ingestion endpoint, handling TLS configuration,
// retries with backoff, and trace context injection on outbound requests.
type ZipkinExporter struct {
	client  *resty.Client             // HTTP client with TLS and retry configuration
	cfg     models.Config             // Application configuration including backend settings
	tracing *telemetry.TracerWrapper  // Nil-safe tracer for self-instrumentation

	// Connection tracking for graceful shutdown
	mu         sync.Mutex    // Protects closed and closeChan
	activeReqs int32         // Count of active requests (atomic)
	closed     bool          // Whether Shutdown() has been called
	closeChan  chan struct{} // Signaled when all requests complete
}

// NewZipkinExporter creates a new Zipkin exporter with the provided configuration.
// It initializes the HTTP client with appropriate TLS settings, retry policy,
// and timeout values. A TracerProvider can be injected via WithTracerProvider
// for distributed tracing of the relay's own export requests.
//
// The client is configured with:
//   - TLS verification based on cfg.Zipkin.InsecureSkipVerify (min TLS 1.2)
//   - Retry with exponential backoff on network errors, 429 and 5xx
//   - Connection pooling sized for a steady export loop
//
// Example:
//
//	cfg := models.Config{...}
//	exporter := NewZipkinExporter(cfg)                          // Without tracing
//	exporter := NewZipkinExporter(cfg, WithTracerProvider(tp))  // With tracing
func NewZipkinExporter(cfg models.Config, opts ...ExporterOption) *ZipkinExporter {
	options := defaultExporterOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if cfg.Zipkin.InsecureSkipVerify {
		log.Error("SECURITY WARNING: TLS certificate verification disabled - this is insecure for production use")
	}

	client := resty.New().
		SetTimeout(defaultTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on network errors
			if err != nil {
				return true
			}
			// Retry on rate limiting (429) and server errors (5xx)
			return r.StatusCode() == http.StatusTooManyRequests ||
				r.StatusCode() >= 500
		})

	// Enable automatic Retry-After header handling for 429 responses
	client.AddRetryAfterErrorCondition()

	// Configure connection pool and TLS in http.Transport for unified config
	httpClient := client.GetClient()
	httpClient.Transport = &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Zipkin.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}

	tracing := telemetry.NewTracerWrapper(options.tracerProvider, "spanrelay/zipkin-exporter")

	return &ZipkinExporter{
		client:  client,
		cfg:     cfg,
		tracing: tracing,
	}
}

// getHeaders returns the HTTP headers for span batch requests.
//
// SECURITY: The auth token is included in the Authorization header. This value
// should never be logged or included in error messages. Use
// Config.MaskAuthToken() if token context is needed for debugging.
func (e *ZipkinExporter) getHeaders() map[string]string {
	headers := map[string]string{
		httpContentTypeHeader: contentType,
	}
	if e.cfg.Zipkin.AuthToken != "" {
		headers[HeaderAuthorization] = e.cfg.Zipkin.AuthToken
	}
	return headers
}

// ExportSpans transmits the batch to the Zipkin backend as a v2 JSON array.
//
// When OpenTelemetry tracing is enabled, this method creates a span for the
// export request and records method, URL, status code, batch size, and duration.
// The current trace context is injected into the outbound request headers so
// the relay's own export calls join the surrounding trace.
//
// Returns an error if:
//   - The exporter has been shut down
//   - The HTTP request fails after transport-level retries
//   - The backend returns a non-2xx status code
//
// An empty batch is a no-op.
func (e *ZipkinExporter) ExportSpans(ctx context.Context, spans []models.Span) error {
	if len(spans) == 0 {
		return nil
	}

	// Check if exporter is closed
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("exporter is closed")
	}
	atomic.AddInt32(&e.activeReqs, 1)
	e.mu.Unlock()

	// Track request completion
	defer func() {
		if atomic.AddInt32(&e.activeReqs, -1) == 0 {
			e.mu.Lock()
			if e.closed && e.closeChan != nil {
				close(e.closeChan)
				e.closeChan = nil
			}
			e.mu.Unlock()
		}
	}()

	ctx, span := e.tracing.StartSpan(ctx, "zipkin.export", trace.SpanKindClient)
	defer span.End()

	url := e.cfg.GetZipkinBaseURL()
	startTime := time.Now()

	body, err := json.Marshal(spans)
	if err != nil {
		e.recordError(span, err)
		return fmt.Errorf("failed to encode span batch: %w", err)
	}

	headers := e.injectTraceContext(ctx, e.getHeaders())

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Post(url)

	duration := time.Since(startTime)

	if err != nil {
		errMsg := fmt.Sprintf(telemetry.ErrBackendUnreachableTemplate, err, url)
		logging.LogError(errMsg)
		wrapped := fmt.Errorf("span export to %s failed: %w", url, err)
		e.recordError(span, wrapped)
		return wrapped
	}

	e.recordHTTPAttributes(span, http.MethodPost, url, resp.StatusCode(), int64(len(body)), int64(len(resp.Body())), duration)
	span.SetAttributes(
		attribute.Int(telemetry.AttrExportBatchSize, len(spans)),
		attribute.String(telemetry.AttrExportBackend, "zipkin"),
	)

	if resp.IsError() {
		bodyPreview := string(resp.Body())
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		errMsg := fmt.Sprintf(telemetry.ErrExportRejectedTemplate, resp.StatusCode(), url, bodyPreview)
		logging.LogError(errMsg)
		exportErr := fmt.Errorf("backend rejected span batch: url=%s, status=%d (%s)",
			url, resp.StatusCode(), resp.Status())
		e.recordError(span, exportErr)
		return exportErr
	}

	span.SetStatus(codes.Ok, "Batch exported successfully")
	logging.LogInfo(fmt.Sprintf("Exported %d spans to %s in %s", len(spans), url, duration))

	return nil
}

// recordHTTPAttributes records HTTP semantic convention attributes on the span.
func (e *ZipkinExporter) recordHTTPAttributes(span trace.Span, method, url string, statusCode int, requestSize, responseSize int64, duration time.Duration) {
	span.SetAttributes(
		attribute.String(telemetry.AttrHTTPMethod, method),
		attribute.String(telemetry.AttrHTTPURL, url),
		attribute.Int(telemetry.AttrHTTPStatusCode, statusCode),
		attribute.Int64(telemetry.AttrHTTPRequestContentLength, requestSize),
		attribute.Int64(telemetry.AttrHTTPResponseContentLength, responseSize),
		attribute.Float64(telemetry.AttrHTTPDurationMS, float64(duration.Milliseconds())),
	)
}

// recordError records an error on the span and sets the span status to error.
func (e *ZipkinExporter) recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(telemetry.AttrError, err.Error()))
}

// injectTraceContext injects trace context into HTTP request headers using
// W3C Trace Context propagation, so the relay's own export requests join the
// surrounding trace.
func (e *ZipkinExporter) injectTraceContext(ctx context.Context, headers map[string]string) map[string]string {
	carrier := propagation.MapCarrier{}
	for k, v := range headers {
		carrier.Set(k, v)
	}

	otel.GetTextMapPropagator().Inject(ctx, carrier)

	result := make(map[string]string)
	for k, v := range carrier {
		result[k] = v
	}

	return result
}

// Shutdown releases resources associated with the exporter.
// It waits for active export requests to complete (bounded by ctx or a
// 30 second default) before closing connections.
//
// Returns an error if:
//   - The exporter is already closed
//   - The context is cancelled while waiting for active requests
func (e *ZipkinExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("exporter already closed")
	}
	e.closed = true

	activeCount := atomic.LoadInt32(&e.activeReqs)
	if activeCount > 0 {
		e.closeChan = make(chan struct{})
		ch := e.closeChan // Store local reference to avoid race
		e.mu.Unlock()

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, closeWaitTimeout)
			defer cancel()
		}

		select {
		case <-ch:
			log.Debug("All active export requests completed during shutdown")
		case <-ctx.Done():
			log.Warnf("Context cancelled while waiting for %d active export requests", activeCount)
			return ctx.Err()
		}
	} else {
		e.mu.Unlock()
	}

	if e.client != nil {
		e.client.GetClient().CloseIdleConnections()
		e.client = nil
	}

	return nil
}
