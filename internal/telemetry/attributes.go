package telemetry

// HTTP semantic convention attributes
const (
	AttrHTTPMethod                = "http.method"
	AttrHTTPURL                   = "http.url"
	AttrHTTPStatusCode            = "http.status_code"
	AttrHTTPRequestContentLength  = "http.request_content_length"
	AttrHTTPResponseContentLength = "http.response_content_length"
	AttrHTTPDurationMS            = "http.duration_ms"
)

// Ingest attributes
const (
	AttrIngestSpanCount     = "ingest.span_count"
	AttrIngestRejectedCount = "ingest.rejected_count"
	AttrIngestContentLength = "ingest.content_length"
)

// Export cycle attributes
const (
	AttrExportBackend    = "export.backend"
	AttrExportBatchSize  = "export.batch_size"
	AttrExportDurationMS = "export.duration_ms"
	AttrExportStatus     = "export.status"
)

// Relay pipeline attributes
const (
	AttrRelayQueueDepth     = "relay.queue_depth"
	AttrRelayDroppedSpans   = "relay.dropped_spans"
	AttrRelayDuplicateSpans = "relay.duplicate_spans"
)

// Scrape cycle attributes
const (
	AttrScrapeDurationMS = "scrape.duration_ms"
	AttrScrapeStatus     = "scrape.status"
)

// Error attributes
const (
	AttrError = "error"
)
