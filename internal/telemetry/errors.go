package telemetry

// This file defines error message templates for common failure scenarios.
// Templates provide consistent, actionable error messages with troubleshooting steps.
//
// Using templates instead of inline error messages:
//   - Centralizes error message maintenance
//   - Ensures consistent formatting and content
//   - Makes it easier to update troubleshooting steps
//   - Reduces code duplication
//
// Usage:
//
//	if resp.IsError() {
//	    return fmt.Errorf(telemetry.ErrExportRejectedTemplate,
//	        resp.StatusCode(), url, preview)
//	}

// Error message templates for common scenarios
const (
	// ErrBackendUnreachableTemplate is returned when the Zipkin backend cannot be reached
	ErrBackendUnreachableTemplate = `Zipkin backend is unreachable (%v).

The relay could not deliver spans to the configured tracing backend.

Troubleshooting steps:
1. Verify the backend is running and listening: curl -sf %s
2. Check the 'zipkin' section of config.yaml (scheme, host, port)
3. If the backend runs in a container, confirm port 9411 is published
4. Check network policy / firewall rules between the relay and the backend

Example configuration:
  zipkin:
    scheme: "http"
    host: "localhost"
    port: "9411"

Spans are retried with backoff; persistent failures drop the batch.`

	// ErrExportRejectedTemplate is returned when the backend rejects an export request
	ErrExportRejectedTemplate = `Zipkin backend rejected the span batch (HTTP %d).

This usually indicates:
1. Malformed span payload (check the relay ingest logs for validation warnings)
2. Authentication failure (verify 'authToken' in config.yaml if the backend requires one)
3. Backend storage pressure (the backend sheds load with 429/503)

Request URL: %s
Response preview: %s

Note on duplicate-looking spans: if the same span appears twice in the backend,
the reporting application is likely exporting through two paths (for example a
client library and a local agent). The relay suppresses exact duplicates by
(traceId, spanId) within the configured dedupTTL window, but spans with distinct
ids are forwarded as-is.`
)
