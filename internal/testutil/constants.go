// Package testutil provides shared test utilities and helper functions.
package testutil

// HTTP header and content type constants used across tests.
const (
	ContentTypeHeader = "Content-Type"
	ContentTypeJSON   = "application/json"

	AuthorizationHeader = "Authorization"
)

// Common endpoint paths used by mock backends.
const (
	TestPathSpans   = "/api/v2/spans"
	TestPathMetrics = "/metrics"
	TestPathHealth  = "/health"
)

// Test configuration values.
const (
	TestServerHost = "127.0.0.1"
	TestServerPort = "9412"
	TestMetricsURI = "/metrics"
	TestAuthToken  = "test-token-1234abcd"
)
