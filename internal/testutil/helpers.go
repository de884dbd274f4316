// Package testutil provides shared test utilities and helper functions.
// This file contains fluent builders and span fixtures to reduce duplication
// across test files and improve test maintainability.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spanworks/spanrelay/internal/models"
)

// MockZipkinBuilder provides a fluent interface for creating mock Zipkin
// backends. It simplifies test server setup by providing chainable methods
// for configuring the spans endpoint behavior.
//
// Example usage:
//
//	backend := testutil.NewMockZipkin().
//	    WithStatus(http.StatusAccepted).
//	    Build()
//	defer backend.Server.Close()
type MockZipkinBuilder struct {
	status    int
	useTLS    bool
	authToken string
}

// MockZipkin is a running mock Zipkin backend that records every span batch
// it receives. All methods are safe for concurrent use.
type MockZipkin struct {
	Server *httptest.Server

	mu       sync.Mutex
	batches  [][]models.Span
	requests int
}

// NewMockZipkin creates a new MockZipkinBuilder that accepts spans with 202.
func NewMockZipkin() *MockZipkinBuilder {
	return &MockZipkinBuilder{status: http.StatusAccepted}
}

// WithStatus sets the HTTP status returned by the spans endpoint.
func (b *MockZipkinBuilder) WithStatus(status int) *MockZipkinBuilder {
	b.status = status
	return b
}

// WithTLS enables TLS for the mock backend.
func (b *MockZipkinBuilder) WithTLS() *MockZipkinBuilder {
	b.useTLS = true
	return b
}

// WithAuthToken requires the given Authorization header on every request.
// Requests without it are rejected with 401.
func (b *MockZipkinBuilder) WithAuthToken(token string) *MockZipkinBuilder {
	b.authToken = token
	return b
}

// Build creates and starts the configured mock backend.
func (b *MockZipkinBuilder) Build() *MockZipkin {
	mock := &MockZipkin{}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != TestPathSpans || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if b.authToken != "" && r.Header.Get(AuthorizationHeader) != b.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var batch []models.Span
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.batches = append(mock.batches, batch)
		mock.requests++
		mock.mu.Unlock()

		w.WriteHeader(b.status)
	})

	if b.useTLS {
		mock.Server = httptest.NewTLSServer(handler)
	} else {
		mock.Server = httptest.NewServer(handler)
	}
	return mock
}

// SpansURL returns the full spans endpoint URL of the mock backend.
func (m *MockZipkin) SpansURL() string {
	return m.Server.URL + TestPathSpans
}

// Batches returns a copy of all span batches received so far.
func (m *MockZipkin) Batches() [][]models.Span {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]models.Span, len(m.batches))
	copy(out, m.batches)
	return out
}

// SpanCount returns the total number of spans received across all batches.
func (m *MockZipkin) SpanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, batch := range m.batches {
		total += len(batch)
	}
	return total
}

// Requests returns the number of accepted POST requests.
func (m *MockZipkin) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// NewTraceID generates a 128-bit lowercase hex trace ID.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSpanID generates a 64-bit lowercase hex span ID.
func NewSpanID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// MakeSpan returns a valid finished span with fresh identifiers.
func MakeSpan() models.Span {
	return models.Span{
		TraceID:   NewTraceID(),
		ID:        NewSpanID(),
		Name:      "get /api/orders",
		Kind:      models.KindServer,
		Timestamp: time.Now().Add(-time.Second).UnixMicro(),
		Duration:  1500,
		LocalEndpoint: &models.Endpoint{
			ServiceName: "orders",
			IPv4:        "10.0.0.5",
			Port:        8080,
		},
		Tags: map[string]string{"http.method": "GET"},
	}
}

// MakeSpans returns n valid spans with fresh identifiers.
func MakeSpans(n int) []models.Span {
	spans := make([]models.Span, n)
	for i := range spans {
		spans[i] = MakeSpan()
	}
	return spans
}

// ValidTestConfig returns a validated configuration pointing at the given
// Zipkin backend URL (as produced by httptest).
func ValidTestConfig(backendURL string) models.Config {
	var cfg models.Config
	cfg.Server.Host = TestServerHost
	cfg.Server.Port = TestServerPort
	cfg.Server.URI = TestMetricsURI

	trimmed := strings.TrimPrefix(backendURL, "http://")
	scheme := "http"
	if strings.HasPrefix(backendURL, "https://") {
		trimmed = strings.TrimPrefix(backendURL, "https://")
		scheme = "https"
	}
	parts := strings.SplitN(trimmed, ":", 2)
	cfg.Zipkin.Scheme = scheme
	cfg.Zipkin.Host = parts[0]
	if len(parts) == 2 {
		cfg.Zipkin.Port = parts[1]
	}

	cfg.SetDefaults()
	return cfg
}
