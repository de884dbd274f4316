// Package telemetry provides OpenTelemetry integration for the span relay.
//
// This package manages the lifecycle of OpenTelemetry tracing and provides
// instrumentation for span ingestion, export cycles, and Prometheus scrapes.
//
// # Key Components
//
// Manager: Handles OpenTelemetry initialization, lifecycle management, and shutdown.
// The Manager centralizes TracerProvider configuration and ensures proper resource cleanup.
//
// TracerWrapper: Nil-safe tracer handle that falls back to a noop tracer when
// tracing is disabled, so pipeline code never branches on tracing state.
//
// Attributes: Centralized span attribute constants organized by category
// (HTTP, Ingest, Export, Relay, Scrape). Using constants prevents typos and
// enables IDE autocomplete.
//
// Error Templates: Reusable error message templates for common failure scenarios with
// actionable troubleshooting steps.
//
// # Usage Example
//
// Initializing telemetry:
//
//	cfg := telemetry.Config{
//	    Enabled:        true,
//	    Endpoint:       "localhost:4317",
//	    Insecure:       true,
//	    SamplingRate:   1.0,
//	    ServiceName:    "spanrelay",
//	    ServiceVersion: "1.0.0",
//	    ZipkinBackend:  "zipkin.example.com",
//	}
//	manager := telemetry.NewManager(cfg)
//	if err := manager.Initialize(ctx); err != nil {
//	    log.Fatalf("Failed to initialize telemetry: %v", err)
//	}
//	defer manager.Shutdown(ctx)
//
// Using span attributes:
//
//	span.SetAttributes(
//	    attribute.Int(telemetry.AttrExportBatchSize, len(batch)),
//	    attribute.String(telemetry.AttrExportBackend, "zipkin"),
//	)
//
// # Design Patterns
//
// Graceful Degradation: If OpenTelemetry initialization fails, the manager
// disables tracing and allows the relay to continue without self-telemetry.
// This ensures monitoring failures don't impact span forwarding.
//
// Centralized Constants: All span attribute keys are defined as package-level
// constants to prevent typos, enable compile-time validation, and improve
// maintainability.
//
// # Sampling Strategies
//
// The package supports two sampling strategies:
//
//   - AlwaysSample: Sample all traces (SamplingRate = 1.0)
//   - TraceIDRatioBased: Sample based on trace ID ratio (SamplingRate < 1.0)
//
// Use lower sampling rates in high-volume production environments to reduce
// overhead and storage costs.
package telemetry
