// Spanrelay is a telemetry relay that accepts finished spans over HTTP
// (Zipkin v2 JSON), buffers them in a bounded in-memory recorder with
// duplicate suppression, and forwards them to a Zipkin backend.
//
// The relay exposes:
//   - Span intake at POST /api/v2/spans
//   - Prometheus metrics about its own pipeline at the configured URI
//   - A health check endpoint at /health
//
// Usage:
//
//	spanrelay --config config.yaml [--debug] [--dry-run]
//
// Configuration is provided via YAML file specifying:
//   - Server settings (host, port, metrics URI, log file)
//   - Zipkin backend details (scheme, host, port, auth token)
//   - Pipeline policy (simple or batch, buffer/batch sizes, flush interval)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/collector"
	"github.com/spanworks/spanrelay/internal/config"
	"github.com/spanworks/spanrelay/internal/export"
	"github.com/spanworks/spanrelay/internal/ingest"
	"github.com/spanworks/spanrelay/internal/logging"
	"github.com/spanworks/spanrelay/internal/models"
	"github.com/spanworks/spanrelay/internal/processor"
	"github.com/spanworks/spanrelay/internal/recorder"
	"github.com/spanworks/spanrelay/internal/telemetry"
	"github.com/spanworks/spanrelay/internal/utils"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	programName       = "spanrelay"        // Application name
	programVersion    = "1.0.0"            // Reported in relay_build_info and traces
	spansPath         = "/api/v2/spans"    // Zipkin v2 span intake path
	shutdownTimeout   = 10 * time.Second   // Maximum time to wait for graceful shutdown
	readHeaderTimeout = 5 * time.Second    // HTTP server read header timeout
)

var (
	configFile string
	debug      bool
	dryRun     bool
)

// Server encapsulates the HTTP server and the span pipeline it fronts.
// It manages the lifecycle of the HTTP server, Prometheus registry, span
// recorder, processor, exporter adapter, and OpenTelemetry telemetry manager.
//
// Error Handling:
// Server errors (such as port binding failures) are communicated through the
// ErrorChan() channel rather than calling log.Fatal. This allows the caller
// to perform graceful shutdown even when the server encounters errors.
//
// Usage:
//
//	server := NewServer(cfg, dryRun)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//
//	select {
//	case <-shutdownSignal:
//	    // Normal shutdown
//	case err := <-server.ErrorChan():
//	    log.Errorf("Server error: %v", err)
//	}
//
//	server.Shutdown()
type Server struct {
	cfg              models.Config        // Application configuration
	dryRun           bool                 // Log spans instead of exporting them
	httpSrv          *http.Server         // HTTP server instance
	registry         *prometheus.Registry // Prometheus metrics registry
	telemetryManager *telemetry.Manager   // OpenTelemetry telemetry manager (nil if disabled)
	rec              *recorder.SpanRecorder
	proc             processor.Processor
	exporter         export.SpanExporter
	// serverErrChan receives HTTP server errors. It is buffered (capacity 1)
	// to ensure the goroutine can send an error even if the main select
	// hasn't started listening yet (race between Start() return and select).
	serverErrChan chan error
}

// NewServer creates a new server instance with the provided configuration.
// It initializes a new Prometheus registry and creates a telemetry manager
// if OpenTelemetry is enabled in the configuration.
func NewServer(cfg models.Config, dryRun bool) *Server {
	var telemetryMgr *telemetry.Manager

	if cfg.IsOTelEnabled() {
		telemetryMgr = telemetry.NewManager(telemetry.Config{
			Enabled:        cfg.OpenTelemetry.Enabled,
			Endpoint:       cfg.OpenTelemetry.Endpoint,
			Insecure:       cfg.OpenTelemetry.Insecure,
			SamplingRate:   cfg.OpenTelemetry.SamplingRate,
			ServiceName:    programName,
			ServiceVersion: programVersion,
			ZipkinBackend:  cfg.Zipkin.Host,
		})
	}

	return &Server{
		cfg:              cfg,
		dryRun:           dryRun,
		registry:         prometheus.NewRegistry(),
		telemetryManager: telemetryMgr,
		serverErrChan:    make(chan error, 1), // Buffered to prevent goroutine leak
	}
}

// Start initializes the pipeline and starts the HTTP server.
// It initializes OpenTelemetry if enabled, builds the recorder, exporter,
// and processor from configuration, registers the pipeline collector, and
// starts the server in a goroutine.
//
// Returns an error if collector registration fails. The HTTP server runs
// asynchronously and reports failures through ErrorChan().
func (s *Server) Start() error {
	// Initialize OpenTelemetry if enabled
	var tracerProvider trace.TracerProvider
	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.telemetryManager.Initialize(ctx); err != nil {
			// Log warning but continue - telemetry manager handles graceful degradation
			log.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		}

		if s.telemetryManager.IsEnabled() {
			tracerProvider = s.telemetryManager.TracerProvider()

			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			))
			log.Info("OpenTelemetry trace context propagation configured")
		}
	}

	// Build the pipeline: recorder -> processor -> exporter.
	// Validate() guarantees the durations parse.
	dedupTTL, _ := s.cfg.GetDedupTTL()
	flushInterval, _ := s.cfg.GetFlushInterval()
	s.rec = recorder.NewSpanRecorder(s.cfg.Pipeline.BufferSize, dedupTTL)

	if s.dryRun {
		log.Info("Dry-run mode: spans will be logged, not exported")
		s.exporter = export.NewLogExporter()
	} else {
		s.exporter = export.NewZipkinExporter(s.cfg)
	}

	var procOpts []processor.Option
	if tracerProvider != nil {
		procOpts = append(procOpts, processor.WithTracerProvider(tracerProvider))
	}

	switch s.cfg.Pipeline.Mode {
	case models.ModeSimple:
		s.proc = processor.NewSimpleProcessor(s.rec, s.exporter, procOpts...)
	default:
		s.proc = processor.NewBatchProcessor(s.rec, s.exporter,
			s.cfg.Pipeline.BatchSize, flushInterval, procOpts...)
	}
	go s.proc.Run()

	// Register the pipeline collector with Prometheus
	var collectorOpts []collector.CollectorOption
	if tracerProvider != nil {
		collectorOpts = append(collectorOpts, collector.WithCollectorTracerProvider(tracerProvider))
	}
	pipelineCollector := collector.NewPipelineCollector(s.rec, s.proc, programVersion, collectorOpts...)
	if err := s.registry.Register(pipelineCollector); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	// Setup HTTP handlers
	mux := http.NewServeMux()

	var ingestOpts []ingest.HandlerOption
	if tracerProvider != nil {
		ingestOpts = append(ingestOpts, ingest.WithTracerProvider(tracerProvider))
	}
	var ingestHandler http.Handler = ingest.NewHandler(s.rec, ingestOpts...)

	prometheusHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	if s.telemetryManager != nil && s.telemetryManager.IsEnabled() {
		// Extract W3C trace context so relay spans join their callers' traces
		prometheusHandler = extractTraceContextMiddleware(prometheusHandler)
		ingestHandler = extractTraceContextMiddleware(ingestHandler)
	}

	mux.Handle(spansPath, ingestHandler)
	mux.Handle(s.cfg.Server.URI, prometheusHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.httpSrv = &http.Server{
		Addr:              s.cfg.GetServerAddress(),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Infof("Starting %s on %s (intake %s, metrics %s)",
			programName, s.cfg.GetServerAddress(), spansPath, s.cfg.Server.URI)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Send error through channel instead of log.Fatalf
			s.serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return nil
}

// ErrorChan returns the channel for receiving server errors.
// The main function should select on this channel to handle errors gracefully.
func (s *Server) ErrorChan() <-chan error {
	return s.serverErrChan
}

// ReloadConfig reloads and revalidates the configuration file. Only the log
// level and the recorder's dedup window are applied live; address, backend,
// and pipeline topology changes require a restart.
//
// Called by the config watcher on file change and SIGHUP.
func (s *Server) ReloadConfig(configPath string) error {
	cfg, err := validateConfig(configPath)
	if err != nil {
		return fmt.Errorf("reload rejected: %w", err)
	}

	// Validate() guarantees the level parses and the TTL is a duration
	level, _ := log.ParseLevel(cfg.Server.LogLevel)
	log.SetLevel(level)

	dedupTTL, _ := cfg.GetDedupTTL()
	s.rec.SetDedupTTL(dedupTTL)

	log.Infof("Configuration reloaded (log level %s, dedup window %s reset)",
		cfg.Server.LogLevel, dedupTTL)
	return nil
}

// Shutdown gracefully shuts down the server components in order.
//
// Shutdown Order:
//  1. Stop HTTP server (no new spans or scrapes accepted)
//  2. Shutdown processor (final flush of buffered spans)
//  3. Shutdown OpenTelemetry (flush pending self-traces)
//  4. Shutdown exporter (drains backend connections)
//
// Note: The processor is shut down BEFORE the exporter so the final flush
// still has a live transport; telemetry is shut down before the exporter
// for the same reason (export spans are in-flight until step 2 completes).
//
// Returns an error if shutdown fails or times out.
func (s *Server) Shutdown() error {
	var errs []error

	// Step 1: Shutdown HTTP server first (stops accepting new spans)
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down HTTP server...")
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// Step 2: Shutdown processor (final flush of buffered spans)
	if s.proc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Flushing remaining spans...")
		if err := s.proc.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("processor shutdown: %w", err))
		}
	}

	// Step 3: Shutdown OpenTelemetry (flush pending self-traces)
	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down telemetry...")
		if err := s.telemetryManager.Shutdown(ctx); err != nil {
			log.Warnf("Telemetry shutdown warning: %v", err)
			// Don't add to errs - telemetry shutdown warnings are non-fatal
		}
	}

	// Step 4: Shutdown exporter (drains backend connections)
	if s.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Closing exporter connections...")
		if err := s.exporter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("exporter shutdown: %w", err))
		}
	}

	// Close error channel to signal no more errors will be sent
	close(s.serverErrChan)

	if len(errs) > 0 {
		log.Errorf("Shutdown completed with %d errors", len(errs))
		// Return first error for simplicity
		return errs[0]
	}

	log.Info("Server stopped gracefully")
	return nil
}

// extractTraceContextMiddleware wraps an HTTP handler to extract W3C trace
// context from incoming requests, so spans created while handling the request
// join the caller's trace. Requests without trace headers proceed untraced.
func extractTraceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthHandler provides a simple health check endpoint that returns HTTP 200 OK.
// This endpoint can be used by load balancers and monitoring systems to verify
// the application is running.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}

// validateConfig checks if the configuration file exists, loads it, and
// validates its contents.
func validateConfig(configPath string) (*models.Config, error) {
	if !utils.FileExists(configPath) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg models.Config
	if err := utils.ReadFile(&cfg, configPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setupLogging initializes the logging system with the configured log file
// and level. The --debug flag overrides the configured level with DEBUG.
func setupLogging(cfg models.Config, debugMode bool) error {
	if err := logging.PrepareLogs(cfg.Server.LogName); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	// Validate() guarantees the level parses
	level, _ := log.ParseLevel(cfg.Server.LogLevel)
	log.SetLevel(level)

	if debugMode {
		log.SetLevel(log.DebugLevel)
		log.Debug("Debug mode enabled")
	}

	return nil
}

// waitForShutdown blocks until either a shutdown signal is received
// or a server error occurs through the error channel.
//
// Signals handled:
//   - SIGINT (Ctrl+C)
//   - SIGTERM (kill command)
//
// Returns an error if the server encountered a fatal error, nil for normal
// signal shutdown.
func waitForShutdown(serverErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Infof("Received signal %v, initiating graceful shutdown...", sig)
		return nil
	case err := <-serverErr:
		return err
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Telemetry relay forwarding spans to Zipkin",
		Long:  "Spanrelay accepts Zipkin v2 span batches over HTTP, buffers and deduplicates them, forwards them to a Zipkin backend, and exposes Prometheus metrics about its own pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := validateConfig(configFile)
			if err != nil {
				return err
			}

			if err := setupLogging(*cfg, debug); err != nil {
				return err
			}

			log.Infof("Starting %s...", programName)
			log.Infof("Zipkin backend: %s", cfg.GetZipkinBaseURL())
			log.Infof("Pipeline mode: %s (buffer %d, batch %d, flush %s)",
				cfg.Pipeline.Mode, cfg.Pipeline.BufferSize, cfg.Pipeline.BatchSize, cfg.Pipeline.FlushInterval)
			if debug {
				log.Infof("Auth token: %s", cfg.MaskAuthToken())
			}

			server := NewServer(*cfg, dryRun)
			if err := server.Start(); err != nil {
				return err
			}

			// Live config reload: file watch + SIGHUP
			watcher, err := config.NewWatcher(configFile, server.ReloadConfig)
			if err != nil {
				log.Warnf("Config watcher setup failed: %v. Continuing without live reload.", err)
			} else {
				defer watcher.Close()
			}

			if err := waitForShutdown(server.ErrorChan()); err != nil {
				log.Errorf("Server error: %v", err)
				// Continue to graceful shutdown
			}

			return server.Shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (required)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log spans instead of exporting them")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
