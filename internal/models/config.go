// Package models defines the core data structures for the span relay application.
// It includes the application configuration model and the span wire model that
// matches the Zipkin v2 JSON format.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pipeline processing modes.
const (
	// ModeSimple forwards spans to the exporter as soon as they arrive.
	ModeSimple = "simple"

	// ModeBatch buffers spans and flushes on batch size or interval.
	ModeBatch = "batch"
)

// Default values applied by SetDefaults for optional pipeline settings.
const (
	DefaultBufferSize    = 2048
	DefaultBatchSize     = 100
	DefaultFlushInterval = "5s"
	DefaultDedupTTL      = "2m"
	DefaultLogLevel      = "info"
)

// validLogLevels are the accepted values for Server.LogLevel, matching the
// level names logrus parses.
var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Config represents the complete application configuration for the span relay.
// It includes settings for the relay's own HTTP server, the Zipkin backend that
// receives exported spans, the pipeline policy, and optional self-tracing.
type Config struct {
	Server struct {
		Port     string `yaml:"port"`
		Host     string `yaml:"host"`
		URI      string `yaml:"uri"`
		LogName  string `yaml:"logName"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"server"`

	Zipkin struct {
		Scheme             string `yaml:"scheme"`
		Host               string `yaml:"host"`
		Port               string `yaml:"port"`
		URI                string `yaml:"uri"`
		AuthToken          string `yaml:"authToken"`
		InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	} `yaml:"zipkin"`

	Pipeline struct {
		Mode          string `yaml:"mode"`
		BufferSize    int    `yaml:"bufferSize"`
		BatchSize     int    `yaml:"batchSize"`
		FlushInterval string `yaml:"flushInterval"`
		DedupTTL      string `yaml:"dedupTTL"`
	} `yaml:"pipeline"`

	OpenTelemetry struct {
		Enabled      bool    `yaml:"enabled"`
		Endpoint     string  `yaml:"endpoint"`
		Insecure     bool    `yaml:"insecure"`
		SamplingRate float64 `yaml:"samplingRate"`
	} `yaml:"opentelemetry"`
}

// SetDefaults sets default values for optional configuration fields.
// Pipeline defaults target a low-volume relay: a 2048-span buffer flushed in
// batches of 100 every 5 seconds, with a 2 minute duplicate suppression window.
// This method is called automatically by Validate() before validation checks.
func (c *Config) SetDefaults() {
	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = ModeBatch
	}
	if c.Pipeline.BufferSize == 0 {
		c.Pipeline.BufferSize = DefaultBufferSize
	}
	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = DefaultBatchSize
	}
	if c.Pipeline.FlushInterval == "" {
		c.Pipeline.FlushInterval = DefaultFlushInterval
	}
	if c.Pipeline.DedupTTL == "" {
		c.Pipeline.DedupTTL = DefaultDedupTTL
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Zipkin.Scheme == "" {
		c.Zipkin.Scheme = "http"
	}
	if c.Zipkin.Port == "" {
		c.Zipkin.Port = "9411"
	}
	if c.Zipkin.URI == "" {
		c.Zipkin.URI = "/api/v2/spans"
	}
	if c.OpenTelemetry.Enabled && c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
}

// Validate checks if the configuration is valid and returns an error if not.
// It performs comprehensive validation of all configuration fields including:
//   - Server settings (host, port, metrics URI)
//   - Zipkin backend settings (host, port, scheme)
//   - Pipeline settings (mode, buffer/batch sizing, intervals)
//   - Port ranges (1-65535)
//   - URL schemes (http/https only)
//
// This method calls SetDefaults() before validation to ensure optional fields
// have appropriate default values.
//
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	c.SetDefaults()

	// Validate relay server configuration
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}
	if c.Server.Host == "" {
		return errors.New("server host is required")
	}
	if c.Server.URI == "" {
		return errors.New("server URI is required")
	}
	if !validLogLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Server.LogLevel)
	}

	// Validate Zipkin backend configuration
	if c.Zipkin.Host == "" {
		return errors.New("zipkin host is required")
	}
	if port, err := strconv.Atoi(c.Zipkin.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid zipkin port: %s", c.Zipkin.Port)
	}
	if c.Zipkin.Scheme != "http" && c.Zipkin.Scheme != "https" {
		return fmt.Errorf("invalid zipkin scheme: %s (must be http or https)", c.Zipkin.Scheme)
	}
	if !strings.HasPrefix(c.Zipkin.URI, "/") {
		return fmt.Errorf("invalid zipkin URI: %s (must start with /)", c.Zipkin.URI)
	}

	// Validate pipeline configuration
	if c.Pipeline.Mode != ModeSimple && c.Pipeline.Mode != ModeBatch {
		return fmt.Errorf("invalid pipeline mode: %s (must be %s or %s)", c.Pipeline.Mode, ModeSimple, ModeBatch)
	}
	if c.Pipeline.BufferSize < 1 {
		return fmt.Errorf("invalid pipeline buffer size: %d", c.Pipeline.BufferSize)
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("invalid pipeline batch size: %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.BatchSize > c.Pipeline.BufferSize {
		return fmt.Errorf("pipeline batch size (%d) exceeds buffer size (%d)", c.Pipeline.BatchSize, c.Pipeline.BufferSize)
	}
	if _, err := time.ParseDuration(c.Pipeline.FlushInterval); err != nil {
		return fmt.Errorf("invalid flush interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Pipeline.DedupTTL); err != nil {
		return fmt.Errorf("invalid dedup TTL: %w", err)
	}

	// Validate OpenTelemetry configuration
	if c.OpenTelemetry.Enabled {
		if c.OpenTelemetry.Endpoint == "" {
			return errors.New("opentelemetry endpoint is required when enabled")
		}
		if c.OpenTelemetry.SamplingRate < 0 || c.OpenTelemetry.SamplingRate > 1 {
			return fmt.Errorf("invalid sampling rate: %f (must be between 0.0 and 1.0)", c.OpenTelemetry.SamplingRate)
		}
	}

	return nil
}

// GetZipkinBaseURL returns the complete span ingestion URL for the Zipkin backend.
// Format: scheme://host:port/uri
//
// Example: "http://zipkin.example.com:9411/api/v2/spans"
func (c *Config) GetZipkinBaseURL() string {
	return fmt.Sprintf("%s://%s:%s%s", c.Zipkin.Scheme, c.Zipkin.Host, c.Zipkin.Port, c.Zipkin.URI)
}

// GetServerAddress returns the complete server address for HTTP server binding.
// Format: host:port
//
// Example: "0.0.0.0:9412"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetFlushInterval parses and returns the batch flush interval as a time.Duration.
// Validate() guarantees the value parses, so errors only occur on unvalidated configs.
func (c *Config) GetFlushInterval() (time.Duration, error) {
	return time.ParseDuration(c.Pipeline.FlushInterval)
}

// GetDedupTTL parses and returns the duplicate suppression window as a time.Duration.
func (c *Config) GetDedupTTL() (time.Duration, error) {
	return time.ParseDuration(c.Pipeline.DedupTTL)
}

// IsOTelEnabled reports whether self-tracing is enabled in the configuration.
func (c *Config) IsOTelEnabled() bool {
	return c.OpenTelemetry.Enabled
}

// MaskAuthToken returns a masked version of the Zipkin auth token for safe logging.
// Shows the first 4 and last 4 characters with asterisks in between.
//
// Example: "abcd1234efgh5678" -> "abcd****5678"
//
// For tokens shorter than 8 characters, returns "****".
func (c *Config) MaskAuthToken() string {
	if len(c.Zipkin.AuthToken) <= 8 {
		return "****"
	}
	return c.Zipkin.AuthToken[:4] + "****" + c.Zipkin.AuthToken[len(c.Zipkin.AuthToken)-4:]
}
