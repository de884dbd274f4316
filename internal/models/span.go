package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Span kind values following the Zipkin v2 model.
const (
	KindClient   = "CLIENT"
	KindServer   = "SERVER"
	KindProducer = "PRODUCER"
	KindConsumer = "CONSUMER"
)

var (
	traceIDPattern = regexp.MustCompile(`^[0-9a-f]{16}([0-9a-f]{16})?$`)
	spanIDPattern  = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// Endpoint describes a network host in the Zipkin v2 model. Either side of a
// span (local or remote) may be absent.
type Endpoint struct {
	ServiceName string `json:"serviceName,omitempty"`
	IPv4        string `json:"ipv4,omitempty"`
	Port        int    `json:"port,omitempty"`
}

// Annotation is a timestamped event on a span, such as a retry or a queue hop.
// Timestamp is in epoch microseconds, matching the Zipkin wire format.
type Annotation struct {
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
}

// Span represents one finished unit of work with timing and metadata, in the
// Zipkin v2 JSON format. Timestamp and Duration are epoch microseconds and
// microseconds respectively, as required by the wire format.
//
// A span is uniquely identified by its (TraceID, ID) pair; the relay uses that
// pair for duplicate suppression. Instrumented applications commonly report the
// same span twice (for example once from a client library and once from a local
// agent), which shows up as duplicate-looking spans in the tracing backend.
type Span struct {
	TraceID        string            `json:"traceId"`
	ID             string            `json:"id"`
	ParentID       string            `json:"parentId,omitempty"`
	Name           string            `json:"name,omitempty"`
	Kind           string            `json:"kind,omitempty"`
	Timestamp      int64             `json:"timestamp"`
	Duration       int64             `json:"duration"`
	LocalEndpoint  *Endpoint         `json:"localEndpoint,omitempty"`
	RemoteEndpoint *Endpoint         `json:"remoteEndpoint,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	Annotations    []Annotation      `json:"annotations,omitempty"`
}

// Validate checks that the span carries the identifiers and timing the relay
// requires before it is admitted to the pipeline:
//   - TraceID: 16 or 32 lowercase hex characters
//   - ID: 16 lowercase hex characters
//   - ParentID: 16 lowercase hex characters when present
//   - Timestamp: positive epoch microseconds
//   - Duration: non-negative microseconds (zero-duration spans are valid)
//
// Unknown Kind values are passed through untouched; backends ignore kinds they
// don't recognize.
//
// Returns an error describing the first validation failure encountered.
func (s *Span) Validate() error {
	if s.TraceID == "" {
		return errors.New("span traceId is required")
	}
	if !traceIDPattern.MatchString(s.TraceID) {
		return fmt.Errorf("invalid traceId: %s (must be 16 or 32 lowercase hex characters)", s.TraceID)
	}
	if s.ID == "" {
		return errors.New("span id is required")
	}
	if !spanIDPattern.MatchString(s.ID) {
		return fmt.Errorf("invalid span id: %s (must be 16 lowercase hex characters)", s.ID)
	}
	if s.ParentID != "" && !spanIDPattern.MatchString(s.ParentID) {
		return fmt.Errorf("invalid parentId: %s (must be 16 lowercase hex characters)", s.ParentID)
	}
	if s.Timestamp <= 0 {
		return fmt.Errorf("invalid span timestamp: %d (must be positive epoch microseconds)", s.Timestamp)
	}
	if s.Duration < 0 {
		return fmt.Errorf("invalid span duration: %d (must be non-negative microseconds)", s.Duration)
	}
	return nil
}

// Key returns the duplicate suppression key for the span.
// Two reports of the same logical span share a (traceId, id) pair even when
// their metadata differs, so the key ignores everything else.
func (s *Span) Key() string {
	return s.TraceID + ":" + s.ID
}

// StartTime returns the span start as a time.Time.
func (s *Span) StartTime() time.Time {
	return time.UnixMicro(s.Timestamp)
}

// EndTime returns the span end as a time.Time (start plus duration).
func (s *Span) EndTime() time.Time {
	return time.UnixMicro(s.Timestamp + s.Duration)
}

// ServiceName returns the local endpoint service name, or empty if the span
// has no local endpoint.
func (s *Span) ServiceName() string {
	if s.LocalEndpoint == nil {
		return ""
	}
	return s.LocalEndpoint.ServiceName
}
