package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ExportResult is the outcome of one ExportSpans call.
type ExportResult int

const (
	// Success means the batch was accepted. For asynchronous exporters this
	// says nothing about eventual delivery.
	Success ExportResult = iota
	// FailedRetryable means the caller may retry the same batch.
	FailedRetryable
	// FailedNotRetryable means the batch was dropped and must not be retried.
	FailedNotRetryable
)

// String returns the string representation of the result.
func (r ExportResult) String() string {
	switch r {
	case Success:
		return "success"
	case FailedRetryable:
		return "failed_retryable"
	case FailedNotRetryable:
		return "failed_not_retryable"
	default:
		return fmt.Sprintf("ExportResult(%d)", int(r))
	}
}

// ExportError wraps a non-success ExportResult as an error.
type ExportError struct {
	Result ExportResult
}

func (e *ExportError) Error() string {
	return "export failed: " + e.Result.String()
}

// SpanExporter exports completed spans to a backend.
type SpanExporter interface {
	// ExportSpans sends one batch of spans. Implementations must be safe
	// for concurrent calls.
	ExportSpans(ctx context.Context, spans []SpanRecord) ExportResult
	// Shutdown releases the exporter. Exports after Shutdown fail.
	Shutdown(ctx context.Context) error
}

// ============================================================================
// StdoutExporter - prints spans as JSON (for dev/debug)
// ============================================================================

// StdoutExporter writes spans to stdout as JSON.
type StdoutExporter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
}

// StdoutOption configures a StdoutExporter.
type StdoutOption func(*StdoutExporter)

// WithWriter sets the output writer for the exporter.
func WithWriter(w io.Writer) StdoutOption {
	return func(e *StdoutExporter) {
		e.writer = w
	}
}

// WithPrettyPrint enables pretty-printed JSON output.
func WithPrettyPrint() StdoutOption {
	return func(e *StdoutExporter) {
		e.pretty = true
	}
}

// NewStdoutExporter creates a new stdout exporter.
func NewStdoutExporter(opts ...StdoutOption) *StdoutExporter {
	e := &StdoutExporter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportSpans writes spans to the writer, one JSON document per span.
func (e *StdoutExporter) ExportSpans(_ context.Context, spans []SpanRecord) ExportResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		output := spanToOutput(span)
		var data []byte
		var err error
		if e.pretty {
			data, err = json.MarshalIndent(output, "", "  ")
		} else {
			data, err = json.Marshal(output)
		}
		if err != nil {
			return FailedNotRetryable
		}
		if _, err := fmt.Fprintln(e.writer, string(data)); err != nil {
			return FailedNotRetryable
		}
	}
	return Success
}

// Shutdown is a no-op for the stdout exporter.
func (e *StdoutExporter) Shutdown(context.Context) error {
	return nil
}

// spanOutput is the JSON structure for stdout output.
type spanOutput struct {
	TraceID       string            `json:"traceId"`
	SpanID        uint64            `json:"spanId"`
	ParentID      uint64            `json:"parentId,omitempty"`
	Name          string            `json:"name"`
	Kind          string            `json:"kind"`
	StartTime     string            `json:"startTime"`
	EndTime       string            `json:"endTime"`
	Duration      string            `json:"duration"`
	Status        string            `json:"status"`
	StatusMessage string            `json:"statusMessage,omitempty"`
	Sampled       bool              `json:"sampled"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

func spanToOutput(span SpanRecord) spanOutput {
	output := spanOutput{
		TraceID:       span.SpanContext.TraceID.String(),
		SpanID:        span.SpanContext.SpanID,
		ParentID:      span.ParentSpanID,
		Name:          span.Name,
		Kind:          span.Kind.String(),
		StartTime:     span.StartTime.Format(time.RFC3339Nano),
		EndTime:       span.EndTime.Format(time.RFC3339Nano),
		Duration:      span.EndTime.Sub(span.StartTime).String(),
		Status:        span.Status.String(),
		StatusMessage: span.StatusMessage,
		Sampled:       span.SpanContext.Sampled,
	}

	if len(span.Attributes) > 0 {
		output.Attributes = make(map[string]string, len(span.Attributes))
		for _, kv := range span.Attributes {
			output.Attributes[kv.Key] = kv.Value.Emit()
		}
	}

	return output
}

// ============================================================================
// NoopExporter - does nothing (for testing/disabled tracing)
// ============================================================================

// NoopExporter is an exporter that does nothing.
type NoopExporter struct{}

// NewNoopExporter creates a new noop exporter.
func NewNoopExporter() *NoopExporter {
	return &NoopExporter{}
}

// ExportSpans does nothing and reports Success.
func (e *NoopExporter) ExportSpans(context.Context, []SpanRecord) ExportResult {
	return Success
}

// Shutdown does nothing and returns nil.
func (e *NoopExporter) Shutdown(context.Context) error {
	return nil
}
