package tracing

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"
)

// ErrInvalidTraceID is returned when a trace ID string cannot be decoded.
var ErrInvalidTraceID = errors.New("invalid trace id")

// TraceID is a 128-bit trace identifier. Full precision is kept in memory;
// protocols that carry fewer bits narrow it with Low64 at their own boundary.
type TraceID [16]byte

// TraceIDFromUint64 builds a trace ID whose low 64 bits are lo and high bits are zero.
func TraceIDFromUint64(lo uint64) TraceID {
	var t TraceID
	binary.BigEndian.PutUint64(t[8:], lo)
	return t
}

// TraceIDFromParts builds a trace ID from its high and low 64-bit halves.
func TraceIDFromParts(hi, lo uint64) TraceID {
	var t TraceID
	binary.BigEndian.PutUint64(t[:8], hi)
	binary.BigEndian.PutUint64(t[8:], lo)
	return t
}

// TraceIDFromHex decodes a 32 character hex trace ID.
func TraceIDFromHex(s string) (TraceID, error) {
	var t TraceID
	if len(s) != 32 {
		return t, ErrInvalidTraceID
	}
	if _, err := hex.Decode(t[:], []byte(s)); err != nil {
		return t, ErrInvalidTraceID
	}
	return t, nil
}

// IsValid reports whether the trace ID is non-zero.
func (t TraceID) IsValid() bool { return t != TraceID{} }

// High64 returns the upper 64 bits.
func (t TraceID) High64() uint64 { return binary.BigEndian.Uint64(t[:8]) }

// Low64 returns the lower 64 bits. This is a lossy narrowing whenever High64 is non-zero.
func (t TraceID) Low64() uint64 { return binary.BigEndian.Uint64(t[8:]) }

// String returns the 32 character lowercase hex form.
func (t TraceID) String() string { return hex.EncodeToString(t[:]) }

// SpanContext holds the trace context for propagation.
type SpanContext struct {
	TraceID TraceID
	SpanID  uint64
	Sampled bool
	// Remote is set when the context was extracted from a carrier.
	Remote bool
}

// IsValid returns true if the span context has non-zero trace and span IDs.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID != 0
}

// SpanStatus represents the status of a span.
type SpanStatus int

const (
	// StatusUnset is the default status.
	StatusUnset SpanStatus = iota
	// StatusOK indicates the operation completed successfully.
	StatusOK
	// StatusError indicates the operation failed.
	StatusError
)

// String returns the string representation of the status.
func (s SpanStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// SpanKind describes the relationship between the Span, its parents and children.
type SpanKind int

const (
	// SpanKindUnspecified is the default, unspecified span kind.
	SpanKindUnspecified SpanKind = 0
	// SpanKindInternal indicates an internal operation.
	SpanKindInternal SpanKind = 1
	// SpanKindServer indicates a server-side handling of an RPC or HTTP request.
	SpanKindServer SpanKind = 2
	// SpanKindClient indicates a client-side RPC or HTTP request.
	SpanKindClient SpanKind = 3
	// SpanKindProducer indicates a message producer.
	SpanKindProducer SpanKind = 4
	// SpanKindConsumer indicates a message consumer.
	SpanKindConsumer SpanKind = 5
)

// String returns the lowercase name of the kind. Unspecified reads as internal.
func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	case SpanKindProducer:
		return "producer"
	case SpanKindConsumer:
		return "consumer"
	default:
		return "internal"
	}
}

// SpanRecord is a completed span handed to a SpanExporter.
// Records are values owned by the caller for the duration of one export call.
type SpanRecord struct {
	Name          string
	Kind          SpanKind
	SpanContext   SpanContext
	ParentSpanID  uint64
	StartTime     time.Time
	EndTime       time.Time
	Status        SpanStatus
	StatusMessage string
	Attributes    []KeyValue
}

// Failed reports whether the span ended with an error status.
func (r SpanRecord) Failed() bool { return r.Status == StatusError }
