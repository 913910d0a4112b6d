package datadog

// Span is the agent's representation of one span.
// Name, Service, Resource and Type are omitted from the payload when nil.
type Span struct {
	// operation name
	Name *string `codec:"name,omitempty" json:"name,omitempty"`
	// service name (i.e. "grpc.server", "http.request")
	Service *string `codec:"service,omitempty" json:"service,omitempty"`
	// resource name (i.e. "/user?id=123", "SELECT * FROM users")
	Resource *string `codec:"resource,omitempty" json:"resource,omitempty"`
	// protocol associated with the span (i.e. "web", "db", "cache")
	Type *string `codec:"type,omitempty" json:"type,omitempty"`

	Meta  map[string]string `codec:"meta" json:"meta"`
	Error int64             `codec:"error" json:"error"`
	// numeric tags
	Metrics map[string]float64 `codec:"metrics" json:"metrics"`

	// nanoseconds since the Unix epoch; negative before it
	Start int64 `codec:"start" json:"start"`
	// nanoseconds
	Duration int64 `codec:"duration" json:"duration"`

	TraceID  uint64 `codec:"trace_id" json:"trace_id"`
	SpanID   uint64 `codec:"span_id" json:"span_id"`
	ParentID uint64 `codec:"parent_id" json:"parent_id"`
}

// Trace is a partial trace: the spans of one trace id seen in one export call,
// in arrival order.
type Trace []*Span

// Traces is the payload of one upload.
type Traces []Trace

// SpanCount returns the number of spans across all traces.
func (t Traces) SpanCount() int {
	n := 0
	for _, trace := range t {
		n += len(trace)
	}
	return n
}

func stringPtr(s string) *string { return &s }
