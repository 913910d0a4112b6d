package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/getmockd/ddexport/internal/id"
)

// Span is a live span. It is recorded until End is called, after which it
// is converted to a SpanRecord and queued on its tracer's exporter.
type Span struct {
	mu     sync.Mutex
	record SpanRecord
	tracer *Tracer
	ended  bool
}

// End marks the span as ended and queues it for export.
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.record.EndTime = time.Now()
	record := s.record
	s.mu.Unlock()

	if s.tracer != nil {
		s.tracer.exportSpan(record)
	}
}

// SetAttributes sets attributes on the span. A key that is already set is overwritten.
func (s *Span) SetAttributes(attrs ...KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	for _, kv := range attrs {
		s.setAttribute(kv)
	}
}

// SetAttribute sets a single attribute, picking its kind from the Go type of value.
func (s *Span) SetAttribute(key string, value any) {
	s.SetAttributes(Any(key, value))
}

func (s *Span) setAttribute(kv KeyValue) {
	s.record.Attributes = setAttribute(s.record.Attributes, kv)
}

// setAttribute replaces the value of kv.Key in attrs, or appends kv.
func setAttribute(attrs []KeyValue, kv KeyValue) []KeyValue {
	for i := range attrs {
		if attrs[i].Key == kv.Key {
			attrs[i].Value = kv.Value
			return attrs
		}
	}
	return append(attrs, kv)
}

// SetKind sets the kind of the span. This should be called before End().
func (s *Span) SetKind(kind SpanKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.record.Kind = kind
}

// SetStatus sets the status of the span.
func (s *Span) SetStatus(status SpanStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.record.Status = status
	s.record.StatusMessage = message
}

// IsRecording returns true if the span is recording.
func (s *Span) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// SpanContext returns the context values needed for propagation.
func (s *Span) SpanContext() SpanContext {
	return s.record.SpanContext
}

// Record returns a snapshot of the span's current state.
func (s *Span) Record() SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record
	r.Attributes = append([]KeyValue(nil), s.record.Attributes...)
	return r
}

// Tracer creates spans and batches finished ones for a SpanExporter.
type Tracer struct {
	exporter  SpanExporter
	sampler   Sampler
	mu        sync.Mutex
	spans     []SpanRecord
	batchSize int
	inflight  map[chan struct{}]struct{} // closed when a background export returns
	onError   func(error)
	bgErr     error // first background failure since the last Flush
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithExporter sets the exporter for the tracer.
func WithExporter(e SpanExporter) TracerOption {
	return func(t *Tracer) {
		t.exporter = e
	}
}

// WithSampler sets the sampler for the tracer.
func WithSampler(s Sampler) TracerOption {
	return func(t *Tracer) {
		t.sampler = s
	}
}

// WithErrorHandler sets a function called with an *ExportError whenever a
// background batch export fails. The same failure is also returned by the
// next Flush.
func WithErrorHandler(fn func(error)) TracerOption {
	return func(t *Tracer) {
		t.onError = fn
	}
}

// WithBatchSize sets the batch size for span export.
func WithBatchSize(size int) TracerOption {
	return func(t *Tracer) {
		if size > 0 {
			t.batchSize = size
		}
	}
}

// Sampler decides whether a new root trace should be sampled.
type Sampler interface {
	ShouldSample(traceID TraceID) bool
}

// AlwaysSample is a sampler that always samples.
type AlwaysSample struct{}

// ShouldSample always returns true.
func (AlwaysSample) ShouldSample(TraceID) bool { return true }

// NeverSample is a sampler that never samples.
type NeverSample struct{}

// ShouldSample always returns false.
func (NeverSample) ShouldSample(TraceID) bool { return false }

// RatioSampler samples a percentage of traces.
type RatioSampler struct {
	ratio float64
}

// NewRatioSampler creates a sampler that samples the given ratio of traces.
func NewRatioSampler(ratio float64) *RatioSampler {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &RatioSampler{ratio: ratio}
}

// ShouldSample returns true if the trace should be sampled based on the
// low 64 bits of the trace ID, so every service keeps the same traces.
func (s *RatioSampler) ShouldSample(traceID TraceID) bool {
	if s.ratio >= 1 {
		return true
	}
	if s.ratio <= 0 {
		return false
	}
	threshold := uint64(s.ratio * float64(^uint64(0)))
	return traceID.Low64() < threshold
}

// NewTracer creates a new Tracer.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		sampler:   AlwaysSample{},
		batchSize: 100,
		inflight:  make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartOption configures a span at creation.
type StartOption func(*SpanRecord)

// WithSpanKind sets the kind of the new span.
func WithSpanKind(kind SpanKind) StartOption {
	return func(r *SpanRecord) {
		r.Kind = kind
	}
}

// WithAttributes sets initial attributes on the new span. A repeated key
// keeps its last value.
func WithAttributes(attrs ...KeyValue) StartOption {
	return func(r *SpanRecord) {
		for _, kv := range attrs {
			r.Attributes = setAttribute(r.Attributes, kv)
		}
	}
}

// WithStartTime overrides the start timestamp of the new span.
func WithStartTime(ts time.Time) StartOption {
	return func(r *SpanRecord) {
		r.StartTime = ts
	}
}

// Start creates a new span with the given name.
// If the context carries a span or an extracted remote context, the new
// span joins that trace and inherits its sampling decision.
func (t *Tracer) Start(ctx context.Context, name string, opts ...StartOption) (context.Context, *Span) {
	var traceID TraceID
	var parentID uint64
	var sampled bool

	parent := SpanContextFromContext(ctx)
	if parent.IsValid() {
		traceID = parent.TraceID
		parentID = parent.SpanID
		sampled = parent.Sampled
	} else {
		traceID = TraceID(id.TraceID())
		sampled = t.sampler.ShouldSample(traceID)
	}

	record := SpanRecord{
		Name: name,
		SpanContext: SpanContext{
			TraceID: traceID,
			SpanID:  id.SpanID(),
			Sampled: sampled,
		},
		ParentSpanID: parentID,
		StartTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(&record)
	}

	span := &Span{record: record}
	if sampled {
		span.tracer = t
	} else {
		// Non-recording span: still propagates, never exported.
		span.ended = true
	}
	return ContextWithSpan(ctx, span), span
}

// Shutdown flushes pending spans and shuts the exporter down.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if err := t.Flush(ctx); err != nil {
		return err
	}
	if t.exporter != nil {
		return t.exporter.Shutdown(ctx)
	}
	return nil
}

// exportSpan adds a span to the batch and exports if batch is full.
func (t *Tracer) exportSpan(record SpanRecord) {
	if t.exporter == nil {
		return
	}

	t.mu.Lock()
	t.spans = append(t.spans, record)
	if len(t.spans) < t.batchSize {
		t.mu.Unlock()
		return
	}
	spans := t.spans
	t.spans = nil
	done := make(chan struct{})
	t.inflight[done] = struct{}{}
	t.mu.Unlock()

	// Export in background to avoid blocking
	go func() {
		res := t.exporter.ExportSpans(context.Background(), spans)

		var err error
		t.mu.Lock()
		delete(t.inflight, done)
		if res != Success {
			err = &ExportError{Result: res}
			if t.bgErr == nil {
				t.bgErr = err
			}
		}
		onError := t.onError
		t.mu.Unlock()
		close(done)

		if err != nil && onError != nil {
			onError(err)
		}
	}()
}

// Flush waits for in-flight exports, then exports any buffered spans.
// It returns an *ExportError when the exporter rejected this batch or a
// background batch since the previous Flush, and ctx.Err() when ctx ends
// first.
func (t *Tracer) Flush(ctx context.Context) error {
	t.mu.Lock()
	pending := make([]chan struct{}, 0, len(t.inflight))
	for done := range t.inflight {
		pending = append(pending, done)
	}
	t.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	spans := t.spans
	t.spans = nil
	bgErr := t.bgErr
	t.bgErr = nil
	t.mu.Unlock()

	if t.exporter != nil && len(spans) > 0 {
		if res := t.exporter.ExportSpans(ctx, spans); res != Success {
			return &ExportError{Result: res}
		}
	}
	return bgErr
}

// Context key types for storing span information.
type spanContextKey struct{}
type spanContextValueKey struct{}

// ContextWithSpan returns a new context with the span stored in it.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext returns the current span from the context, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// ContextWithRemoteSpanContext returns a context carrying an extracted span context.
func ContextWithRemoteSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanContextValueKey{}, sc)
}

// SpanContextFromContext returns the span context of the current span, or
// the remote context stored by ContextWithRemoteSpanContext, or the empty
// context when neither is present.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if span := SpanFromContext(ctx); span != nil {
		return span.SpanContext()
	}
	if sc, ok := ctx.Value(spanContextValueKey{}).(SpanContext); ok {
		return sc
	}
	return SpanContext{}
}
