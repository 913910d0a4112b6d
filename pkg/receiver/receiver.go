package receiver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/getmockd/ddexport/internal/httputil"
	"github.com/getmockd/ddexport/internal/promutil"
	"github.com/getmockd/ddexport/pkg/datadog"
)

// DefaultMaxBodyBytes is the largest payload accepted, matching the agent.
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// Payload is one decoded upload.
type Payload struct {
	// ID identifies the upload in logs.
	ID          string
	Traces      datadog.Traces
	ContentType string
	// TraceCount is the X-Datadog-Trace-Count header, or -1 when absent.
	TraceCount    int
	Lang          string
	LangVersion   string
	TracerVersion string
}

// Sink consumes decoded payloads. Consume is called on the request
// goroutine and may be called concurrently.
type Sink interface {
	Consume(ctx context.Context, p Payload)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Payload)

// Consume calls f(ctx, p).
func (f SinkFunc) Consume(ctx context.Context, p Payload) { f(ctx, p) }

// Metrics holds the receiver's prometheus collectors.
type Metrics struct {
	PayloadsAccepted prometheus.Counter
	PayloadsRejected *prometheus.CounterVec
	SpansReceived    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier receiver on the same reg are shared.
// A nil reg leaves them unregistered. It panics when reg holds a different
// collector under one of the names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: "ddexport",
			Subsystem: "receiver",
			Name:      name,
			Help:      help,
		}
	}

	accepted, err1 := promutil.Register(reg, prometheus.NewCounter(
		opts("payloads_accepted_total", "Trace payloads decoded and passed to the sink.")))
	rejected, err2 := promutil.Register(reg, prometheus.NewCounterVec(
		opts("payloads_rejected_total", "Trace payloads refused by the receiver."), []string{"reason"}))
	spans, err3 := promutil.Register(reg, prometheus.NewCounter(
		opts("spans_received_total", "Spans contained in accepted payloads.")))
	if err := errors.Join(err1, err2, err3); err != nil {
		panic(err)
	}

	return &Metrics{
		PayloadsAccepted: accepted,
		PayloadsRejected: rejected,
		SpansReceived:    spans,
	}
}

// Receiver is an http.Handler for the trace endpoint.
type Receiver struct {
	sink         Sink
	logger       *zap.Logger
	metrics      *Metrics
	maxBodyBytes int64
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Receiver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the collectors the receiver updates.
func WithMetrics(m *Metrics) Option {
	return func(r *Receiver) {
		r.metrics = m
	}
}

// WithMaxBodyBytes limits the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(r *Receiver) {
		if n > 0 {
			r.maxBodyBytes = n
		}
	}
}

// New creates a receiver delivering payloads to sink.
func New(sink Sink, opts ...Option) *Receiver {
	r := &Receiver{
		sink:         sink,
		logger:       zap.NewNop(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	return r
}

// Info is served on InfoPath so tracers can discover the receiver.
type Info struct {
	Version         string   `json:"version"`
	Endpoints       []string `json:"endpoints"`
	MaxPayloadBytes int64    `json:"max_payload_bytes"`
}

// InfoPath is the agent's discovery endpoint.
const InfoPath = "/info"

// Handler routes the trace endpoint and InfoPath, and answers 200 on every
// other path, as the agent does for endpoints a tracer probes.
func (r *Receiver) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(datadog.TracesPath, r)
	mux.HandleFunc("GET "+InfoPath, func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Info{
			Version:         datadog.TracerVersion,
			Endpoints:       []string{datadog.TracesPath},
			MaxPayloadBytes: r.maxBodyBytes,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ServeHTTP decodes one upload.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost && req.Method != http.MethodPut {
		r.reject(w, "method", http.StatusMethodNotAllowed, "was expecting POST")
		r.logger.Debug("unexpected method on trace endpoint", zap.String("method", req.Method))
		return
	}

	if req.ContentLength > r.maxBodyBytes {
		r.reject(w, "too_large", http.StatusRequestEntityTooLarge, "payload too large")
		r.logger.Warn("trace payload too large", zap.Int64("bytes", req.ContentLength))
		return
	}

	contentType := req.Header.Get("Content-Type")
	body := http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	traces, err := datadog.DecodeReader(contentType, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			r.reject(w, "too_large", http.StatusRequestEntityTooLarge, "payload too large")
		case errors.Is(err, datadog.ErrUnsupportedEncoding):
			r.reject(w, "content_type", http.StatusUnsupportedMediaType, "unsupported content type")
		default:
			r.reject(w, "decode", http.StatusBadRequest, "cannot decode traces")
		}
		r.logger.Warn("failed to decode traces",
			zap.String("content_type", contentType),
			zap.Error(err))
		return
	}

	p := Payload{
		ID:            uuid.New().String(),
		Traces:        traces,
		ContentType:   contentType,
		TraceCount:    traceCount(req),
		Lang:          req.Header.Get(datadog.HeaderMetaLang),
		LangVersion:   req.Header.Get(datadog.HeaderMetaLangVer),
		TracerVersion: req.Header.Get(datadog.HeaderMetaTracerVer),
	}

	r.metrics.PayloadsAccepted.Inc()
	r.metrics.SpansReceived.Add(float64(traces.SpanCount()))
	r.logger.Debug("received traces",
		zap.String("payload", p.ID),
		zap.Int("traces", len(traces)),
		zap.Int("spans", traces.SpanCount()),
		zap.String("lang", p.Lang))

	if r.sink != nil {
		r.sink.Consume(req.Context(), p)
	}

	httputil.WriteText(w, http.StatusOK, "OK\n")
}

func (r *Receiver) reject(w http.ResponseWriter, reason string, status int, msg string) {
	r.metrics.PayloadsRejected.WithLabelValues(reason).Inc()
	httputil.WriteError(w, status, reason, msg)
}

func traceCount(req *http.Request) int {
	v := req.Header.Get(datadog.HeaderTraceCount)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// Recorder is a Sink that keeps every payload in memory.
type Recorder struct {
	mu       sync.Mutex
	payloads []Payload
	notify   chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Consume stores p.
func (r *Recorder) Consume(_ context.Context, p Payload) {
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Payloads returns a copy of the recorded payloads.
func (r *Recorder) Payloads() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.payloads...)
}

// Spans returns every recorded span in arrival order.
func (r *Recorder) Spans() []*datadog.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	var spans []*datadog.Span
	for _, p := range r.payloads {
		for _, trace := range p.Traces {
			spans = append(spans, trace...)
		}
	}
	return spans
}

// WaitForSpans blocks until at least n spans were recorded or ctx is done.
func (r *Recorder) WaitForSpans(ctx context.Context, n int) error {
	for {
		if len(r.Spans()) >= n {
			return nil
		}
		select {
		case <-r.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
