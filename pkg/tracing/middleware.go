package tracing

import (
	"fmt"
	"net/http"
)

// skipTracingPaths contains paths that should not create traces.
var skipTracingPaths = map[string]bool{
	"/metrics":     true,
	"/health":      true,
	"/healthz":     true,
	"/ready":       true,
	"/readyz":      true,
	"/livez":       true,
	"/favicon.ico": true,
}

// Middleware wraps an HTTP handler with distributed tracing support.
// It extracts the caller's trace context with p, creates a server span for
// each request, and records HTTP attributes.
//
// If tracer is nil, the handler is returned unchanged.
func Middleware(tracer *Tracer, p Propagator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tracer == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipTracingPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ctx := Extract(r.Context(), p, HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, "http.request",
				WithSpanKind(SpanKindServer),
				WithAttributes(
					String("resource.name", r.Method+" "+r.URL.Path),
					String("span.type", "web"),
					String("http.method", r.Method),
					String("http.url", r.URL.String()),
					String("http.host", r.Host),
				),
			)
			defer span.End()

			if ua := r.UserAgent(); ua != "" {
				span.SetAttributes(String("http.useragent", ua))
			}

			wrapped := &statusCapturingResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(Int("http.status_code", wrapped.statusCode))
			if wrapped.statusCode >= 500 {
				span.SetStatus(StatusError, fmt.Sprintf("HTTP server error: %d", wrapped.statusCode))
			} else {
				span.SetStatus(StatusOK, "")
			}
		})
	}
}

// statusCapturingResponseWriter wraps http.ResponseWriter to capture the status code.
type statusCapturingResponseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

// WriteHeader captures the status code before writing the header.
func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.statusCode = code
		w.headerWritten = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write captures status code if not already written (implicit 200 OK).
func (w *statusCapturingResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.statusCode = http.StatusOK
		w.headerWritten = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController support.
func (w *statusCapturingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Transport is an http.RoundTripper that records a client span per request
// and injects its context into the outgoing headers.
type Transport struct {
	Base       http.RoundTripper
	Tracer     *Tracer
	Propagator Propagator
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, tracer *Tracer, p Propagator) *Transport {
	return &Transport{Base: base, Tracer: tracer, Propagator: p}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Tracer == nil {
		return base.RoundTrip(req)
	}

	ctx, span := t.Tracer.Start(req.Context(), "http.client.request",
		WithSpanKind(SpanKindClient),
		WithAttributes(
			String("resource.name", req.Method+" "+req.URL.Host),
			String("span.type", "http"),
			String("http.method", req.Method),
			String("http.url", req.URL.String()),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(ctx)
	Inject(ctx, t.Propagator, HeaderCarrier(out.Header))

	resp, err := base.RoundTrip(out)
	if err != nil {
		span.SetStatus(StatusError, err.Error())
		return nil, err
	}
	span.SetAttributes(Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(StatusError, fmt.Sprintf("HTTP server error: %d", resp.StatusCode))
	}
	return resp, nil
}
