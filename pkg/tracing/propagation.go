package tracing

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const (
	// TraceparentHeader is the W3C Trace Context traceparent header name.
	TraceparentHeader = "traceparent"

	// W3C Trace Context version.
	traceparentVersion = "00"

	// Trace flags.
	flagSampled = 0x01
)

// Carrier is an interface for reading and writing propagation data.
type Carrier interface {
	Get(key string) string
	Set(key, value string)
}

// HeaderCarrier adapts http.Header to the Carrier interface.
// Keys are canonicalized, so lookups are case-insensitive.
type HeaderCarrier http.Header

// Get returns the value for a key.
func (hc HeaderCarrier) Get(key string) string {
	return http.Header(hc).Get(key)
}

// Set sets a key-value pair.
func (hc HeaderCarrier) Set(key, value string) {
	http.Header(hc).Set(key, value)
}

// MapCarrier is a Carrier backed by a plain map. Keys are matched exactly.
type MapCarrier map[string]string

// Get returns the value for a key.
func (mc MapCarrier) Get(key string) string {
	return mc[key]
}

// Set sets a key-value pair.
func (mc MapCarrier) Set(key, value string) {
	mc[key] = value
}

// Propagator moves a span context in and out of a carrier.
// Extract never fails: anything it cannot decode yields SpanContext{}.
type Propagator interface {
	Inject(sc SpanContext, carrier Carrier)
	Extract(carrier Carrier) SpanContext
}

// Inject writes the span context found in ctx into the carrier.
// If there is no span in the context, this is a no-op.
func Inject(ctx context.Context, p Propagator, carrier Carrier) {
	if sc := SpanContextFromContext(ctx); sc.IsValid() {
		p.Inject(sc, carrier)
	}
}

// Extract decodes a span context from the carrier and stores it in ctx.
// If nothing valid is found, returns the original context unchanged.
func Extract(ctx context.Context, p Propagator, carrier Carrier) context.Context {
	sc := p.Extract(carrier)
	if !sc.IsValid() {
		return ctx
	}
	return ContextWithRemoteSpanContext(ctx, sc)
}

// TraceContextPropagator implements the W3C Trace Context specification.
// It carries the full 128-bit trace id.
//
// The traceparent format is: {version}-{trace-id}-{parent-id}-{flags}
// Example: 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
type TraceContextPropagator struct{}

// NewTraceContextPropagator creates a new W3C propagator.
func NewTraceContextPropagator() TraceContextPropagator {
	return TraceContextPropagator{}
}

// Inject writes the traceparent header.
func (TraceContextPropagator) Inject(sc SpanContext, carrier Carrier) {
	if !sc.IsValid() {
		return
	}
	carrier.Set(TraceparentHeader, formatTraceparent(sc))
}

// Extract reads the traceparent header.
func (TraceContextPropagator) Extract(carrier Carrier) SpanContext {
	traceparent := carrier.Get(TraceparentHeader)
	if traceparent == "" {
		return SpanContext{}
	}
	sc, ok := parseTraceparent(traceparent)
	if !ok {
		return SpanContext{}
	}
	return sc
}

// parseTraceparent parses a W3C traceparent header.
// Returns the span context and whether parsing was successful.
func parseTraceparent(traceparent string) (SpanContext, bool) {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return SpanContext{}, false
	}

	version := parts[0]
	traceID := parts[1]
	spanID := parts[2]
	flags := parts[3]

	// Unknown versions with valid format should still be parsed
	if len(version) != 2 || version == "ff" {
		return SpanContext{}, false
	}

	tid, err := TraceIDFromHex(traceID)
	if err != nil || !tid.IsValid() {
		return SpanContext{}, false
	}

	if len(spanID) != 16 {
		return SpanContext{}, false
	}
	var sidBytes [8]byte
	if _, err := hex.Decode(sidBytes[:], []byte(spanID)); err != nil {
		return SpanContext{}, false
	}
	var sid uint64
	for _, b := range sidBytes {
		sid = sid<<8 | uint64(b)
	}
	if sid == 0 {
		return SpanContext{}, false
	}

	if len(flags) != 2 {
		return SpanContext{}, false
	}
	flagBytes, err := hex.DecodeString(flags)
	if err != nil || len(flagBytes) != 1 {
		return SpanContext{}, false
	}

	return SpanContext{
		TraceID: tid,
		SpanID:  sid,
		Sampled: flagBytes[0]&flagSampled != 0,
		Remote:  true,
	}, true
}

// formatTraceparent formats a traceparent header value.
func formatTraceparent(sc SpanContext) string {
	flags := "00"
	if sc.Sampled {
		flags = "01"
	}
	return fmt.Sprintf("%s-%s-%016x-%s", traceparentVersion, sc.TraceID, sc.SpanID, flags)
}

// CompositePropagator injects with every member and extracts with the
// first member that yields a valid context.
type CompositePropagator []Propagator

// NewCompositePropagator combines propagators in priority order.
func NewCompositePropagator(ps ...Propagator) CompositePropagator {
	return CompositePropagator(ps)
}

// Inject writes the context with every member propagator.
func (c CompositePropagator) Inject(sc SpanContext, carrier Carrier) {
	for _, p := range c {
		p.Inject(sc, carrier)
	}
}

// Extract returns the first valid context found.
func (c CompositePropagator) Extract(carrier Carrier) SpanContext {
	for _, p := range c {
		if sc := p.Extract(carrier); sc.IsValid() {
			return sc
		}
	}
	return SpanContext{}
}
