// Package tracing is the instrumentation side of ddexport: the span data
// model handed to exporters, a small batching tracer, trace-context carriers
// and propagators, and HTTP middleware.
//
// Exporters implement SpanExporter and receive completed SpanRecords in
// batches. The tracer here is one such producer; any instrumentation layer
// that can build SpanRecords can drive an exporter directly.
//
// Usage:
//
//	exp, _ := datadog.NewExporter(datadog.WithServiceName("checkout"))
//	tracer := tracing.NewTracer(tracing.WithExporter(exp))
//	defer tracer.Shutdown(ctx)
//
//	ctx, span := tracer.Start(ctx, "charge", tracing.WithSpanKind(tracing.SpanKindClient))
//	span.SetAttributes(tracing.Int("amount", 42))
//	defer span.End()
//
// Attribute values are a closed set of kinds: bool, int64, uint64,
// float64, string and other. Exporters decide how each kind is rendered.
//
// Context Propagation:
//
//	// Extract trace context from incoming HTTP request
//	ctx := tracing.Extract(ctx, propagator, tracing.HeaderCarrier(req.Header))
//
//	// Inject trace context into outgoing HTTP request
//	tracing.Inject(ctx, propagator, tracing.HeaderCarrier(outReq.Header))
//
// Trace IDs are 128 bits and span IDs 64 bits. Propagators for protocols
// that carry 64-bit trace ids keep only the low 64 bits.
package tracing
