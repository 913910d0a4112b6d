// Package datadog exports spans to a Datadog trace agent and propagates
// trace context with Datadog's x-datadog-* headers.
//
// An Exporter implements tracing.SpanExporter. Each ExportSpans call
// converts its records to agent spans, groups them by trace id, encodes the
// result (msgpack or JSON) and posts it to the agent's /v0.3/traces
// endpoint:
//
//	exp, err := datadog.NewExporter(
//	    datadog.WithServiceName("checkout"),
//	    datadog.WithServiceVersion("1.4.2"),
//	    datadog.WithAgentAddr("127.0.0.1:8126"),
//	)
//
// # Delivery
//
// Delivery is best-effort and at-most-once. ExportSpans encodes
// synchronously, hands the HTTP request to a Scheduler and returns Success
// without waiting for the agent. Transport errors, timeouts and non-2xx
// responses are logged and counted but never reported to the caller, and
// nothing is retried. Encoding failures are the only error an export call
// can report, as FailedNotRetryable. Implementations of Scheduler must not
// block the caller either.
//
// # Trace ids
//
// The v0.3 protocol carries 64-bit trace ids. Trace ids are kept at 128
// bits by the tracing package and truncated to their low 64 bits only when
// a span is converted or a context is injected. Two traces that differ only
// in their high bits collide on the agent.
//
// # Grouping
//
// Spans are grouped per call. A trace whose spans arrive in two export
// calls is sent as two independent partial traces.
package datadog
