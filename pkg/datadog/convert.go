package datadog

import (
	"math"
	"time"

	"github.com/getmockd/ddexport/pkg/tracing"
)

// Attribute keys that override span fields, and the tags the converter adds.
const (
	KeySpanName       = "span.name"
	KeyServiceName    = "service.name"
	KeyResourceName   = "resource.name"
	KeySpanType       = "span.type"
	KeySpanKind       = "span.kind"
	KeyServiceVersion = "service_version"

	// KeyErrorType holds the status name of a failed span, always "ERROR".
	// Tracers that tag the exception class here will facet differently.
	KeyErrorType = "error.type"

	// KeyErrorMsg holds the status message of a failed span.
	KeyErrorMsg = "error.msg"
)

var unixEpoch = time.Unix(0, 0)

// convertSpan builds the agent span for one record.
func (e *Exporter) convertSpan(r tracing.SpanRecord) *Span {
	meta, metrics := splitAttributes(r.Attributes)
	for k, v := range e.cfg.globalTags {
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}

	span := &Span{
		Meta:     meta,
		Metrics:  metrics,
		Start:    nanosSince(r.StartTime, unixEpoch),
		Duration: nanosSince(r.EndTime, r.StartTime),
		TraceID:  r.SpanContext.TraceID.Low64(),
		SpanID:   r.SpanContext.SpanID,
		ParentID: r.ParentSpanID,
	}

	if name, ok := meta[KeySpanName]; ok {
		span.Name = stringPtr(name)
	} else {
		span.Name = stringPtr(r.Name)
	}
	if service, ok := meta[KeyServiceName]; ok {
		span.Service = stringPtr(service)
	} else {
		span.Service = stringPtr(e.cfg.serviceName)
	}
	if resource, ok := meta[KeyResourceName]; ok {
		span.Resource = stringPtr(resource)
	}
	if typ, ok := meta[KeySpanType]; ok {
		span.Type = stringPtr(typ)
	}

	if r.Failed() {
		span.Error = 1
		meta[KeyErrorType] = r.Status.String()
		meta[KeyErrorMsg] = r.StatusMessage
	}

	meta[KeySpanKind] = r.Kind.String()
	meta[KeyServiceVersion] = e.cfg.serviceVersion

	return span
}

// nanosSince returns t - ref in nanoseconds. The magnitude saturates at
// math.MaxInt64 in both directions.
func nanosSince(t, ref time.Time) int64 {
	d := t.Sub(ref)
	if d == math.MinInt64 {
		return -math.MaxInt64
	}
	return int64(d)
}
