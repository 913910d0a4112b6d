package datadog

import (
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/getmockd/ddexport/pkg/tracing"
)

// Datadog propagation headers.
const (
	HeaderTraceID          = "x-datadog-trace-id"
	HeaderParentID         = "x-datadog-parent-id"
	HeaderSamplingPriority = "x-datadog-sampling-priority"
)

// SamplingPriority is the value of the x-datadog-sampling-priority header.
type SamplingPriority int32

const (
	// PriorityUserReject means the user asked to drop the trace.
	PriorityUserReject SamplingPriority = -1
	// PriorityAutoReject means the sampler decided to drop the trace.
	PriorityAutoReject SamplingPriority = 0
	// PriorityAutoKeep means the sampler decided to keep the trace.
	PriorityAutoKeep SamplingPriority = 1
	// PriorityUserKeep means the user asked to keep the trace.
	PriorityUserKeep SamplingPriority = 2
)

// Sampled reports whether the priority keeps the trace.
func (p SamplingPriority) Sampled() bool {
	return p == PriorityAutoKeep || p == PriorityUserKeep
}

func (p SamplingPriority) valid() bool {
	return p >= PriorityUserReject && p <= PriorityUserKeep
}

var (
	errInvalidTraceID          = errors.New("invalid trace id")
	errInvalidSpanID           = errors.New("invalid span id")
	errInvalidSamplingPriority = errors.New("invalid sampling priority")
	errInvalidSpanContext      = errors.New("invalid span context")
)

// Propagator reads and writes the x-datadog-* headers. Only the low 64 bits
// of the trace id travel. The zero value is ready to use.
type Propagator struct {
	logger *zap.Logger
}

var _ tracing.Propagator = (*Propagator)(nil)

// PropagatorOption configures a Propagator.
type PropagatorOption func(*Propagator)

// WithPropagatorLogger logs rejected headers at debug level.
func WithPropagatorLogger(l *zap.Logger) PropagatorOption {
	return func(p *Propagator) {
		p.logger = l
	}
}

// NewPropagator creates a Datadog header propagator.
func NewPropagator(opts ...PropagatorOption) *Propagator {
	p := &Propagator{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inject writes sc into the carrier. Invalid contexts write nothing.
func (p *Propagator) Inject(sc tracing.SpanContext, carrier tracing.Carrier) {
	if !sc.IsValid() {
		return
	}

	priority := PriorityAutoReject
	if sc.Sampled {
		priority = PriorityAutoKeep
	}

	carrier.Set(HeaderTraceID, strconv.FormatUint(sc.TraceID.Low64(), 10))
	carrier.Set(HeaderParentID, strconv.FormatUint(sc.SpanID, 10))
	carrier.Set(HeaderSamplingPriority, strconv.FormatInt(int64(priority), 10))
}

// Extract reads a remote span context from the carrier. Missing or malformed
// headers yield the empty context.
func (p *Propagator) Extract(carrier tracing.Carrier) tracing.SpanContext {
	sc, err := extract(carrier)
	if err != nil {
		if p != nil && p.logger != nil {
			p.logger.Debug("ignoring datadog propagation headers", zap.Error(err))
		}
		return tracing.SpanContext{}
	}
	return sc
}

func extract(carrier tracing.Carrier) (tracing.SpanContext, error) {
	traceID, err := strconv.ParseUint(carrier.Get(HeaderTraceID), 10, 64)
	if err != nil {
		return tracing.SpanContext{}, errInvalidTraceID
	}
	spanID, err := strconv.ParseUint(carrier.Get(HeaderParentID), 10, 64)
	if err != nil {
		return tracing.SpanContext{}, errInvalidSpanID
	}
	raw, err := strconv.ParseInt(carrier.Get(HeaderSamplingPriority), 10, 32)
	if err != nil {
		return tracing.SpanContext{}, errInvalidSamplingPriority
	}
	priority := SamplingPriority(raw)
	if !priority.valid() {
		return tracing.SpanContext{}, errInvalidSamplingPriority
	}

	sc := tracing.SpanContext{
		TraceID: tracing.TraceIDFromUint64(traceID),
		SpanID:  spanID,
		Sampled: priority.Sampled(),
		Remote:  true,
	}
	if !sc.IsValid() {
		return tracing.SpanContext{}, errInvalidSpanContext
	}
	return sc, nil
}
