package datadog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/getmockd/ddexport/pkg/tracing"
)

var (
	// ErrExporterShutdown is logged when spans are exported after Shutdown.
	ErrExporterShutdown = errors.New("exporter is shut down")
	// ErrInvalidAgentAddr is returned by NewExporter for an address that is
	// not host:port.
	ErrInvalidAgentAddr = errors.New("invalid agent address")
)

// Exporter sends spans to a Datadog agent. It is safe for concurrent use and
// holds no mutable state besides the shutdown flag.
type Exporter struct {
	cfg      config
	uploader *uploader
	stopped  atomic.Bool
}

var _ tracing.SpanExporter = (*Exporter)(nil)

// NewExporter creates an exporter from the given options.
func NewExporter(opts ...Option) (*Exporter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, _, err := net.SplitHostPort(cfg.agentAddr); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAgentAddr, cfg.agentAddr, err)
	}
	if cfg.metrics == nil {
		m, err := newMetrics(cfg.registerer)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		cfg.metrics = m
	}

	return &Exporter{
		cfg:      cfg,
		uploader: newUploader(&cfg),
	}, nil
}

// Endpoint returns the URL uploads are posted to.
func (e *Exporter) Endpoint() string {
	return e.uploader.endpoint
}

// ExportSpans converts, groups, encodes and schedules one batch. It returns
// before the agent answers; see the package documentation for what Success
// means.
func (e *Exporter) ExportSpans(_ context.Context, spans []tracing.SpanRecord) tracing.ExportResult {
	if e.stopped.Load() {
		e.cfg.logger.Debug("dropping spans", zap.Int("spans", len(spans)), zap.Error(ErrExporterShutdown))
		return tracing.FailedNotRetryable
	}
	if len(spans) == 0 {
		return tracing.Success
	}

	converted := make([]*Span, 0, len(spans))
	for _, r := range spans {
		converted = append(converted, e.convertSpan(r))
	}
	traces := groupTraces(converted)

	result := e.uploader.upload(traces, e.cfg.encoder)
	if result == tracing.Success {
		e.cfg.metrics.SpansExported.Add(float64(len(converted)))
		e.cfg.metrics.TracesExported.Add(float64(len(traces)))
	}
	return result
}

// Shutdown stops accepting spans. Uploads already dispatched are not waited
// for.
func (e *Exporter) Shutdown(context.Context) error {
	e.stopped.Store(true)
	return nil
}
