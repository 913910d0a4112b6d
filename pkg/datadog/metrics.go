package datadog

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/getmockd/ddexport/internal/promutil"
)

const metricsNamespace = "ddexport"

// Reasons used as the "reason" label.
const (
	reasonTransport     = "transport"
	reasonStatus        = "status"
	reasonSchedulerFull = "scheduler_full"
	reasonRateLimited   = "rate_limited"
)

// Metrics holds the exporter's prometheus collectors.
type Metrics struct {
	SpansExported     prometheus.Counter
	TracesExported    prometheus.Counter
	UploadsDispatched prometheus.Counter
	UploadsSucceeded  prometheus.Counter
	UploadsFailed     *prometheus.CounterVec
	UploadsDropped    *prometheus.CounterVec
	EncodeFailures    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier exporter on the same reg are shared.
// A nil reg leaves them unregistered. It panics when reg holds a different
// collector under one of the names; NewExporter reports that as an error.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m, err := newMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	var errs []error
	counter := func(name, help string) prometheus.Counter {
		c, err := promutil.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}))
		errs = append(errs, err)
		return c
	}
	byReason := func(name, help string) *prometheus.CounterVec {
		c, err := promutil.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, []string{"reason"}))
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		SpansExported:     counter("spans_exported_total", "Spans converted and handed to the uploader."),
		TracesExported:    counter("traces_exported_total", "Partial traces handed to the uploader."),
		UploadsDispatched: counter("uploads_dispatched_total", "Upload requests started in the background."),
		UploadsSucceeded:  counter("uploads_succeeded_total", "Uploads the agent answered with a 2xx status."),
		UploadsFailed:     byReason("uploads_failed_total", "Uploads that failed after dispatch."),
		UploadsDropped:    byReason("uploads_dropped_total", "Encoded batches that were never sent."),
		EncodeFailures:    counter("encode_failures_total", "Batches that could not be serialized."),
	}
	return m, errors.Join(errs...)
}
