package datadog

import (
	"net/http"
	"runtime"
	"strconv"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/getmockd/ddexport/pkg/tracing"
)

// TracesPath is the agent endpoint for the v0.3 trace protocol.
const TracesPath = "/v0.3/traces"

// TracerVersion is reported to the agent in Datadog-Meta-Tracer-Version.
const TracerVersion = "0.1.0"

// Headers sent with every upload.
const (
	HeaderTraceCount    = "X-Datadog-Trace-Count"
	HeaderMetaLang      = "Datadog-Meta-Lang"
	HeaderMetaLangVer   = "Datadog-Meta-Lang-Version"
	HeaderMetaTracerVer = "Datadog-Meta-Tracer-Version"
)

// uploader posts encoded batches to the agent without waiting for the answer.
type uploader struct {
	client    *resty.Client
	endpoint  string
	scheduler Scheduler
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *Metrics
}

func newUploader(cfg *config) *uploader {
	var client *resty.Client
	if cfg.httpClient != nil {
		client = resty.NewWithClient(cfg.httpClient)
	} else {
		client = resty.New()
	}
	client.
		SetTimeout(cfg.timeout).
		SetRetryCount(0).
		SetLogger(cfg.logger.Sugar()).
		SetHeader(HeaderMetaLang, "go").
		SetHeader(HeaderMetaLangVer, runtime.Version()).
		SetHeader(HeaderMetaTracerVer, TracerVersion)

	scheduler := cfg.scheduler
	if scheduler == nil {
		if cfg.maxConcurrentUploads > 0 {
			scheduler = NewBoundedScheduler(cfg.maxConcurrentUploads)
		} else {
			scheduler = GoScheduler{}
		}
	}

	var limiter *rate.Limiter
	if cfg.rateLimit > 0 {
		burst := cfg.rateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.rateLimit), burst)
	}

	return &uploader{
		client:    client,
		endpoint:  "http://" + cfg.agentAddr + TracesPath,
		scheduler: scheduler,
		limiter:   limiter,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
	}
}

// upload encodes traces and schedules the request. Only an encoding failure
// is reported; everything after that is best-effort.
func (u *uploader) upload(traces Traces, enc Encoder) tracing.ExportResult {
	body, err := enc.Encode(traces)
	if err != nil {
		u.metrics.EncodeFailures.Inc()
		u.logger.Error("failed to encode traces",
			zap.String("content_type", enc.ContentType()),
			zap.Int("traces", len(traces)),
			zap.Error(err))
		return tracing.FailedNotRetryable
	}

	if u.limiter != nil && !u.limiter.Allow() {
		u.metrics.UploadsDropped.WithLabelValues(reasonRateLimited).Inc()
		u.logger.Debug("upload rate limit reached, dropping traces", zap.Int("traces", len(traces)))
		return tracing.Success
	}

	contentType := enc.ContentType()
	count := len(traces)
	if !u.scheduler.Go(func() { u.send(body, contentType, count) }) {
		u.metrics.UploadsDropped.WithLabelValues(reasonSchedulerFull).Inc()
		u.logger.Debug("too many uploads in flight, dropping traces", zap.Int("traces", count))
		return tracing.Success
	}
	u.metrics.UploadsDispatched.Inc()

	return tracing.Success
}

func (u *uploader) send(body []byte, contentType string, traceCount int) {
	resp, err := u.client.R().
		SetHeader("Content-Type", contentType).
		SetHeader(HeaderTraceCount, strconv.Itoa(traceCount)).
		SetBody(body).
		Post(u.endpoint)
	if err != nil {
		u.metrics.UploadsFailed.WithLabelValues(reasonTransport).Inc()
		u.logger.Debug("failed to send traces to agent",
			zap.String("endpoint", u.endpoint),
			zap.Error(err))
		return
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		u.metrics.UploadsFailed.WithLabelValues(reasonStatus).Inc()
		u.logger.Warn("agent rejected traces",
			zap.String("endpoint", u.endpoint),
			zap.Int("status", resp.StatusCode()),
			zap.Int("traces", traceCount))
		return
	}
	u.metrics.UploadsSucceeded.Inc()
}
