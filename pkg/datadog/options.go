package datadog

import (
	"maps"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultServiceName    = "DEFAULT"
	DefaultServiceVersion = "0.0.0"
	DefaultAgentAddr      = "127.0.0.1:8126"
	DefaultUploadTimeout  = 2 * time.Second
)

type config struct {
	serviceName    string
	serviceVersion string
	agentAddr      string
	globalTags     map[string]string

	encoder    Encoder
	timeout    time.Duration
	httpClient *http.Client
	scheduler  Scheduler

	maxConcurrentUploads int64
	rateLimit            float64
	rateBurst            int

	logger     *zap.Logger
	metrics    *Metrics
	registerer prometheus.Registerer
}

func defaultConfig() config {
	return config{
		serviceName:    DefaultServiceName,
		serviceVersion: DefaultServiceVersion,
		agentAddr:      DefaultAgentAddr,
		encoder:        MsgpackEncoder(),
		timeout:        DefaultUploadTimeout,
		logger:         zap.NewNop(),
	}
}

// Option configures an Exporter.
type Option func(*config)

// WithServiceName sets the service reported for spans without a
// service.name attribute.
func WithServiceName(name string) Option {
	return func(c *config) {
		c.serviceName = name
	}
}

// WithServiceVersion sets the service_version tag.
func WithServiceVersion(version string) Option {
	return func(c *config) {
		c.serviceVersion = version
	}
}

// WithAgentAddr sets the agent's host:port.
func WithAgentAddr(addr string) Option {
	return func(c *config) {
		c.agentAddr = addr
	}
}

// WithGlobalTags adds tags to every span's meta. Span attributes with the
// same key take precedence. The map is copied.
func WithGlobalTags(tags map[string]string) Option {
	return func(c *config) {
		if c.globalTags == nil {
			c.globalTags = make(map[string]string, len(tags))
		}
		maps.Copy(c.globalTags, tags)
	}
}

// WithEncoder selects the payload encoding. The default is msgpack.
func WithEncoder(enc Encoder) Option {
	return func(c *config) {
		if enc != nil {
			c.encoder = enc
		}
	}
}

// WithUploadTimeout bounds each upload request.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the client used for uploads. Its Timeout is replaced
// by the upload timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithScheduler sets how uploads are run in the background. It takes
// precedence over WithMaxConcurrentUploads.
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithMaxConcurrentUploads caps uploads in flight. Batches exported while
// the cap is reached are dropped. Zero means unbounded.
func WithMaxConcurrentUploads(n int64) Option {
	return func(c *config) {
		c.maxConcurrentUploads = n
	}
}

// WithUploadRateLimit allows at most perSecond uploads per second with the
// given burst. Batches over the limit are dropped. Zero disables the limit.
func WithUploadRateLimit(perSecond float64, burst int) Option {
	return func(c *config) {
		c.rateLimit = perSecond
		c.rateBurst = burst
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics uses m instead of creating collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithMetricsRegisterer registers the exporter's collectors with reg.
// Ignored when WithMetrics is given.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}
