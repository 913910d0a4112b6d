package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/getmockd/ddexport/pkg/datadog"
	"github.com/getmockd/ddexport/pkg/logging"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the exporter configuration.
type Config struct {
	// Service is reported for spans without a service.name attribute.
	Service string `yaml:"service" json:"service"`
	// Version is sent as the service_version tag.
	Version string `yaml:"version" json:"version"`
	// AgentAddr is the trace agent's host:port.
	AgentAddr string `yaml:"agentAddr" json:"agentAddr"`
	// Encoding is "msgpack" or "json".
	Encoding string `yaml:"encoding" json:"encoding"`
	// GlobalTags are added to every span's meta.
	GlobalTags map[string]string `yaml:"globalTags,omitempty" json:"globalTags,omitempty"`

	UploadTimeout time.Duration `yaml:"uploadTimeout" json:"uploadTimeout"`
	// MaxConcurrentUploads caps uploads in flight; 0 means unbounded.
	MaxConcurrentUploads int64 `yaml:"maxConcurrentUploads" json:"maxConcurrentUploads"`
	// UploadRateLimit is in uploads per second; 0 means unlimited.
	UploadRateLimit float64 `yaml:"uploadRateLimit" json:"uploadRateLimit"`
	UploadRateBurst int     `yaml:"uploadRateBurst" json:"uploadRateBurst"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Service:       datadog.DefaultServiceName,
		Version:       datadog.DefaultServiceVersion,
		AgentAddr:     datadog.DefaultAgentAddr,
		Encoding:      datadog.EncodingMsgpack,
		UploadTimeout: datadog.DefaultUploadTimeout,
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
	}
}

// Validate reports every invalid field. The returned error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Service) == "" {
		errs = append(errs, errors.New("service is required"))
	}
	if strings.TrimSpace(c.Version) == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if _, _, err := net.SplitHostPort(c.AgentAddr); err != nil {
		errs = append(errs, fmt.Errorf("agentAddr %q: %w", c.AgentAddr, err))
	}
	if _, err := datadog.ParseEncoding(c.Encoding); err != nil {
		errs = append(errs, err)
	}
	if c.UploadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("uploadTimeout must be positive, got %s", c.UploadTimeout))
	}
	if c.MaxConcurrentUploads < 0 {
		errs = append(errs, fmt.Errorf("maxConcurrentUploads must not be negative, got %d", c.MaxConcurrentUploads))
	}
	if c.UploadRateLimit < 0 {
		errs = append(errs, fmt.Errorf("uploadRateLimit must not be negative, got %g", c.UploadRateLimit))
	}
	if c.UploadRateBurst < 0 {
		errs = append(errs, fmt.Errorf("uploadRateBurst must not be negative, got %d", c.UploadRateBurst))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ExporterOptions translates the configuration into exporter options.
// Logger and metrics options are left to the caller.
func (c *Config) ExporterOptions() ([]datadog.Option, error) {
	enc, err := datadog.ParseEncoding(c.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	opts := []datadog.Option{
		datadog.WithServiceName(c.Service),
		datadog.WithServiceVersion(c.Version),
		datadog.WithAgentAddr(c.AgentAddr),
		datadog.WithEncoder(enc),
		datadog.WithUploadTimeout(c.UploadTimeout),
	}
	if len(c.GlobalTags) > 0 {
		opts = append(opts, datadog.WithGlobalTags(c.GlobalTags))
	}
	if c.MaxConcurrentUploads > 0 {
		opts = append(opts, datadog.WithMaxConcurrentUploads(c.MaxConcurrentUploads))
	}
	if c.UploadRateLimit > 0 {
		opts = append(opts, datadog.WithUploadRateLimit(c.UploadRateLimit, c.UploadRateBurst))
	}
	return opts, nil
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.Format = logging.ParseFormat(c.Log.Format)
	return cfg
}
