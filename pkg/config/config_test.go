package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/ddexport/pkg/datadog"
	"github.com/getmockd/ddexport/pkg/logging"
)

var envKeys = []string{
	"DD_SERVICE", "DD_VERSION", "DD_ENV", "DD_TAGS", "DD_AGENT_HOST", "DD_TRACE_AGENT_PORT",
	"DDEXPORT_SERVICE", "DDEXPORT_VERSION", "DDEXPORT_AGENT_ADDR", "DDEXPORT_ENCODING",
	"DDEXPORT_GLOBAL_TAGS", "DDEXPORT_UPLOAD_TIMEOUT", "DDEXPORT_MAX_CONCURRENT_UPLOADS",
	"DDEXPORT_UPLOAD_RATE_LIMIT", "DDEXPORT_UPLOAD_RATE_BURST",
	"DDEXPORT_LOG_LEVEL", "DDEXPORT_LOG_FORMAT",
}

// clearEnv unsets every variable the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, old) })
		}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ddexport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "DEFAULT", cfg.Service)
	assert.Equal(t, "0.0.0", cfg.Version)
	assert.Equal(t, "127.0.0.1:8126", cfg.AgentAddr)
	assert.Equal(t, "msgpack", cfg.Encoding)
	assert.Equal(t, 2*time.Second, cfg.UploadTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaultsOnly(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
service: checkout
version: 1.4.2
agentAddr: agent.local:9126
encoding: json
globalTags:
  env: prod
  team: payments
uploadTimeout: 500ms
maxConcurrentUploads: 8
uploadRateLimit: 20
uploadRateBurst: 5
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Service:              "checkout",
		Version:              "1.4.2",
		AgentAddr:            "agent.local:9126",
		Encoding:             "json",
		GlobalTags:           map[string]string{"env": "prod", "team": "payments"},
		UploadTimeout:        500 * time.Millisecond,
		MaxConcurrentUploads: 8,
		UploadRateLimit:      20,
		UploadRateBurst:      5,
		Log:                  LogConfig{Level: "debug", Format: "json"},
	}, cfg)
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "service: billing\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "billing", cfg.Service)
	assert.Equal(t, datadog.DefaultAgentAddr, cfg.AgentAddr)
	assert.Equal(t, datadog.DefaultUploadTimeout, cfg.UploadTimeout)
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = Load(writeFile(t, ""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Load(writeFile(t, "service: [unclosed\n"))
	assert.ErrorIs(t, err, ErrInvalidYAML)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestApplyEnvDatadogVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("DD_SERVICE", "frontend")
	t.Setenv("DD_VERSION", "2.0.0")
	t.Setenv("DD_ENV", "staging")
	t.Setenv("DD_TAGS", "team:web,region:eu")
	t.Setenv("DD_AGENT_HOST", "datadog-agent")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "frontend", cfg.Service)
	assert.Equal(t, "2.0.0", cfg.Version)
	assert.Equal(t, "datadog-agent:8126", cfg.AgentAddr)
	assert.Equal(t, map[string]string{"env": "staging", "team": "web", "region": "eu"}, cfg.GlobalTags)
}

func TestApplyEnvAgentPortOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("DD_TRACE_AGENT_PORT", "18126")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:18126", cfg.AgentAddr)
}

func TestApplyEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "service: from-file\nencoding: json\n")
	t.Setenv("DD_SERVICE", "from-dd")
	t.Setenv("DDEXPORT_SERVICE", "from-ddexport")
	t.Setenv("DDEXPORT_UPLOAD_TIMEOUT", "3s")
	t.Setenv("DDEXPORT_MAX_CONCURRENT_UPLOADS", "4")
	t.Setenv("DDEXPORT_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-ddexport", cfg.Service)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, 3*time.Second, cfg.UploadTimeout)
	assert.Equal(t, int64(4), cfg.MaxConcurrentUploads)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestApplyEnvInvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("DDEXPORT_UPLOAD_TIMEOUT", "soon")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidEnv)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service", func(c *Config) { c.Service = " " }},
		{"empty version", func(c *Config) { c.Version = "" }},
		{"agent addr without port", func(c *Config) { c.AgentAddr = "localhost" }},
		{"unknown encoding", func(c *Config) { c.Encoding = "protobuf" }},
		{"zero timeout", func(c *Config) { c.UploadTimeout = 0 }},
		{"negative concurrency", func(c *Config) { c.MaxConcurrentUploads = -1 }},
		{"negative rate", func(c *Config) { c.UploadRateLimit = -1 }},
		{"negative burst", func(c *Config) { c.UploadRateBurst = -1 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Service = ""
	cfg.Encoding = "xml"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, datadog.ErrUnsupportedEncoding)
	assert.Contains(t, err.Error(), "service is required")
}

func TestExporterOptions(t *testing.T) {
	cfg := Default()
	cfg.Service = "checkout"
	cfg.AgentAddr = "10.0.0.1:8126"
	cfg.GlobalTags = map[string]string{"env": "prod"}
	cfg.MaxConcurrentUploads = 2
	cfg.UploadRateLimit = 10

	opts, err := cfg.ExporterOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 8)

	exp, err := datadog.NewExporter(opts...)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8126/v0.3/traces", exp.Endpoint())

	cfg.Encoding = "bson"
	_, err = cfg.ExporterOptions()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoggingConfig(t *testing.T) {
	cfg := Default()
	cfg.Log = LogConfig{Level: "error", Format: "JSON"}

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelError, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.GlobalTags = map[string]string{"env": "prod"}

	data, err := cfg.ToYAML()
	require.NoError(t, err)

	loaded := &Config{}
	require.NoError(t, loaded.ParseYAML(data))
	assert.Equal(t, cfg, loaded)
}
