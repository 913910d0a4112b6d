package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes ddexport's own environment variables.
const EnvPrefix = "DDEXPORT"

const defaultAgentPort = "8126"

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
	ErrInvalidEnv       = errors.New("invalid environment variable")
)

// Load resolves the configuration from defaults, the optional YAML file at
// path and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile overlays the YAML file at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFromFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	return c.ParseYAML(data)
}

// ParseYAML overlays YAML bytes onto c.
func (c *Config) ParseYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

// ToYAML marshals the configuration.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return data, nil
}

// datadogEnv holds the variables shared with the official tracers.
type datadogEnv struct {
	Service        string
	Version        string
	Env            string
	Tags           map[string]string
	AgentHost      string `split_words:"true"`
	TraceAgentPort string `split_words:"true"`
}

// ApplyEnv overlays DD_* and then DDEXPORT_* variables onto c.
func (c *Config) ApplyEnv() error {
	var dd datadogEnv
	if err := envconfig.Process("DD", &dd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnv, err)
	}
	c.applyDatadogEnv(dd)

	if err := envconfig.Process(EnvPrefix, (*envConfig)(c)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnv, err)
	}
	return nil
}

func (c *Config) applyDatadogEnv(dd datadogEnv) {
	if dd.Service != "" {
		c.Service = dd.Service
	}
	if dd.Version != "" {
		c.Version = dd.Version
	}
	if len(dd.Tags) > 0 || dd.Env != "" {
		tags := make(map[string]string, len(c.GlobalTags)+len(dd.Tags)+1)
		maps.Copy(tags, c.GlobalTags)
		maps.Copy(tags, dd.Tags)
		if dd.Env != "" {
			tags["env"] = dd.Env
		}
		c.GlobalTags = tags
	}
	if dd.AgentHost != "" || dd.TraceAgentPort != "" {
		host, port, err := net.SplitHostPort(c.AgentAddr)
		if err != nil {
			host, port = "", defaultAgentPort
		}
		if dd.AgentHost != "" {
			host = dd.AgentHost
		}
		if dd.TraceAgentPort != "" {
			port = dd.TraceAgentPort
		}
		c.AgentAddr = net.JoinHostPort(host, port)
	}
}

// envConfig mirrors Config with the tags envconfig reads. The field list
// must stay identical to Config for the conversion in ApplyEnv.
type envConfig struct {
	Service              string
	Version              string
	AgentAddr            string            `split_words:"true"`
	Encoding             string
	GlobalTags           map[string]string `split_words:"true"`
	UploadTimeout        time.Duration     `split_words:"true"`
	MaxConcurrentUploads int64             `split_words:"true"`
	UploadRateLimit      float64           `split_words:"true"`
	UploadRateBurst      int               `split_words:"true"`
	Log                  LogConfig
}
