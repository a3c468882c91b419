// Package config loads configuration from an optional YAML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all mount configuration.
type Config struct {
	// Store
	APIURL        string        `yaml:"api"`
	PinType       string        `yaml:"pin_type"`
	Timeout       time.Duration `yaml:"request_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`

	// Filesystem
	Backend         string `yaml:"backend"`
	VolumeLabel     string `yaml:"volume_label"`
	ListConcurrency int    `yaml:"list_concurrency"`

	// Logging
	Debug     bool   `yaml:"debug"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics (empty disables the endpoint)
	MetricsAddr string `yaml:"metrics_addr"`
}

// Backends accepted by Config.Backend.
const (
	BackendAuto    = "auto"
	BackendCgoFuse = "cgofuse"
	BackendGoFuse  = "gofuse"
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		APIURL:          "http://127.0.0.1:5001",
		PinType:         "recursive",
		Timeout:         60 * time.Second,
		RetryAttempts:   3,
		Backend:         BackendAuto,
		VolumeLabel:     "Interplanetary",
		ListConcurrency: 8,
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// if path is not empty, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("IPFS_MOUNT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.APIURL = envOr("IPFS_MOUNT_API", cfg.APIURL)
	cfg.PinType = envOr("IPFS_MOUNT_PIN_TYPE", cfg.PinType)
	cfg.Timeout = envDuration("IPFS_MOUNT_TIMEOUT", cfg.Timeout)
	cfg.RetryAttempts = envInt("IPFS_MOUNT_RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.Backend = envOr("IPFS_MOUNT_BACKEND", cfg.Backend)
	cfg.VolumeLabel = envOr("IPFS_MOUNT_VOLUME_LABEL", cfg.VolumeLabel)
	cfg.ListConcurrency = envInt("IPFS_MOUNT_LIST_CONCURRENCY", cfg.ListConcurrency)
	cfg.Debug = envBool("IPFS_MOUNT_DEBUG", cfg.Debug)
	cfg.LogLevel = envOr("IPFS_MOUNT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("IPFS_MOUNT_LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = envOr("IPFS_MOUNT_METRICS_ADDR", cfg.MetricsAddr)

	return cfg, nil
}

// Validate checks values that would otherwise fail later at mount time.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api endpoint is required")
	}
	switch c.Backend {
	case BackendAuto, BackendCgoFuse, BackendGoFuse:
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendAuto, BackendCgoFuse, BackendGoFuse)
	}
	switch c.PinType {
	case "recursive", "direct", "indirect", "all":
	default:
		return fmt.Errorf("unknown pin type %q", c.PinType)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if c.ListConcurrency < 1 {
		return fmt.Errorf("list_concurrency must be at least 1")
	}
	return nil
}

// EffectiveLogLevel is debug when Debug is set, LogLevel otherwise.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
