// Package config loads and holds the proxy's configuration snapshot.
//
// It keeps the teacher's singleton shape (sync.Once-guarded package-level
// instance, a DefaultConfig/LoadConfig pair) but the file format is the one
// spec.md 6 mandates: flat "name = value" lines, not YAML. Struct tags are
// kept for parity with the teacher's texture (and so Config can still be
// marshalled as JSON for a debug dump) even though the line-oriented parser
// below doesn't consume them.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the complete proxy configuration snapshot.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Threads   int             `yaml:"threads" json:"threads" default:"8"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Queue     QueueConfig     `yaml:"queue" json:"queue"`
	Blocklist BlocklistConfig `yaml:"blocklist" json:"blocklist"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

// ServerConfig configures the raw proxy listener (spec 6).
type ServerConfig struct {
	Port int `yaml:"port" json:"port" default:"8080"`
}

// CacheConfig configures the LRU response cache (spec 6: cache_size_mb,
// element_size_mb, both expressed here in bytes after conversion).
type CacheConfig struct {
	SizeBytes           int64 `yaml:"sizeBytes" json:"sizeBytes" default:"209715200"`
	ElementCeilingBytes int64 `yaml:"elementCeilingBytes" json:"elementCeilingBytes" default:"10485760"`
}

// QueueConfig configures the bounded task queue (spec 3: "capacity
// (bounded, e.g. 100)").
type QueueConfig struct {
	Capacity int `yaml:"capacity" json:"capacity" default:"100"`
}

// BlocklistConfig points at the blocklist text file (spec 6).
type BlocklistConfig struct {
	Path string `yaml:"path" json:"path" default:"blocklist.txt"`
}

// LogConfig points at the append-only log sink file (spec 6).
type LogConfig struct {
	Path string `yaml:"path" json:"path" default:"proxy.log"`
}

// MetricsConfig configures the ambient Prometheus admin endpoint (SPEC_FULL
// 3.3) — not part of spec.md's protocol surface, purely operational
// tooling, so it doesn't conflict with any Non-goal.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" default:"true"`
	Port    int  `yaml:"port" json:"port" default:"9090"`
}

// TracingConfig configures OpenTelemetry tracing, carried from the teacher
// unchanged in shape.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled" default:"false"`
	ServiceName    string  `yaml:"serviceName" json:"serviceName" default:"caching-forward-proxy"`
	ServiceVersion string  `yaml:"serviceVersion" json:"serviceVersion" default:"1.0.0"`
	Environment    string  `yaml:"environment" json:"environment" default:"development"`
	JaegerEndpoint string  `yaml:"jaegerEndpoint" json:"jaegerEndpoint"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRatio  float64 `yaml:"samplingRatio" json:"samplingRatio" default:"0.1"`
}

// DefaultConfig returns the configuration spec.md 6 mandates as defaults:
// port 8080, 8 threads, 200MB cache, 10MB per-element ceiling.
func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Threads: 8,
		Cache: CacheConfig{
			SizeBytes:           200 * 1024 * 1024,
			ElementCeilingBytes: 10 * 1024 * 1024,
		},
		Queue:     QueueConfig{Capacity: 100},
		Blocklist: BlocklistConfig{Path: "blocklist.txt"},
		Log:       LogConfig{Path: "proxy.log"},
		Metrics:   MetricsConfig{Enabled: true, Port: 9090},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "caching-forward-proxy",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			SamplingRatio:  0.1,
		},
	}
}

// GetInstance returns the singleton config instance, initialising it with
// defaults on first call if LoadConfig has not already run.
func GetInstance() *Config {
	once.Do(func() {
		instance = DefaultConfig()
	})
	return instance
}

// LoadConfig reads path and installs the result as the singleton instance.
// Safe to call at most effectively once; subsequent calls are no-ops
// (mirrors the teacher's once.Do-guarded update).
func LoadConfig(path string) error {
	cfg, err := loadFromFile(path)
	if err != nil {
		return err
	}
	once.Do(func() {
		instance = cfg
	})
	return nil
}

// loadFromFile parses spec.md 6's configuration format: one "name = value"
// pair per line, blank lines and "#"-prefixed comments ignored. Any key not
// present in the file keeps its default.
func loadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: %s:%d: expected \"name = value\", got %q", path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if err := applyKey(cfg, key, value); err != nil {
			return nil, fmt.Errorf("config: %s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return cfg, nil
}

// applyKey applies one parsed key=value pair to cfg. port, threads,
// cache_size_mb, and element_size_mb are the four keys spec.md 6 names;
// the rest are ambient extensions with their own defaults.
func applyKey(cfg *Config, key, value string) error {
	switch key {
	case "port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Server.Port = n
	case "threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("threads: %w", err)
		}
		cfg.Threads = n
	case "cache_size_mb":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cache_size_mb: %w", err)
		}
		cfg.Cache.SizeBytes = n * 1024 * 1024
	case "element_size_mb":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("element_size_mb: %w", err)
		}
		cfg.Cache.ElementCeilingBytes = n * 1024 * 1024
	case "queue_capacity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("queue_capacity: %w", err)
		}
		cfg.Queue.Capacity = n
	case "blocklist_path":
		cfg.Blocklist.Path = value
	case "log_path":
		cfg.Log.Path = value
	case "metrics_port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("metrics_port: %w", err)
		}
		cfg.Metrics.Port = n
	case "metrics_enabled":
		cfg.Metrics.Enabled = value == "true"
	case "tracing_enabled":
		cfg.Tracing.Enabled = value == "true"
	case "tracing_jaeger_endpoint":
		cfg.Tracing.JaegerEndpoint = value
	case "tracing_otlp_endpoint":
		cfg.Tracing.OTLPEndpoint = value
	default:
		// Unknown keys are ignored rather than rejected: the spec only
		// names four required keys and leaves room for ambient extensions.
	}
	return nil
}
