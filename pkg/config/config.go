package config

import "time"

// Config is the root configuration for the enforcement service.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Store configures the three-tier rule vector store.
	Store StoreConfig `yaml:"store"`

	// Refresh configures the periodic snapshot reload.
	Refresh RefreshConfig `yaml:"refresh"`

	// Audit configures decision audit recording.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
}

// StoreConfig configures the rule vector storage tiers.
type StoreConfig struct {
	// CacheCapacity is the maximum number of rule vectors held in the
	// in-memory fast tier before eviction runs.
	CacheCapacity int `yaml:"cache_capacity"`

	// SnapshotPath is the binary snapshot file backing the fast tier.
	SnapshotPath string `yaml:"snapshot_path"`

	// DurablePath is the SQLite database holding the durable tier.
	DurablePath string `yaml:"durable_path"`
}

// RefreshConfig configures periodic reloads of the fast tier from the
// snapshot file.
type RefreshConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`

	// WatchSnapshot additionally triggers a refresh when the snapshot
	// file is replaced on disk.
	WatchSnapshot bool `yaml:"watch_snapshot"`
}

// AuditConfig configures decision audit recording.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sink selects the audit destination: "log" or "none".
	Sink string `yaml:"sink"`
}

// TelemetryConfig groups observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// EvalDurationBuckets overrides the enforcement latency histogram
	// buckets. Empty means the built-in buckets.
	EvalDurationBuckets []float64 `yaml:"eval_duration_buckets"`
}
