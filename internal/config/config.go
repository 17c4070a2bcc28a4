package config

import "time"

// ViewerConfig is the root configuration for a viewer instance.
type ViewerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Streams  StreamsConfig  `yaml:"streams"`
	Units    UnitsConfig    `yaml:"units"`
	Recorder RecorderConfig `yaml:"recorder"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// InstanceConfig identifies this viewer.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Site string `yaml:"site"`
}

// ServerConfig holds APIS server settings.
type ServerConfig struct {
	URL        string        `yaml:"url"`     // Base URL, http or https
	APIKey     string        `yaml:"api_key"` // Bearer token, optional
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamsConfig holds stream session settings.
type StreamsConfig struct {
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	MaxRetries       int           `yaml:"max_retries"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	EventBufferSize  int           `yaml:"event_buffer_size"`
}

// UnitsConfig holds unit registry settings.
type UnitsConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// RecorderConfig holds stream event recorder settings.
// The database block is only required when the recorder is enabled.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HTTPConfig holds the local HTTP surface settings.
type HTTPConfig struct {
	Port        int    `yaml:"port"`
	MetricsPath string `yaml:"metrics_path"`
}
