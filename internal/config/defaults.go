package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerTimeout     = 30 * time.Second
	DefaultServerMaxRetries  = 3
	DefaultRetryBaseDelay    = 1 * time.Second
	DefaultStreamMaxRetries  = 4
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultEventBufferSize   = 1024
	DefaultReconcileInterval = 15 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 100
	DefaultFlushInterval     = 5 * time.Second
	DefaultHTTPPort          = 8091
	DefaultMetricsPath       = "/metrics"
)

func (c *ViewerConfig) applyDefaults() {
	// Server defaults
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultServerTimeout
	}
	if c.Server.MaxRetries == 0 {
		c.Server.MaxRetries = DefaultServerMaxRetries
	}

	// Streams defaults
	if c.Streams.RetryBaseDelay == 0 {
		c.Streams.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.Streams.MaxRetries == 0 {
		c.Streams.MaxRetries = DefaultStreamMaxRetries
	}
	if c.Streams.HandshakeTimeout == 0 {
		c.Streams.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Streams.EventBufferSize == 0 {
		c.Streams.EventBufferSize = DefaultEventBufferSize
	}

	// Units defaults
	if c.Units.ReconcileInterval == 0 {
		c.Units.ReconcileInterval = DefaultReconcileInterval
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	applyDBDefaults(&c.Recorder.Database)

	// HTTP defaults
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.HTTP.MetricsPath == "" {
		c.HTTP.MetricsPath = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
