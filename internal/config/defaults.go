package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectStrategy    = StrategyFixed
	DefaultReconnectDelay       = 5 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultReconnectMaxAttempts = 5
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 90 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultReadLimit            = 1 << 20
	DefaultConnBufferSize       = 256
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultBufferSize           = 1000
	DefaultMaxBufferSize        = 100000
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultLogMaxSizeMB         = 100
	DefaultLogMaxBackups        = 3
	DefaultLogMaxAgeDays        = 28
)

func (c *Config) applyDefaults() {
	// Reconnect defaults
	if c.Reconnect.Strategy == "" {
		c.Reconnect.Strategy = DefaultReconnectStrategy
	}
	if c.Reconnect.Delay == 0 {
		c.Reconnect.Delay = DefaultReconnectDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultReconnectMaxAttempts
	}

	// Connection defaults
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.ReadLimit == 0 {
		c.Connection.ReadLimit = DefaultReadLimit
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultConnBufferSize
	}

	// Archive defaults
	applyDBDefaults(&c.Archive.Database)
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}
	if c.Archive.MaxBufferSize == 0 {
		c.Archive.MaxBufferSize = DefaultMaxBufferSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
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
