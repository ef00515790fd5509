package config

import "time"

// Config is the root configuration for a notify-client instance.
type Config struct {
	Server       ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Organization string           `yaml:"organization" env:"ORGANIZATION"`
	Reconnect    ReconnectConfig  `yaml:"reconnect" envPrefix:"RECONNECT_"`
	Connection   ConnectionConfig `yaml:"connection" envPrefix:"CONNECTION_"`
	Archive      ArchiveConfig    `yaml:"archive" envPrefix:"ARCHIVE_"`
	Log          LogConfig        `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig locates the notification server.
type ServerConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"` // http(s) or ws(s); /ws/{org} is appended
	Token   string `yaml:"token" env:"TOKEN"`       // Optional bearer token
}

// Reconnect strategies.
const (
	StrategyFixed       = "fixed"
	StrategyExponential = "exponential"
	StrategyNone        = "none"
)

// ReconnectConfig holds the reconnection policy.
type ReconnectConfig struct {
	Strategy    string        `yaml:"strategy" env:"STRATEGY"`
	Delay       time.Duration `yaml:"delay" env:"DELAY"`         // Fixed delay, or base delay for exponential
	MaxDelay    time.Duration `yaml:"max_delay" env:"MAX_DELAY"` // Exponential only
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	Jitter      float64       `yaml:"jitter" env:"JITTER"` // Exponential only, fraction in [0,1]
}

// ConnectionConfig holds WebSocket transport settings.
type ConnectionConfig struct {
	PingInterval     time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	PingTimeout      time.Duration `yaml:"ping_timeout" env:"PING_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	ReadLimit        int64         `yaml:"read_limit" env:"READ_LIMIT"`
	BufferSize       int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// ArchiveConfig holds the optional notification archive.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	Database      DBConfig      `yaml:"database" envPrefix:"DB_"`
	BatchSize     int           `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	BufferSize    int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
	MaxBufferSize int           `yaml:"max_buffer_size" env:"MAX_BUFFER_SIZE"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Name     string `yaml:"name" env:"NAME"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxConns int    `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns int    `yaml:"min_conns" env:"MIN_CONNS"`
}

// LogConfig holds logging output settings.
type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format     string `yaml:"format" env:"FORMAT"` // text or json
	File       string `yaml:"file" env:"FILE"`     // Optional; enables rotating file output
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}
