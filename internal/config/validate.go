package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server.base_url scheme must be http, https, ws or wss, got %q", u.Scheme)
	}

	if c.Organization == "" {
		return errors.New("organization is required")
	}

	if err := c.Reconnect.validate(); err != nil {
		return err
	}

	if c.Connection.PingInterval <= 0 {
		return errors.New("connection.ping_interval must be > 0")
	}
	if c.Connection.PingTimeout < c.Connection.PingInterval {
		return fmt.Errorf("connection.ping_timeout (%s) must be >= ping_interval (%s)",
			c.Connection.PingTimeout, c.Connection.PingInterval)
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
		if c.Archive.MaxBufferSize < c.Archive.BufferSize {
			return fmt.Errorf("archive.max_buffer_size (%d) cannot be less than buffer_size (%d)",
				c.Archive.MaxBufferSize, c.Archive.BufferSize)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (r *ReconnectConfig) validate() error {
	switch r.Strategy {
	case StrategyNone:
		return nil
	case StrategyFixed, StrategyExponential:
	default:
		return fmt.Errorf("reconnect.strategy must be fixed, exponential or none, got %q", r.Strategy)
	}

	if r.Delay <= 0 {
		return errors.New("reconnect.delay must be > 0")
	}
	if r.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}
	if r.Strategy == StrategyExponential {
		if r.MaxDelay < r.Delay {
			return fmt.Errorf("reconnect.max_delay (%s) cannot be less than delay (%s)", r.MaxDelay, r.Delay)
		}
		if r.Jitter < 0 || r.Jitter > 1 {
			return fmt.Errorf("reconnect.jitter must be between 0 and 1, got %g", r.Jitter)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
