package main

import (
	"github.com/taskhive/notify-client/internal/config"
	"github.com/taskhive/notify-client/internal/connection"
	"github.com/taskhive/notify-client/internal/realtime"
	"github.com/taskhive/notify-client/internal/writer"
)

// policyFromConfig maps the reconnect section to a realtime.Policy.
func policyFromConfig(cfg config.ReconnectConfig) realtime.Policy {
	switch cfg.Strategy {
	case config.StrategyNone:
		return realtime.FixedPolicy{}
	case config.StrategyExponential:
		return realtime.ExponentialPolicy{
			Base:        cfg.Delay,
			Max:         cfg.MaxDelay,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      cfg.Jitter,
		}
	default:
		return realtime.FixedPolicy{
			Delay:       cfg.Delay,
			MaxAttempts: cfg.MaxAttempts,
		}
	}
}

// clientConfig maps server and connection settings to a realtime.Config.
func clientConfig(cfg *config.Config) realtime.Config {
	return realtime.Config{
		BaseURL: cfg.Server.BaseURL,
		Transport: connection.ClientConfig{
			Token:            cfg.Server.Token,
			PingInterval:     cfg.Connection.PingInterval,
			PingTimeout:      cfg.Connection.PingTimeout,
			WriteTimeout:     cfg.Connection.WriteTimeout,
			HandshakeTimeout: cfg.Connection.HandshakeTimeout,
			ReadLimit:        cfg.Connection.ReadLimit,
			BufferSize:       cfg.Connection.BufferSize,
		},
	}
}

func writerConfig(cfg config.ArchiveConfig) writer.WriterConfig {
	return writer.WriterConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}
}
