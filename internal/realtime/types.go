package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/taskhive/notify-client/internal/connection"
	"github.com/taskhive/notify-client/internal/router"
)

// Errors
var (
	ErrEmptyOrganization = errors.New("organization id is required")
	ErrClientClosed      = errors.New("realtime client closed")
	ErrDialFailed        = errors.New("dial failed")
)

// State is the lifecycle state of the client's connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosed       State = "closed"
)

// Envelope is re-exported so callers don't need the router package.
type Envelope = router.Envelope

// ListenerID identifies one registration made with On, OnAll or Subscribe.
type ListenerID = router.ListenerID

// Wildcard is the event type whose listeners receive every envelope.
const Wildcard = router.Wildcard

// DataHandler receives the data field of an envelope.
type DataHandler func(data json.RawMessage)

// Config configures a Client.
type Config struct {
	BaseURL   string                  // e.g. ws://localhost:8000 or https://api.example.com
	Transport connection.ClientConfig // URL is filled in per organization
}

// Stats is a point-in-time view of the client.
type Stats struct {
	State      State
	Attempts   int   // Consecutive failed attempts in the current budget
	Reconnects int64 // Reconnects scheduled since creation
	Registry   router.RegistryStats
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithPolicy replaces the reconnection policy.
func WithPolicy(p Policy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithStateHook registers fn to observe state transitions. fn runs on the
// goroutine that caused the transition and must not block.
func WithStateHook(fn func(State)) Option {
	return func(c *Client) {
		c.onState = fn
	}
}

// timer is the part of *time.Timer the client needs.
type timer interface {
	Stop() bool
}

func afterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}
