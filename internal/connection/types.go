package connection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrEmptyEndpoint   = errors.New("empty endpoint")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full endpoint, e.g. ws://localhost:8000/ws/acme
	Token            string        // Bearer token for the Authorization header (empty = none)
	PingInterval     time.Duration // How often we ping the server (0 = disabled)
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial handshake deadline
	ReadLimit        int64         // Max inbound frame size in bytes (0 = unlimited)
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadLimit:        1 << 20,
		BufferSize:       256,
	}
}

// Endpoint builds the organization-scoped WebSocket URL.
//
// base may use ws, wss, http or https; http(s) is upgraded to ws(s).
// A trailing slash or an existing path prefix on base is preserved.
func Endpoint(base, organizationID string) (string, error) {
	if base == "" {
		return "", ErrEmptyEndpoint
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	prefix := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + organizationID
	u.RawPath = prefix + "/ws/" + url.PathEscape(organizationID)
	return u.String(), nil
}
