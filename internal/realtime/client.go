package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/notify-client/internal/connection"
	"github.com/taskhive/notify-client/internal/router"
)

// Dialer opens a transport connection to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (connection.Client, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (connection.Client, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, url string) (connection.Client, error) {
	return f(ctx, url)
}

// wsDialer dials gorilla WebSocket connections.
type wsDialer struct {
	cfg    connection.ClientConfig
	logger *slog.Logger
}

func (d wsDialer) Dial(ctx context.Context, url string) (connection.Client, error) {
	cfg := d.cfg
	cfg.URL = url

	conn := connection.NewClient(cfg, d.logger)
	if err := conn.Connect(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Client is a reconnecting, organization-scoped notification client.
// Use New to create one; the zero value is not usable.
type Client struct {
	cfg      Config
	id       string
	logger   *slog.Logger
	dialer   Dialer
	policy   Policy
	registry *router.Registry
	onState  func(State)

	after func(time.Duration, func()) timer

	// Lifetime context for scheduled reconnects.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	orgID    string
	conn     connection.Client
	gen      uint64 // Bumped on every dial and on Disconnect; stale events are ignored
	attempts int
	timer    timer
	closed   bool

	reconnects atomic.Int64
}

// New creates a disconnected client.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		id:     uuid.NewString(),
		logger: slog.Default(),
		policy: DefaultPolicy(),
		after:  afterFunc,
		state:  StateDisconnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("client_id", c.id)
	c.registry = router.NewRegistry(c.logger)
	if c.dialer == nil {
		c.dialer = wsDialer{cfg: cfg.Transport, logger: c.logger}
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c
}

// ID returns the client's session identifier, attached to every log line.
func (c *Client) ID() string {
	return c.id
}

// Connect opens a connection for organizationID.
//
// It returns nil without dialing if a connection is already open or being
// established. An explicit Connect cancels any pending reconnect and restores
// the full retry budget. If the dial fails the reconnection policy is started
// and the error, wrapping ErrDialFailed, is returned.
func (c *Client) Connect(ctx context.Context, organizationID string) error {
	if organizationID == "" {
		return ErrEmptyOrganization
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == StateOpen || c.state == StateConnecting {
		current := c.orgID
		c.mu.Unlock()
		if current != organizationID {
			c.logger.Warn("connect ignored, connection already active",
				"organization", current,
				"requested", organizationID,
			)
		}
		return nil
	}
	c.stopTimerLocked()
	c.attempts = 0
	c.mu.Unlock()

	return c.connect(ctx, organizationID)
}

// connect performs one connection attempt.
func (c *Client) connect(ctx context.Context, organizationID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.orgID = organizationID
	c.state = StateConnecting
	c.mu.Unlock()
	c.notify(StateConnecting)

	url, err := connection.Endpoint(c.cfg.BaseURL, organizationID)
	if err != nil {
		// Configuration problem; retrying cannot help.
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.notify(StateDisconnected)
		return fmt.Errorf("build endpoint: %w", err)
	}

	c.logger.Debug("connecting", "url", url, "organization", organizationID)

	conn, err := c.dialer.Dial(ctx, url)

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect or Close won the race with the handshake.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("connection failed", "url", url, "error", err)
		c.handleClose(gen)
		return fmt.Errorf("%w: %s: %w", ErrDialFailed, url, err)
	}
	c.conn = conn
	c.mu.Unlock()

	c.handleOpen(gen)
	go c.pump(conn, gen)

	return nil
}

// Disconnect closes the current connection, if any, and cancels a pending
// reconnect. The client stays usable; call Connect to start again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	prev := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("close transport", "error", err)
		}
	}

	if prev != StateDisconnected {
		c.logger.Info("disconnected", "previous_state", prev)
		c.notify(StateDisconnected)
	}
}

// Close disconnects and releases the client. Further Connect calls fail
// with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()
	c.cancel()
	return nil
}

// Run connects for organizationID and keeps the connection (and its
// reconnection policy) alive until ctx is done, then disconnects.
// A failed first dial is not fatal: the reconnection policy takes over.
func (c *Client) Run(ctx context.Context, organizationID string) error {
	if err := c.Connect(ctx, organizationID); err != nil && !errors.Is(err, ErrDialFailed) {
		return err
	}

	<-ctx.Done()
	c.Disconnect()
	return nil
}

// Send marshals v to JSON and writes it if the connection is open.
// Otherwise the message is dropped with a warning: there is no queue and no
// delivery guarantee. json.RawMessage values are sent verbatim.
func (c *Client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Warn("not connected, dropping outbound message", "size", len(data))
		return nil
	}

	if err := conn.Send(data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnects scheduled since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	state, attempts := c.state, c.attempts
	c.mu.Unlock()

	return Stats{
		State:      state,
		Attempts:   attempts,
		Reconnects: c.reconnects.Load(),
		Registry:   c.registry.Stats(),
	}
}

// On registers fn for envelopes of eventType. fn receives the data field,
// except under Wildcard where it receives the whole envelope as JSON.
func (c *Client) On(eventType string, fn DataHandler) ListenerID {
	return c.registry.Add(eventType, func(env router.Envelope) {
		data, err := c.payload(eventType, env)
		if err != nil {
			c.logger.Warn("dropping unencodable envelope", "type", env.Type, "error", err)
			return
		}
		fn(data)
	})
}

// OnAll registers fn for every envelope. fn receives the full envelope.
func (c *Client) OnAll(fn func(Envelope)) ListenerID {
	return c.registry.Add(router.Wildcard, router.Listener(fn))
}

// Off removes the single registration id made under eventType.
// Use Wildcard for registrations made with OnAll.
func (c *Client) Off(eventType string, id ListenerID) bool {
	return c.registry.Remove(eventType, id)
}

// Subscribe registers fn for envelopes of eventType, decoding the data field
// into T. Under Wildcard the whole envelope is decoded instead. Envelopes
// that do not decode are logged and skipped.
func Subscribe[T any](c *Client, eventType string, fn func(T)) ListenerID {
	return c.registry.Add(eventType, func(env router.Envelope) {
		var v T
		data, err := c.payload(eventType, env)
		if err == nil && len(data) > 0 {
			err = json.Unmarshal(data, &v)
		}
		if err != nil {
			c.logger.Warn("dropping undecodable payload",
				"type", env.Type,
				"error", err,
			)
			return
		}
		fn(v)
	})
}

// payload is what a data listener registered under eventType receives.
// Wildcard listeners get the envelope, so the event type is not lost.
func (c *Client) payload(eventType string, env router.Envelope) (json.RawMessage, error) {
	if eventType != router.Wildcard {
		return env.Data, nil
	}
	return json.Marshal(env)
}

// handleOpen marks the connection open and restores the retry budget.
func (c *Client) handleOpen(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = StateOpen
	c.attempts = 0
	org := c.orgID
	c.mu.Unlock()

	c.logger.Info("connected", "organization", org)
	c.notify(StateOpen)
}

// pump dispatches frames from one connection until it ends.
func (c *Client) pump(conn connection.Client, gen uint64) {
	for msg := range conn.Messages() {
		if !c.current(gen) {
			return
		}
		c.registry.Route(msg.Data, msg.ReceivedAt)
	}

	if err := conn.Err(); err != nil {
		c.handleError(gen, err)
	}
	c.handleClose(gen)
}

// handleError logs a transport error. The close that follows drives
// reconnection.
func (c *Client) handleError(gen uint64, err error) {
	if !c.current(gen) {
		return
	}
	c.logger.Warn("connection error", "error", err)
}

// handleClose applies the reconnection policy after a connection ends.
func (c *Client) handleClose(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosed
	c.mu.Unlock()
	c.notify(StateClosed)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.closed {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.notify(StateDisconnected)
		return
	}

	delay, ok := c.policy.Next(c.attempts)
	if !ok {
		attempts := c.attempts
		c.state = StateDisconnected
		c.mu.Unlock()

		c.logger.Error("reconnection abandoned", "attempts", attempts)
		c.notify(StateDisconnected)
		return
	}

	c.attempts++
	attempt := c.attempts
	org := c.orgID
	c.timer = c.after(delay, func() { c.reconnect(gen, org) })
	c.mu.Unlock()

	c.reconnects.Add(1)
	c.logger.Info("scheduling reconnect",
		"attempt", attempt,
		"delay", delay,
	)
}

// reconnect runs a scheduled attempt unless it was superseded.
func (c *Client) reconnect(gen uint64, organizationID string) {
	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	// Errors are logged inside connect and drive the next attempt.
	c.connect(c.ctx, organizationID)
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// stopTimerLocked cancels a pending reconnect. Must be called with mu held.
func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) notify(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}
