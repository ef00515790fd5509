package router

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	id ListenerID
	fn Listener
}

// Registry maps event types to ordered listener lists and dispatches
// envelopes to them.
//
// Listeners are invoked on the caller's goroutine, outside the registry lock,
// so a listener may register or remove listeners while it runs. Changes made
// during a dispatch take effect from the next envelope.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	nextID    ListenerID
	listeners map[string][]entry

	received       atomic.Int64
	routed         atomic.Int64
	parseErrors    atomic.Int64
	listenerPanics atomic.Int64
}

// NewRegistry creates an empty listener registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:    logger,
		listeners: make(map[string][]entry),
	}
}

// Add appends fn to the listeners of eventType and returns its handle.
// Registering the same function twice yields two independent handles.
func (r *Registry) Add(eventType string, fn Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.listeners[eventType] = append(r.listeners[eventType], entry{id: id, fn: fn})
	return id
}

// Remove unregisters exactly one registration: the one identified by id
// under eventType. Returns false if no such registration exists.
func (r *Registry) Remove(eventType string, id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listeners[eventType]
	for i, e := range list {
		if e.id != id {
			continue
		}

		// Copy so a dispatch holding the old slice is unaffected.
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(r.listeners, eventType)
		} else {
			r.listeners[eventType] = next
		}
		return true
	}

	return false
}

// Len returns the number of listeners registered under eventType.
func (r *Registry) Len(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[eventType])
}

// Route parses a raw frame and dispatches it. Malformed frames are logged,
// counted and dropped. Returns false if the frame was dropped.
func (r *Registry) Route(data []byte, receivedAt time.Time) bool {
	r.received.Add(1)

	env, err := ParseEnvelope(data)
	if err != nil {
		r.parseErrors.Add(1)
		r.logger.Warn("dropping malformed frame",
			"error", err,
			"size", len(data),
		)
		return false
	}
	env.ReceivedAt = receivedAt

	r.Dispatch(env)
	return true
}

// Dispatch invokes, in registration order, every listener registered under
// env.Type and then every Wildcard listener. Returns the number of listeners
// invoked. A panicking listener is recovered and logged; the remaining
// listeners still run. An envelope whose type is Wildcard reaches each
// Wildcard listener once, not twice.
func (r *Registry) Dispatch(env Envelope) int {
	r.mu.RLock()
	var typed []entry
	if env.Type != Wildcard {
		typed = r.listeners[env.Type]
	}
	wildcard := r.listeners[Wildcard]
	r.mu.RUnlock()

	invoked := 0
	for _, e := range typed {
		r.invoke(e, env)
		invoked++
	}
	for _, e := range wildcard {
		r.invoke(e, env)
		invoked++
	}

	if invoked > 0 {
		r.routed.Add(1)
	}
	return invoked
}

// Stats returns current statistics.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	n := 0
	for _, list := range r.listeners {
		n += len(list)
	}
	r.mu.RUnlock()

	return RegistryStats{
		MessagesReceived: r.received.Load(),
		MessagesRouted:   r.routed.Load(),
		ParseErrors:      r.parseErrors.Load(),
		ListenerPanics:   r.listenerPanics.Load(),
		Listeners:        n,
	}
}

func (r *Registry) invoke(e entry, env Envelope) {
	defer func() {
		if p := recover(); p != nil {
			r.listenerPanics.Add(1)
			r.logger.Error("listener panicked",
				"type", env.Type,
				"listener", e.id,
				"panic", p,
			)
		}
	}()

	e.fn(env)
}

// BufferListener returns a Listener that copies every envelope into buf.
// Register it under Wildcard to feed asynchronous consumers.
func BufferListener(buf *GrowableBuffer[Envelope]) Listener {
	return func(env Envelope) {
		buf.Send(env)
	}
}
