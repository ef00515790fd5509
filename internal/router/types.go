package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wildcard is the reserved event type whose listeners receive every envelope.
const Wildcard = "all"

// ErrNotEnvelope is returned for frames that are valid JSON but not an object.
var ErrNotEnvelope = errors.New("frame is not an envelope object")

// Envelope is the wire format for every inbound real-time message.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"` // Server timestamp, passed through untouched

	ReceivedAt time.Time `json:"-"` // Local timestamp when the frame was read
}

// ParseEnvelope decodes a text frame into an Envelope.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env *Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env == nil {
		return Envelope{}, ErrNotEnvelope
	}
	return *env, nil
}

// ListenerID identifies one registration in a Registry.
type ListenerID uint64

// Listener receives a decoded envelope.
type Listener func(Envelope)

// RegistryStats contains runtime statistics.
type RegistryStats struct {
	MessagesReceived int64
	MessagesRouted   int64 // Envelopes that reached at least one listener
	ParseErrors      int64
	ListenerPanics   int64
	Listeners        int
}
