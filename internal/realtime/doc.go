// Package realtime implements the organization-scoped notification client.
//
// A Client owns at most one live connection to ws://<host>/ws/<organization>,
// decodes {type, data, timestamp} envelopes and dispatches them to listeners
// registered by event type. When the connection closes the client retries on
// a Policy (five attempts, five seconds apart by default) and gives up after
// the budget is spent until Connect is called again.
//
// State machine:
//
//	disconnected -> connecting -> open -> closed -> connecting (after delay)
//	                                           \-> disconnected (budget spent or Disconnect)
//
// Transport events for one connection are handled on a single goroutine, so
// dispatch for one envelope finishes before the next one starts.
package realtime
