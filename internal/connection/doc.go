// Package connection implements the WebSocket transport used by the
// realtime client.
//
// A Client owns exactly one WebSocket:
//   - Dials an organization-scoped endpoint (ws://<host>/ws/<organization>)
//   - Reads text frames on a single goroutine and exposes them in order
//   - Keeps the connection alive with ping/pong and detects stale peers
//   - Serializes writes behind a write deadline
package connection
