// Package router decodes inbound envelopes and fans them out to listeners
// registered by event type.
//
// Dispatch order for one envelope:
//   - listeners registered under envelope.Type, in registration order
//   - listeners registered under Wildcard ("all"), in registration order
//
// GrowableBuffer lets a wildcard listener hand envelopes to goroutines that
// consume at their own pace (archive writer, console printer).
package router
