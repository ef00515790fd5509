// Package writer archives received notifications to PostgreSQL.
//
// NotificationWriter consumes envelopes from a router buffer, accumulates
// them into batches and inserts each batch with a single pgx.Batch round
// trip. A batch is flushed when it reaches BatchSize or when FlushInterval
// elapses, whichever comes first. Rows are append-only and keyed by a
// generated UUID, so a failed batch is logged and dropped rather than
// retried.
package writer
