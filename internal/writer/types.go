package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// WriterConfig controls batching.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultWriterConfig returns default batching settings.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Received int64 // Envelopes taken from the input buffer
	Inserts  int64 // Rows inserted
	Flushes  int64 // Successful batches
	Errors   int64 // Failed batches
	Dropped  int64 // Rows lost to failed batches
}

// BatchSender sends a pgx batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}
