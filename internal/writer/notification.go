package writer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskhive/notify-client/internal/router"
)

const insertNotification = `
	INSERT INTO notifications (id, organization, event_type, payload, sent_at, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// notificationRow is one archived envelope.
type notificationRow struct {
	ID           uuid.UUID
	Organization string
	EventType    string
	Payload      json.RawMessage // nil when the envelope had no data
	SentAt       *time.Time      // nil when the server timestamp is missing or unparseable
	ReceivedAt   time.Time
}

// NotificationWriter consumes envelopes from the router buffer and writes
// them to the notifications table.
type NotificationWriter struct {
	cfg          WriterConfig
	organization string
	logger       *slog.Logger

	// Input from the listener registry
	input *router.GrowableBuffer[router.Envelope]

	// Database
	db BatchSender

	// Batching
	batch   []notificationRow
	batchMu sync.Mutex

	// Serializes flushes so batches land in arrival order.
	flushMu sync.Mutex

	newID func() uuid.UUID

	// Lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewNotificationWriter creates a writer archiving envelopes received for
// organization.
func NewNotificationWriter(
	cfg WriterConfig,
	organization string,
	input *router.GrowableBuffer[router.Envelope],
	db BatchSender,
	logger *slog.Logger,
) *NotificationWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &NotificationWriter{
		cfg:          cfg,
		organization: organization,
		input:        input,
		db:           db,
		logger:       logger,
		batch:        make([]notificationRow, 0, cfg.BatchSize),
		newID:        uuid.New,
	}
}

// Start begins consuming envelopes and writing to the database.
func (w *NotificationWriter) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop(ctx)

	// Flush ticker goroutine
	if w.cfg.FlushInterval > 0 {
		w.wg.Add(1)
		go w.flushLoop(ctx)
	}

	w.logger.Info("notification writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer, archives whatever is still buffered and
// flushes it using ctx.
func (w *NotificationWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping notification writer")

	if w.cancel != nil {
		w.cancel()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("notification writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	for _, env := range w.input.DrainTo(0) {
		w.add(env)
	}
	w.flush(ctx)

	w.logger.Info("notification writer stopped", "inserts", w.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (w *NotificationWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *NotificationWriter) consumeLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		env, ok := w.input.Receive(ctx)
		if !ok {
			return
		}
		if w.add(env) {
			w.flush(ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *NotificationWriter) flushLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// add appends env to the batch and reports whether the batch is full.
func (w *NotificationWriter) add(env router.Envelope) bool {
	row := w.transform(env)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.metrics.Received++
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts an envelope to a notificationRow.
func (w *NotificationWriter) transform(env router.Envelope) notificationRow {
	row := notificationRow{
		ID:           w.newID(),
		Organization: w.organization,
		EventType:    env.Type,
		ReceivedAt:   env.ReceivedAt,
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		row.Payload = env.Data
	}
	if env.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, env.Timestamp); err == nil {
			row.SentAt = &ts
		}
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now()
	}
	return row
}

// flush writes the current batch to the database.
func (w *NotificationWriter) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]notificationRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.metrics.Dropped += int64(len(batch))
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed notifications",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows with a single pgx.Batch round trip.
func (w *NotificationWriter) batchInsert(ctx context.Context, rows []notificationRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertNotification,
			r.ID, r.Organization, r.EventType, r.Payload, r.SentAt, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
