package writer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskhive/notify-client/internal/router"
)

// fakeDB records every queued insert.
type fakeDB struct {
	mu      sync.Mutex
	batches [][]*pgx.QueuedQuery
	err     error
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b.QueuedQueries)
	return &fakeResults{n: b.Len(), err: f.err}
}

func (f *fakeDB) rows() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]any
	for _, b := range f.batches {
		for _, q := range b {
			out = append(out, q.Arguments)
		}
	}
	return out
}

func (f *fakeDB) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeResults struct {
	n   int
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func TestNotificationWriter_Transform(t *testing.T) {
	input := router.NewGrowableBuffer[router.Envelope](10, 0)
	w := NewNotificationWriter(DefaultWriterConfig(), "acme", input, nil, nil)

	id := uuid.MustParse("6f1c2a58-2d4f-4c1e-9a64-3f9f0f4b2c11")
	w.newID = func() uuid.UUID { return id }

	receivedAt := time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC)
	row := w.transform(router.Envelope{
		Type:       "task_created",
		Data:       json.RawMessage(`{"id":7}`),
		Timestamp:  "2024-05-01T10:00:00.5Z",
		ReceivedAt: receivedAt,
	})

	if row.ID != id {
		t.Errorf("ID = %s, want %s", row.ID, id)
	}
	if row.Organization != "acme" {
		t.Errorf("Organization = %q, want acme", row.Organization)
	}
	if row.EventType != "task_created" {
		t.Errorf("EventType = %q, want task_created", row.EventType)
	}
	if string(row.Payload) != `{"id":7}` {
		t.Errorf("Payload = %s", row.Payload)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 500_000_000, time.UTC)
	if row.SentAt == nil || !row.SentAt.Equal(want) {
		t.Errorf("SentAt = %v, want %v", row.SentAt, want)
	}
	if !row.ReceivedAt.Equal(receivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", row.ReceivedAt, receivedAt)
	}
}

func TestNotificationWriter_Transform_Sparse(t *testing.T) {
	input := router.NewGrowableBuffer[router.Envelope](10, 0)
	w := NewNotificationWriter(DefaultWriterConfig(), "acme", input, nil, nil)

	tests := []struct {
		name string
		env  router.Envelope
	}{
		{name: "no data", env: router.Envelope{Type: "ping"}},
		{name: "null data", env: router.Envelope{Type: "ping", Data: json.RawMessage(`null`)}},
		{name: "bad timestamp", env: router.Envelope{Type: "ping", Timestamp: "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := w.transform(tt.env)
			if row.Payload != nil {
				t.Errorf("Payload = %s, want nil", row.Payload)
			}
			if row.SentAt != nil {
				t.Errorf("SentAt = %v, want nil", row.SentAt)
			}
			if row.ReceivedAt.IsZero() {
				t.Error("ReceivedAt not defaulted")
			}
			if row.ID == uuid.Nil {
				t.Error("ID not generated")
			}
		})
	}
}

func TestNotificationWriter_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	input := router.NewGrowableBuffer[router.Envelope](10, 0)
	w := NewNotificationWriter(WriterConfig{BatchSize: 3}, "acme", input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, typ := range []string{"a", "b", "c", "d"} {
		input.Send(router.Envelope{Type: typ, ReceivedAt: time.Now()})
	}

	deadline := time.Now().Add(2 * time.Second)
	for db.batchCount() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for size-triggered flush")
		}
		time.Sleep(time.Millisecond)
	}

	// The fourth envelope is flushed by Stop.
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	rows := db.rows()
	if len(rows) != 4 {
		t.Fatalf("inserted %d rows, want 4", len(rows))
	}
	for i, typ := range []string{"a", "b", "c", "d"} {
		if rows[i][2] != typ {
			t.Errorf("row %d event_type = %v, want %s", i, rows[i][2], typ)
		}
		if rows[i][1] != "acme" {
			t.Errorf("row %d organization = %v, want acme", i, rows[i][1])
		}
	}

	stats := w.Stats()
	if stats.Received != 4 || stats.Inserts != 4 || stats.Flushes != 2 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestNotificationWriter_FlushOnInterval(t *testing.T) {
	db := &fakeDB{}
	input := router.NewGrowableBuffer[router.Envelope](10, 0)
	w := NewNotificationWriter(WriterConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, "acme", input, db, nil)

	w.Start(context.Background())
	defer w.Stop(context.Background())

	input.Send(router.Envelope{Type: "a"})

	deadline := time.Now().Add(2 * time.Second)
	for db.batchCount() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for interval flush")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNotificationWriter_StopDrainsBuffer(t *testing.T) {
	db := &fakeDB{}
	input := router.NewGrowableBuffer[router.Envelope](10, 0)
	w := NewNotificationWriter(WriterConfig{BatchSize: 100}, "acme", input, db, nil)

	// Never started: Stop still archives what is buffered.
	input.Send(router.Envelope{Type: "a"})
	input.Send(router.Envelope{Type: "b"})

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := len(db.rows()); got != 2 {
		t.Errorf("inserted %d rows, want 2", got)
	}
}

func TestNotificationWriter_InsertError(t *testing.T) {
	db := &fakeDB{err: errors.New("relation \"notifications\" does not exist")}
	input := router.NewGrowableBuffer[router.Envelope](10, 0)
	w := NewNotificationWriter(WriterConfig{BatchSize: 100}, "acme", input, db, nil)

	input.Send(router.Envelope{Type: "a"})
	input.Send(router.Envelope{Type: "b"})
	w.Stop(context.Background())

	stats := w.Stats()
	if stats.Errors != 1 || stats.Dropped != 2 || stats.Inserts != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestNotificationWriter_WithBufferListener(t *testing.T) {
	db := &fakeDB{}
	reg := router.NewRegistry(nil)
	input := router.NewGrowableBuffer[router.Envelope](10, 0)
	reg.Add(router.Wildcard, router.BufferListener(input))

	w := NewNotificationWriter(WriterConfig{BatchSize: 100}, "acme", input, db, nil)

	reg.Route([]byte(`{"type":"member_joined","data":{"user":"bob"}}`), time.Now())
	reg.Route([]byte(`garbage`), time.Now())
	w.Stop(context.Background())

	rows := db.rows()
	if len(rows) != 1 {
		t.Fatalf("inserted %d rows, want 1", len(rows))
	}
	if payload, ok := rows[0][3].(json.RawMessage); !ok || string(payload) != `{"user":"bob"}` {
		t.Errorf("payload = %#v", rows[0][3])
	}
}
