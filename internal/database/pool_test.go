package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskhive/notify-client/internal/config"
)

type recordingExecer struct {
	stmts  []string
	failAt int
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	if r.failAt > 0 && len(r.stmts) == r.failAt {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestEnsureSchema(t *testing.T) {
	db := &recordingExecer{}

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.stmts) != len(Schema) {
		t.Fatalf("executed %d statements, want %d", len(db.stmts), len(Schema))
	}
	if !strings.Contains(db.stmts[0], "CREATE TABLE IF NOT EXISTS notifications") {
		t.Errorf("first statement = %q", db.stmts[0])
	}
}

func TestEnsureSchema_StopsOnError(t *testing.T) {
	db := &recordingExecer{failAt: 1}

	err := EnsureSchema(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("EnsureSchema() error = %v", err)
	}
	if len(db.stmts) != 1 {
		t.Errorf("executed %d statements after failure, want 1", len(db.stmts))
	}
}

func TestConnect_BadHost(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, config.DBConfig{
		Host:     "127.0.0.1",
		Port:     1,
		Name:     "notify",
		User:     "notify",
		MaxConns: 1,
	})
	if err == nil {
		t.Fatal("expected error connecting with a cancelled context")
	}
}
