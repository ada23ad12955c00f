// Package testutil provides helpers shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/database"
)

// TestDB wraps a migrated test database.
type TestDB struct {
	DB     *database.DB
	Conn   *sqlx.DB
	Logger zerolog.Logger
}

// NewTestDB creates a migrated SQLite database in a per-test temp directory.
// The caller should defer Close().
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDB{
		DB:     db,
		Conn:   db.Conn(),
		Logger: NewTestLogger(t),
	}
}

// Close closes the database. The temp directory is removed by the test framework.
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// Task builds a task fixture.
func Task(id string, status types.TaskStatus) types.Task {
	return types.Task{
		ID:        id,
		URL:       "https://example.com/watch/" + id,
		Title:     "Video " + id,
		Status:    status,
		FormatID:  types.DefaultFormatID,
		CreatedAt: "2026-01-02T03:04:05",
	}
}

// IntPtr returns a pointer to an int.
func IntPtr(i int) *int {
	return &i
}

// Int64Ptr returns a pointer to an int64.
func Int64Ptr(i int64) *int64 {
	return &i
}
