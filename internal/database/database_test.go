package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, filepath.Join(t.TempDir(), "nested", "accio.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(ctx))

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	var count int
	require.NoError(t, db.Conn().GetContext(ctx, &count, "SELECT COUNT(*) FROM task_events"))
	assert.Equal(t, 0, count)

	require.NoError(t, db.MigrateDown(ctx))
	_, err = db.Conn().ExecContext(ctx, "SELECT COUNT(*) FROM task_events")
	assert.Error(t, err)
}
