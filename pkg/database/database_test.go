package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "data", "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestMigrator_RunBundled(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.Run(ctx))
	// second run is a no-op
	require.NoError(t, m.Run(ctx))

	applied, err := m.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.True(t, applied[1])

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='stored_files'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrator_OrderAndFailure(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	ctx := context.Background()

	fsys := fstest.MapFS{
		"002_add_b.sql": {Data: []byte("ALTER TABLE a ADD COLUMN b TEXT;")},
		"001_add_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"README.md":     {Data: []byte("ignored")},
	}
	require.NoError(t, m.RunFS(ctx, fsys))

	_, err := db.ExecContext(ctx, "INSERT INTO a (id, b) VALUES (1, 'x')")
	assert.NoError(t, err)

	bad := fstest.MapFS{"003_broken.sql": {Data: []byte("NOT SQL")}}
	assert.Error(t, m.RunFS(ctx, bad))

	applied, err := m.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.False(t, applied[3])
}

func TestLoadMigrations_Invalid(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"init.sql": {Data: []byte("")}})
	assert.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("")},
		"1_b.sql":   {Data: []byte("")},
	})
	assert.Error(t, err)
}

func TestWithTransaction_RollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO t VALUES (1)"); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 0, n)
}
