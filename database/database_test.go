package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDB opens a migrated database in a temp directory
func newTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bicho.db")
	require.NoError(t, RunMigrations(path))

	db, err := NewConnection(context.Background(), path, WithMaxOpenConns(2))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}
