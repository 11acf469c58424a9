package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bicho/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_CreatesFileAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "bicho.db")

	db, err := NewConnection(context.Background(), path, WithMaxOpenConns(1), WithBusyTimeout(time.Second))
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, db.Path())
}

func TestDSN(t *testing.T) {
	dsn := DSN("data/bicho.db", 2500*time.Millisecond)
	assert.Contains(t, dsn, "file:data/bicho.db?")
	assert.Contains(t, dsn, "_pragma=busy_timeout(2500)")
	assert.Contains(t, dsn, "_pragma=journal_mode(WAL)")
	assert.Contains(t, dsn, "_pragma=foreign_keys(1)")
	assert.Contains(t, dsn, "_txlock=immediate")
}

func TestAcquire_BlocksUntilRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bicho.db")
	db, err := NewConnection(context.Background(), path, WithMaxOpenConns(1))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	first, err := db.Acquire(ctx)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = db.Acquire(shortCtx)
	var storageErr *models.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Close())

	second, err := db.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE notes (body TEXT NOT NULL)`)
	require.NoError(t, err)

	t.Run("commits on success", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO notes (body) VALUES ('kept')`)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO notes (body) VALUES ('dropped')`); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&count))
	assert.Equal(t, 1, count)
}
