package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"bicho/database"

	"github.com/stretchr/testify/require"
)

// TestDatabase represents a test database instance
type TestDatabase struct {
	DB   *database.DB
	Path string
}

// SetupTestDatabase creates a migrated SQLite file in a temp directory and
// opens a pool on it. Everything is removed when the test ends.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "bicho_test.db")

	// Run migrations first (before creating the connection)
	err := database.RunMigrations(path)
	require.NoError(t, err)

	db, err := database.NewConnection(ctx, path, database.WithMaxOpenConns(4))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	return &TestDatabase{DB: db, Path: path}
}
