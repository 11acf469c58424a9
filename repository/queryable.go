package repository

import (
	"context"
	"database/sql"
)

// queryable is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
