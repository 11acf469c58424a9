package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bicho/models"

	"github.com/puzpuzpuz/xsync/v4"
	log "github.com/sirupsen/logrus"
)

// Layout describes how a house draw table encodes missing values
type Layout struct {
	// SentinelColumns is set for draw tables whose milhar and group columns
	// are NOT NULL and therefore hold "999" for a missing value
	SentinelColumns bool
}

// Schema creates per-house tables on demand and remembers which houses are
// already in place
type Schema struct {
	ensured *xsync.Map[string, Layout]
}

// NewSchema creates an empty schema manager
func NewSchema() *Schema {
	return &Schema{ensured: xsync.NewMap[string, Layout]()}
}

// EnsureHouse creates the draw and group tables of a house if needed and
// registers the house, all in one transaction on conn. A house whose
// identifiers are already owned by a different name is rejected.
func (s *Schema) EnsureHouse(ctx context.Context, conn *sql.Conn, tables models.HouseTables) (Layout, error) {
	if layout, ok := s.ensured.Load(tables.House); ok {
		return layout, nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Layout{}, &models.StorageError{Op: "begin schema transaction", House: tables.House, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT house_name FROM houses WHERE (lower(draw_table) = lower(?) OR lower(group_table) = lower(?)) AND house_name <> ?`,
		tables.DrawTable, tables.GroupTable, tables.House,
	).Scan(&owner)
	switch {
	case err == nil:
		return Layout{}, &models.ValidationError{
			Field:   "house",
			Message: fmt.Sprintf("%q maps to the same tables as the registered house %q", tables.House, owner),
		}
	case !errors.Is(err, sql.ErrNoRows):
		return Layout{}, &models.StorageError{Op: "check house registry", House: tables.House, Err: err}
	}

	for _, stmt := range houseDDL(tables) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return Layout{}, &models.StorageError{Op: "create house tables", House: tables.House, Err: err}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO houses (house_name, draw_table, group_table, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (house_name) DO NOTHING`,
		tables.House, tables.DrawTable, tables.GroupTable, time.Now().UTC().Unix(),
	)
	if err != nil {
		return Layout{}, &models.StorageError{Op: "register house", House: tables.House, Err: err}
	}

	layout, err := inspectLayout(ctx, tx, tables.DrawTable)
	if err != nil {
		return Layout{}, &models.StorageError{Op: "inspect draw table", House: tables.House, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return Layout{}, &models.StorageError{Op: "commit schema transaction", House: tables.House, Err: err}
	}
	committed = true

	s.ensured.Store(tables.House, layout)

	log.WithFields(log.Fields{
		"house":           tables.House,
		"drawTable":       tables.DrawTable,
		"groupTable":      tables.GroupTable,
		"sentinelColumns": layout.SentinelColumns,
	}).Debug("House tables ensured")

	return layout, nil
}

func houseDDL(tables models.HouseTables) []string {
	draw := QuoteIdent(tables.DrawTable)
	group := QuoteIdent(tables.GroupTable)
	index := QuoteIdent("idx_" + tables.DrawTable + "_hour_place_date")

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			place INTEGER NOT NULL,
			date INTEGER NOT NULL,
			hour TEXT NOT NULL,
			milhar TEXT,
			"group" INTEGER,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now')),
			UNIQUE (place, date, hour)
		)`, draw),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (hour, place, date)`, index, draw),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			hour TEXT NOT NULL,
			place INTEGER NOT NULL,
			"group" TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%%s', 'now')),
			UNIQUE (hour, place)
		)`, group),
	}
}

func inspectLayout(ctx context.Context, tx *sql.Tx, drawTable string) (Layout, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(drawTable)))
	if err != nil {
		return Layout{}, err
	}
	defer rows.Close()

	var layout Layout
	for rows.Next() {
		var (
			cid      int
			name     string
			ctype    string
			notNull  int
			defValue sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defValue, &pk); err != nil {
			return Layout{}, err
		}
		if (name == "milhar" || name == "group") && notNull == 1 {
			layout.SentinelColumns = true
		}
	}
	return layout, rows.Err()
}
