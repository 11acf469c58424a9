package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bicho/database"
	"bicho/models"
)

// Storage encoding of missing values. The key columns hour and date take part
// in UNIQUE (place, date, hour) and therefore never hold NULL.
const (
	missingHour   = "999"
	missingDate   = int64(0)
	missingMilhar = "999"
	missingGroup  = 999
	missingPlace  = 999
)

// DrawRepository implements the DrawRepository interface for one house
type DrawRepository struct {
	q      queryable
	tables models.HouseTables
	layout database.Layout
	table  string
}

// newDrawRepository creates a draw repository scoped to the tables of a house
func newDrawRepository(q queryable, tables models.HouseTables, layout database.Layout) *DrawRepository {
	return &DrawRepository{
		q:      q,
		tables: tables,
		layout: layout,
		table:  database.QuoteIdent(tables.DrawTable),
	}
}

// Insert stores a draw, reporting false when (place, date, hour) already exists
func (r *DrawRepository) Insert(ctx context.Context, record *models.DrawRecord) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (place, date, hour, milhar, "group", updated_at) VALUES (?, ?, ?, ?, ?, ?)`, r.table)

	result, err := r.q.ExecContext(ctx, query,
		record.Place,
		encodeDate(record.Date),
		encodeHour(record.Hour),
		r.encodeMilhar(record.Milhar),
		r.encodeGroup(record.Group),
		record.UpdatedAt.Unix(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, &models.StorageError{Op: "insert draw", House: r.tables.House, Err: err}
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return true, nil
}

// Info returns the row count and the newest updated_at of the draw table
func (r *DrawRepository) Info(ctx context.Context) (*models.TableInfo, error) {
	query := fmt.Sprintf(`SELECT count(*), MAX(updated_at) FROM %s`, r.table)

	var (
		total      int64
		lastUpdate sql.NullInt64
	)
	if err := r.q.QueryRowContext(ctx, query).Scan(&total, &lastUpdate); err != nil {
		return nil, &models.StorageError{Op: "read table info", House: r.tables.House, Err: err}
	}

	info := &models.TableInfo{TotalRows: total}
	if lastUpdate.Valid {
		ts := time.Unix(lastUpdate.Int64, 0).UTC()
		info.LastUpdate = &ts
	}
	return info, nil
}

// DistinctHours returns the known hour labels in ascending order
func (r *DrawRepository) DistinctHours(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT hour FROM %s WHERE hour <> ? ORDER BY hour`, r.table)

	rows, err := r.q.QueryContext(ctx, query, missingHour)
	if err != nil {
		return nil, &models.StorageError{Op: "list hours", House: r.tables.House, Err: err}
	}
	defer rows.Close()

	hours := []string{}
	for rows.Next() {
		var hour string
		if err := rows.Scan(&hour); err != nil {
			return nil, &models.StorageError{Op: "scan hour", House: r.tables.House, Err: err}
		}
		hours = append(hours, hour)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list hours", House: r.tables.House, Err: err}
	}
	return hours, nil
}

// DistinctPlaces returns the known places in ascending order
func (r *DrawRepository) DistinctPlaces(ctx context.Context) ([]int, error) {
	query := fmt.Sprintf(`SELECT DISTINCT place FROM %s WHERE place > 0 AND place <> ? ORDER BY place`, r.table)

	rows, err := r.q.QueryContext(ctx, query, missingPlace)
	if err != nil {
		return nil, &models.StorageError{Op: "list places", House: r.tables.House, Err: err}
	}
	defer rows.Close()

	places := []int{}
	for rows.Next() {
		var place int
		if err := rows.Scan(&place); err != nil {
			return nil, &models.StorageError{Op: "scan place", House: r.tables.House, Err: err}
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list places", House: r.tables.House, Err: err}
	}
	return places, nil
}

// Export streams every draw in id order. An error returned by fn stops the
// iteration and is returned unchanged.
func (r *DrawRepository) Export(ctx context.Context, fn func(*models.DrawRecord) error) error {
	query := fmt.Sprintf(`SELECT id, place, date, hour, milhar, "group", updated_at FROM %s ORDER BY id`, r.table)

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return &models.StorageError{Op: "export draws", House: r.tables.House, Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanDraw(rows)
		if err != nil {
			return &models.StorageError{Op: "scan draw", House: r.tables.House, Err: err}
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &models.StorageError{Op: "export draws", House: r.tables.House, Err: err}
	}
	return nil
}

// LastMatchDate returns the newest known draw date at hour and place whose
// group is one of groups, or nil when there is none
func (r *DrawRepository) LastMatchDate(ctx context.Context, hour string, place int, groups []int) (*time.Time, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(groups)), ", ")
	query := fmt.Sprintf(`SELECT date FROM %s WHERE hour = ? AND place = ? AND "group" IN (%s) AND date <> ? ORDER BY date DESC LIMIT 1`,
		r.table, placeholders)

	args := make([]any, 0, len(groups)+3)
	args = append(args, hour, place)
	for _, g := range groups {
		args = append(args, g)
	}
	args = append(args, missingDate)

	var ts int64
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "find last match", House: r.tables.House, Err: err}
	}

	date := time.Unix(ts, 0).UTC()
	return &date, nil
}

// CountSince counts draws at hour and place dated strictly after since
func (r *DrawRepository) CountSince(ctx context.Context, hour string, place int, since time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE date > ? AND hour = ? AND place = ?`, r.table)

	var count int
	if err := r.q.QueryRowContext(ctx, query, since.Unix(), hour, place).Scan(&count); err != nil {
		return 0, &models.StorageError{Op: "count draws", House: r.tables.House, Err: err}
	}
	return count, nil
}

func scanDraw(rows *sql.Rows) (*models.DrawRecord, error) {
	var (
		record    models.DrawRecord
		date      int64
		hour      sql.NullString
		milhar    sql.NullString
		group     sql.NullString
		updatedAt int64
	)
	if err := rows.Scan(&record.ID, &record.Place, &date, &hour, &milhar, &group, &updatedAt); err != nil {
		return nil, err
	}

	if date != missingDate {
		d := time.Unix(date, 0).UTC()
		record.Date = &d
	}
	if hour.Valid && hour.String != missingHour {
		h := hour.String
		record.Hour = &h
	}
	record.Milhar = decodeMilhar(milhar)
	record.Group = decodeGroup(group)
	record.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &record, nil
}

func encodeDate(date *time.Time) int64 {
	if date == nil {
		return missingDate
	}
	return date.Unix()
}

func encodeHour(hour *string) string {
	if hour == nil {
		return missingHour
	}
	return *hour
}

func (r *DrawRepository) encodeMilhar(milhar *string) any {
	if milhar != nil {
		return *milhar
	}
	if r.layout.SentinelColumns {
		return missingMilhar
	}
	return nil
}

func (r *DrawRepository) encodeGroup(group *int) any {
	if group != nil {
		return *group
	}
	if r.layout.SentinelColumns {
		return missingGroup
	}
	return nil
}

func decodeMilhar(value sql.NullString) *string {
	if !value.Valid || value.String == "" || value.String == missingMilhar {
		return nil
	}
	milhar := value.String
	// integer columns drop the leading zeros of values like 0523
	if len(milhar) < 4 {
		if n, err := strconv.Atoi(milhar); err == nil {
			milhar = fmt.Sprintf("%04d", n)
		}
	}
	return &milhar
}

func decodeGroup(value sql.NullString) *int {
	if !value.Valid {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value.String))
	if err != nil || n == missingGroup {
		return nil
	}
	return &n
}
