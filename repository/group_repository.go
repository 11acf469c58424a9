package repository

import (
	"context"
	"fmt"
	"time"

	"bicho/database"
	"bicho/models"
)

// GroupRepository implements the GroupRepository interface for one house
type GroupRepository struct {
	q      queryable
	tables models.HouseTables
	table  string
}

// newGroupRepository creates a group repository scoped to the tables of a house
func newGroupRepository(q queryable, tables models.HouseTables) *GroupRepository {
	return &GroupRepository{
		q:      q,
		tables: tables,
		table:  database.QuoteIdent(tables.GroupTable),
	}
}

// List returns every group ordered by id
func (r *GroupRepository) List(ctx context.Context) ([]*models.Group, error) {
	query := fmt.Sprintf(`SELECT id, hour, place, "group", updated_at FROM %s ORDER BY id`, r.table)

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, &models.StorageError{Op: "list groups", House: r.tables.House, Err: err}
	}
	defer rows.Close()

	groups := []*models.Group{}
	for rows.Next() {
		var (
			id        int64
			group     models.Group
			numbers   string
			updatedAt int64
		)
		if err := rows.Scan(&id, &group.Hour, &group.Place, &numbers, &updatedAt); err != nil {
			return nil, &models.StorageError{Op: "scan group", House: r.tables.House, Err: err}
		}
		group.ID = &id
		group.Numbers = models.ParseNumbers(numbers)
		group.SetStoredText(numbers)
		group.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		groups = append(groups, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list groups", House: r.tables.House, Err: err}
	}

	return groups, nil
}

// Create inserts a group, setting its ID and UpdatedAt
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	query := fmt.Sprintf(`INSERT INTO %s (hour, place, "group", updated_at) VALUES (?, ?, ?, ?)`, r.table)

	now := time.Now().UTC().Truncate(time.Second)
	encoded := models.EncodeNumbers(group.Numbers)
	result, err := r.q.ExecContext(ctx, query, group.Hour, group.Place, encoded, now.Unix())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return &models.DuplicateGroupError{House: r.tables.House, Hour: group.Hour, Place: group.Place}
		}
		return &models.StorageError{Op: "create group", House: r.tables.House, Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return &models.StorageError{Op: "read group id", House: r.tables.House, Err: err}
	}
	group.ID = &id
	group.UpdatedAt = now
	group.SetStoredText(encoded)

	return nil
}

// Update overwrites every field of the group with the same ID and bumps UpdatedAt
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	if group.ID == nil {
		return &models.ValidationError{Field: "id", Message: "id is required to edit a group"}
	}

	query := fmt.Sprintf(`UPDATE %s SET hour = ?, place = ?, "group" = ?, updated_at = ? WHERE id = ?`, r.table)

	now := time.Now().UTC().Truncate(time.Second)
	encoded := models.EncodeNumbers(group.Numbers)
	result, err := r.q.ExecContext(ctx, query, group.Hour, group.Place, encoded, now.Unix(), *group.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return &models.DuplicateGroupError{House: r.tables.House, Hour: group.Hour, Place: group.Place}
		}
		return &models.StorageError{Op: "update group", House: r.tables.House, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &models.StorageError{Op: "update group", House: r.tables.House, Err: err}
	}
	if affected == 0 {
		return &models.NotFoundError{House: r.tables.House, ID: *group.ID}
	}

	group.UpdatedAt = now
	group.SetStoredText(encoded)
	return nil
}

// Delete removes the group with the given id
func (r *GroupRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table)

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return &models.StorageError{Op: "delete group", House: r.tables.House, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &models.StorageError{Op: "delete group", House: r.tables.House, Err: err}
	}
	if affected == 0 {
		return &models.NotFoundError{House: r.tables.House, ID: id}
	}

	return nil
}
