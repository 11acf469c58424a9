package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bicho/models"
)

// HouseRepository implements the HouseRepository interface
type HouseRepository struct {
	q queryable
}

// newHouseRepository creates a house registry repository
func newHouseRepository(q queryable) *HouseRepository {
	return &HouseRepository{q: q}
}

// GetByName returns the registration of a house, or nil when it is unknown
func (r *HouseRepository) GetByName(ctx context.Context, name string) (*models.HouseRegistration, error) {
	query := `
		SELECT house_name, draw_table, group_table, created_at
		FROM houses
		WHERE house_name = ?
	`

	var (
		reg       models.HouseRegistration
		createdAt int64
	)
	err := r.q.QueryRowContext(ctx, query, name).Scan(&reg.HouseName, &reg.DrawTable, &reg.GroupTable, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get house %q: %w", name, err)
	}
	reg.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &reg, nil
}

// List returns every registered house ordered by name
func (r *HouseRepository) List(ctx context.Context) ([]*models.HouseRegistration, error) {
	query := `
		SELECT house_name, draw_table, group_table, created_at
		FROM houses
		ORDER BY house_name
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list houses: %w", err)
	}
	defer rows.Close()

	houses := []*models.HouseRegistration{}
	for rows.Next() {
		var (
			reg       models.HouseRegistration
			createdAt int64
		)
		if err := rows.Scan(&reg.HouseName, &reg.DrawTable, &reg.GroupTable, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan house: %w", err)
		}
		reg.CreatedAt = time.Unix(createdAt, 0).UTC()
		houses = append(houses, &reg)
	}

	return houses, rows.Err()
}
