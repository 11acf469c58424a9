package models

import (
	"time"
)

// House is a data source listed by the upstream provider
type House struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HouseTables holds the storage identifiers derived from a house name
type HouseTables struct {
	House      string `json:"house"`
	DrawTable  string `json:"draw_table"`
	GroupTable string `json:"group_table"`
}

// HouseRegistration records which house name owns a pair of tables
type HouseRegistration struct {
	HouseName  string    `db:"house_name"`
	DrawTable  string    `db:"draw_table"`
	GroupTable string    `db:"group_table"`
	CreatedAt  time.Time `db:"created_at"`
}

// TableInfo summarises a house draw table
type TableInfo struct {
	TotalRows  int64      `json:"total_rows"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}

// LastUpdateUnix returns the last update as unix seconds, or nil when the table is empty
func (i *TableInfo) LastUpdateUnix() *int64 {
	if i.LastUpdate == nil {
		return nil
	}
	ts := i.LastUpdate.Unix()
	return &ts
}
