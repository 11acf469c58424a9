package models

import (
	"time"
)

// IngestResult summarises a completed ingestion
type IngestResult struct {
	RunID        string `json:"run_id"`
	House        string `json:"house"`
	TotalEntries int    `json:"total_entries"`
	Inserted     int    `json:"inserted"`
	Skipped      int    `json:"skipped"`
	Invalid      int    `json:"invalid"`
	Duplicates   int    `json:"duplicates"`
}

// IngestRun is the persisted audit row of a committed ingestion
type IngestRun struct {
	RunID          string    `db:"run_id"`
	HouseName      string    `db:"house_name"`
	RequestedUnits int       `db:"requested_units"`
	TotalEntries   int       `db:"total_entries"`
	Inserted       int       `db:"inserted"`
	Invalid        int       `db:"invalid"`
	Duplicates     int       `db:"duplicates"`
	StartedAt      time.Time `db:"started_at"`
	FinishedAt     time.Time `db:"finished_at"`
}
