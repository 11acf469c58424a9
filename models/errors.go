package models

import (
	"errors"
	"fmt"
)

// ErrEmptyRequest is returned when an ingestion is requested with nothing to fetch
var ErrEmptyRequest = errors.New("no pending updates to ingest")

// ValidationError reports malformed caller input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// DuplicateGroupError reports a group already registered for the same hour and place
type DuplicateGroupError struct {
	House string
	Hour  string
	Place int
}

func (e *DuplicateGroupError) Error() string {
	return fmt.Sprintf("group for hour %s and place %d is already registered in %s", e.Hour, e.Place, e.House)
}

// NotFoundError reports a group id with no matching row
type NotFoundError struct {
	House string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no group found with id %d in %s", e.ID, e.House)
}

// StorageError wraps connection, query and transaction failures
type StorageError struct {
	Op    string
	House string
	Err   error
}

func (e *StorageError) Error() string {
	if e.House == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s (%s): %v", e.Op, e.House, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IngestionError reports an ingestion that could not start
type IngestionError struct {
	House string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion of %s: %v", e.House, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
