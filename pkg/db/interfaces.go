// Package db pkg/db/interfaces.go
package db

import (
	"time"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/mfreeman451/netmon/pkg/db Row,Result,Rows,Transaction,Service

// Row represents a database row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result represents the result of a database operation.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Rows represents multiple database rows.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Transaction represents operations that can be performed within a database transaction.
type Transaction interface {
	Exec(query string, args ...interface{}) (Result, error)
	Query(query string, args ...interface{}) (Rows, error)
	QueryRow(query string, args ...interface{}) Row
	Commit() error
	Rollback() error
}

// Service represents all database operations.
type Service interface {
	// Core database operations.

	Begin() (Transaction, error)
	Close() error
	Exec(query string, args ...interface{}) (Result, error)
	Query(query string, args ...interface{}) (Rows, error)
	QueryRow(query string, args ...interface{}) Row
	Ping() error

	// Write path. One poll cycle commits as a single unit.

	SaveObservation(obs *Observation) error

	// Aggregation.

	RollupExists(hour time.Time) (bool, error)
	InsertHourlyRollup(rollup *HourlyRollup) error
	GetPingSamplesBetween(start, end time.Time) ([]PingSample, error)
	GetStatusSnapshotsBetween(start, end time.Time) ([]StatusSnapshot, error)
	GetHourlyRollups(since time.Time, limit int) ([]HourlyRollup, error)

	// Retention. Events and rollups are never deleted.

	DeleteSamplesBefore(cutoff time.Time) (pingsDeleted, snapshotsDeleted int64, err error)

	// Read operations.

	CountStatusSnapshots(since time.Time) (int, error)
	GetStatusHistory(since time.Time, offset, limit int) ([]StatusSnapshot, error)
	GetPingHistory(since time.Time, target string, limit int) ([]PingSample, error)
	GetEvents(limit int, eventType string) ([]NetworkEvent, error)
	GetEventsSince(since time.Time, limit int) ([]NetworkEvent, error)
	GetSummaryStats(since time.Time) (*SummaryStats, error)
}
