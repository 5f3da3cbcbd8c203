// Package db pkg/db/db.go provides SQLite persistence for netmon: status
// snapshots, ping samples, network events and hourly rollups.
package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// SQL statements for database initialization.
	createTablesSQL = `
	-- One row per successful poll of the device
	CREATE TABLE IF NOT EXISTS status_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		wan_state TEXT,
		rx_errors INTEGER NOT NULL DEFAULT 0,
		tx_errors INTEGER NOT NULL DEFAULT 0,
		rx_dropped INTEGER NOT NULL DEFAULT 0,
		tx_dropped INTEGER NOT NULL DEFAULT 0,
		optical_rx REAL,
		optical_tx REAL,
		cpu_temp REAL,
		pppoe_reconnect_count INTEGER NOT NULL DEFAULT 0,
		wan_down_count INTEGER NOT NULL DEFAULT 0
	);

	-- One row per (poll, target) probe
	CREATE TABLE IF NOT EXISTS ping_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		target TEXT NOT NULL,
		rtt REAL,
		loss INTEGER NOT NULL DEFAULT 0
	);

	-- Device-reported events, kept forever
	CREATE TABLE IF NOT EXISTS network_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		event_time TIMESTAMP NOT NULL,
		event_type TEXT NOT NULL,
		message TEXT
	);

	-- Precomputed hourly aggregates, one per calendar hour
	CREATE TABLE IF NOT EXISTS hourly_rollups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hour TIMESTAMP NOT NULL UNIQUE,
		avg_ping_rtt REAL,
		max_ping_rtt REAL,
		min_ping_rtt REAL,
		packet_loss_count INTEGER NOT NULL DEFAULT 0,
		pppoe_reconnect_count INTEGER NOT NULL DEFAULT 0,
		wan_down_count INTEGER NOT NULL DEFAULT 0,
		avg_cpu_temp REAL,
		max_cpu_temp REAL
	);

	-- Indexes for better query performance
	CREATE INDEX IF NOT EXISTS idx_status_snapshots_time
		ON status_snapshots(timestamp);
	CREATE INDEX IF NOT EXISTS idx_ping_samples_time
		ON ping_samples(timestamp);
	CREATE INDEX IF NOT EXISTS idx_ping_samples_target
		ON ping_samples(target);
	CREATE INDEX IF NOT EXISTS idx_network_events_time
		ON network_events(event_time);
	CREATE INDEX IF NOT EXISTS idx_network_events_type
		ON network_events(event_type);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_hourly_rollups_hour
		ON hourly_rollups(hour);

	-- Enable WAL mode for better concurrent access
	PRAGMA journal_mode=WAL;
	PRAGMA foreign_keys=ON;
	`
)

// DB represents the database connection and operations.
type DB struct {
	*sql.DB
}

// New creates a new database connection and initializes the schema.
func New(dbPath string) (Service, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToEnableWAL, err)
	}

	db := &DB{sqlDB}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return db, nil
}

// initSchema creates the database tables if they don't exist.
func (db *DB) initSchema() error {
	_, err := db.DB.Exec(createTablesSQL)

	return err
}

// Begin starts a transaction, returning the interface wrapper type.
func (db *DB) Begin() (Transaction, error) {
	tx, err := db.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToBeginTx, err)
	}

	return ToTransaction(tx), nil
}

func (db *DB) Exec(query string, args ...interface{}) (Result, error) {
	result, err := db.DB.Exec(query, args...)
	if err != nil {
		return nil, err
	}

	return ToResult(result), nil
}

func (db *DB) Query(query string, args ...interface{}) (Rows, error) {
	rows, err := db.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}

	if err := rows.Err(); err != nil {
		CloseRows(&SQLRows{rows})
		return nil, err
	}

	return &SQLRows{rows}, nil
}

func (db *DB) QueryRow(query string, args ...interface{}) Row {
	return ToRow(db.DB.QueryRow(query, args...))
}

// SaveObservation commits one poll cycle's snapshot, ping samples and events
// as a single unit. Either the full observation is durable or none of it is.
func (db *DB) SaveObservation(obs *Observation) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("failed to rollback: %v", rbErr)
			}

			return
		}

		err = tx.Commit()
	}()

	if err = insertSnapshot(tx, &obs.Snapshot); err != nil {
		return err
	}

	for i := range obs.Pings {
		if err = insertPingSample(tx, &obs.Pings[i]); err != nil {
			return err
		}
	}

	for i := range obs.Events {
		if err = insertEvent(tx, &obs.Events[i]); err != nil {
			return err
		}
	}

	return nil
}

func insertSnapshot(tx Transaction, s *StatusSnapshot) error {
	result, err := tx.Exec(`
        INSERT INTO status_snapshots
            (timestamp, wan_state, rx_errors, tx_errors, rx_dropped, tx_dropped,
             optical_rx, optical_tx, cpu_temp, pppoe_reconnect_count, wan_down_count)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		s.Timestamp.UTC(),
		s.WANState,
		s.RxErrors,
		s.TxErrors,
		s.RxDropped,
		s.TxDropped,
		nullFloat(s.OpticalRx),
		nullFloat(s.OpticalTx),
		nullFloat(s.CPUTemp),
		s.PPPoEReconnectCount,
		s.WANDownCount,
	)
	if err != nil {
		return fmt.Errorf("%w status snapshot: %w", ErrFailedToInsert, err)
	}

	s.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w status snapshot: %w", ErrFailedToInsert, err)
	}

	return nil
}

func insertPingSample(tx Transaction, p *PingSample) error {
	result, err := tx.Exec(`
        INSERT INTO ping_samples (timestamp, target, rtt, loss)
        VALUES (?, ?, ?, ?)
    `, p.Timestamp.UTC(), p.Target, nullFloat(p.RTT), p.Loss)
	if err != nil {
		return fmt.Errorf("%w ping sample: %w", ErrFailedToInsert, err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w ping sample: %w", ErrFailedToInsert, err)
	}

	return nil
}

func insertEvent(tx Transaction, e *NetworkEvent) error {
	result, err := tx.Exec(`
        INSERT INTO network_events (timestamp, event_time, event_type, message)
        VALUES (?, ?, ?, ?)
    `, e.Timestamp.UTC(), e.EventTime.UTC(), e.EventType, e.Message)
	if err != nil {
		return fmt.Errorf("%w network event: %w", ErrFailedToInsert, err)
	}

	e.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w network event: %w", ErrFailedToInsert, err)
	}

	return nil
}

// nullFloat converts an optional float to its sql representation.
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: *v, Valid: true}
}

// floatPtr converts a scanned nullable float back to an optional field.
func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	f := v.Float64

	return &f
}

// utc normalizes timestamps read back from SQLite.
func utc(t time.Time) time.Time {
	return t.UTC()
}
