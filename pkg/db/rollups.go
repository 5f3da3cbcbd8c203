// Package db pkg/db/rollups.go hourly rollup persistence.
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// RollupExists reports whether a rollup row already exists for the given
// hour-start.
func (db *DB) RollupExists(hour time.Time) (bool, error) {
	const query = `SELECT COUNT(*) FROM hourly_rollups WHERE hour = ?`

	var count int

	err := db.QueryRow(query, hour.UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w rollup existence: %w", ErrFailedToQuery, err)
	}

	return count > 0, nil
}

// InsertHourlyRollup inserts one rollup row for its hour-start. A concurrent
// insert for the same hour is a no-op rather than an error, which keeps the
// hourly job safe to re-trigger.
func (db *DB) InsertHourlyRollup(rollup *HourlyRollup) error {
	const insertSQL = `
		INSERT OR IGNORE INTO hourly_rollups
			(hour, avg_ping_rtt, max_ping_rtt, min_ping_rtt, packet_loss_count,
			 pppoe_reconnect_count, wan_down_count, avg_cpu_temp, max_cpu_temp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.Exec(insertSQL,
		rollup.Hour.UTC(),
		nullFloat(rollup.AvgPingRTT),
		nullFloat(rollup.MaxPingRTT),
		nullFloat(rollup.MinPingRTT),
		rollup.PacketLossCount,
		rollup.PPPoEReconnectCount,
		rollup.WANDownCount,
		nullFloat(rollup.AvgCPUTemp),
		nullFloat(rollup.MaxCPUTemp),
	)
	if err != nil {
		return fmt.Errorf("%w hourly rollup: %w", ErrFailedToInsert, err)
	}

	// A suppressed duplicate inserts nothing; LastInsertId would then
	// report the connection's previous insert.
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		if id, err := result.LastInsertId(); err == nil {
			rollup.ID = id
		}
	}

	return nil
}

// GetPingSamplesBetween returns ping samples with capture time in
// [start, end), oldest first.
func (db *DB) GetPingSamplesBetween(start, end time.Time) ([]PingSample, error) {
	const query = `
        SELECT id, timestamp, target, rtt, loss
        FROM ping_samples
        WHERE timestamp >= ? AND timestamp < ?
        ORDER BY timestamp ASC
    `

	rows, err := db.Query(query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w ping samples: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	return scanPingSamples(rows)
}

// GetStatusSnapshotsBetween returns snapshots with capture time in
// [start, end), oldest first.
func (db *DB) GetStatusSnapshotsBetween(start, end time.Time) ([]StatusSnapshot, error) {
	const query = `
        SELECT id, timestamp, wan_state, rx_errors, tx_errors, rx_dropped, tx_dropped,
               optical_rx, optical_tx, cpu_temp, pppoe_reconnect_count, wan_down_count
        FROM status_snapshots
        WHERE timestamp >= ? AND timestamp < ?
        ORDER BY timestamp ASC
    `

	rows, err := db.Query(query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w status snapshots: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	return scanSnapshots(rows)
}

// GetHourlyRollups returns rollups with hour-start >= since, newest first.
func (db *DB) GetHourlyRollups(since time.Time, limit int) ([]HourlyRollup, error) {
	const query = `
        SELECT id, hour, avg_ping_rtt, max_ping_rtt, min_ping_rtt, packet_loss_count,
               pppoe_reconnect_count, wan_down_count, avg_cpu_temp, max_cpu_temp
        FROM hourly_rollups
        WHERE hour >= ?
        ORDER BY hour DESC
        LIMIT ?
    `

	rows, err := db.Query(query, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("%w hourly rollups: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	rollups := make([]HourlyRollup, 0)

	for rows.Next() {
		var r HourlyRollup

		var avgRTT, maxRTT, minRTT, avgTemp, maxTemp sql.NullFloat64

		if err := rows.Scan(&r.ID, &r.Hour, &avgRTT, &maxRTT, &minRTT, &r.PacketLossCount,
			&r.PPPoEReconnectCount, &r.WANDownCount, &avgTemp, &maxTemp); err != nil {
			return nil, fmt.Errorf("%w rollup row: %w", ErrFailedToScan, err)
		}

		r.Hour = utc(r.Hour)
		r.AvgPingRTT = floatPtr(avgRTT)
		r.MaxPingRTT = floatPtr(maxRTT)
		r.MinPingRTT = floatPtr(minRTT)
		r.AvgCPUTemp = floatPtr(avgTemp)
		r.MaxCPUTemp = floatPtr(maxTemp)

		rollups = append(rollups, r)
	}

	return rollups, nil
}
