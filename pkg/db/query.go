// Package db pkg/db/query.go read-side queries over the four tables.
package db

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

func scanSnapshots(rows Rows) ([]StatusSnapshot, error) {
	snapshots := make([]StatusSnapshot, 0)

	for rows.Next() {
		var s StatusSnapshot

		var opticalRx, opticalTx, cpuTemp sql.NullFloat64

		if err := rows.Scan(&s.ID, &s.Timestamp, &s.WANState,
			&s.RxErrors, &s.TxErrors, &s.RxDropped, &s.TxDropped,
			&opticalRx, &opticalTx, &cpuTemp,
			&s.PPPoEReconnectCount, &s.WANDownCount); err != nil {
			return nil, fmt.Errorf("%w snapshot row: %w", ErrFailedToScan, err)
		}

		s.Timestamp = utc(s.Timestamp)
		s.OpticalRx = floatPtr(opticalRx)
		s.OpticalTx = floatPtr(opticalTx)
		s.CPUTemp = floatPtr(cpuTemp)

		snapshots = append(snapshots, s)
	}

	return snapshots, nil
}

func scanPingSamples(rows Rows) ([]PingSample, error) {
	samples := make([]PingSample, 0)

	for rows.Next() {
		var p PingSample

		var rtt sql.NullFloat64

		if err := rows.Scan(&p.ID, &p.Timestamp, &p.Target, &rtt, &p.Loss); err != nil {
			return nil, fmt.Errorf("%w ping row: %w", ErrFailedToScan, err)
		}

		p.Timestamp = utc(p.Timestamp)
		p.RTT = floatPtr(rtt)

		samples = append(samples, p)
	}

	return samples, nil
}

func scanEvents(rows Rows) ([]NetworkEvent, error) {
	events := make([]NetworkEvent, 0)

	for rows.Next() {
		var e NetworkEvent

		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventTime, &e.EventType, &e.Message); err != nil {
			return nil, fmt.Errorf("%w event row: %w", ErrFailedToScan, err)
		}

		e.Timestamp = utc(e.Timestamp)
		e.EventTime = utc(e.EventTime)

		events = append(events, e)
	}

	return events, nil
}

// CountStatusSnapshots returns the number of snapshots captured since the
// given time.
func (db *DB) CountStatusSnapshots(since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM status_snapshots WHERE timestamp >= ?`

	var count int

	if err := db.QueryRow(query, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w snapshot count: %w", ErrFailedToQuery, err)
	}

	return count, nil
}

// GetStatusHistory returns a page of snapshots captured since the given
// time, newest first.
func (db *DB) GetStatusHistory(since time.Time, offset, limit int) ([]StatusSnapshot, error) {
	const query = `
        SELECT id, timestamp, wan_state, rx_errors, tx_errors, rx_dropped, tx_dropped,
               optical_rx, optical_tx, cpu_temp, pppoe_reconnect_count, wan_down_count
        FROM status_snapshots
        WHERE timestamp >= ?
        ORDER BY timestamp DESC
        LIMIT ? OFFSET ?
    `

	rows, err := db.Query(query, since.UTC(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w status history: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	return scanSnapshots(rows)
}

// GetPingHistory returns recent ping samples since the given time, newest
// first. An empty target matches all targets.
func (db *DB) GetPingHistory(since time.Time, target string, limit int) ([]PingSample, error) {
	query := `
        SELECT id, timestamp, target, rtt, loss
        FROM ping_samples
        WHERE timestamp >= ?
    `
	args := []interface{}{since.UTC()}

	if target != "" {
		query += ` AND target = ?`
		args = append(args, target)
	}

	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w ping history: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	return scanPingSamples(rows)
}

// GetEvents returns the most recent events regardless of age, newest first.
// An empty eventType matches all types.
func (db *DB) GetEvents(limit int, eventType string) ([]NetworkEvent, error) {
	query := `
        SELECT id, timestamp, event_time, event_type, message
        FROM network_events
    `
	args := []interface{}{}

	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}

	query += ` ORDER BY event_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w events: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	return scanEvents(rows)
}

// GetEventsSince returns the most recent events whose event time falls after
// the given time, newest first.
func (db *DB) GetEventsSince(since time.Time, limit int) ([]NetworkEvent, error) {
	const query = `
        SELECT id, timestamp, event_time, event_type, message
        FROM network_events
        WHERE event_time >= ?
        ORDER BY event_time DESC
        LIMIT ?
    `

	rows, err := db.Query(query, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("%w events: %w", ErrFailedToQuery, err)
	}
	defer CloseRows(rows)

	return scanEvents(rows)
}

// GetSummaryStats derives the summary view over the window starting at
// since: WAN availability, packet loss rate, mean CPU temperature and the
// pppoe/wan event counts.
func (db *DB) GetSummaryStats(since time.Time) (*SummaryStats, error) {
	cutoff := since.UTC()
	stats := &SummaryStats{}

	var totalPing, lossPing, wanUp int

	if err := db.QueryRow(
		`SELECT COUNT(*) FROM ping_samples WHERE timestamp >= ?`, cutoff,
	).Scan(&totalPing); err != nil {
		return nil, fmt.Errorf("%w ping count: %w", ErrFailedToQuery, err)
	}

	if err := db.QueryRow(
		`SELECT COUNT(*) FROM ping_samples WHERE timestamp >= ? AND loss > 0`, cutoff,
	).Scan(&lossPing); err != nil {
		return nil, fmt.Errorf("%w loss count: %w", ErrFailedToQuery, err)
	}

	if err := db.QueryRow(
		`SELECT COUNT(*) FROM status_snapshots WHERE timestamp >= ? AND wan_state = 'up'`, cutoff,
	).Scan(&wanUp); err != nil {
		return nil, fmt.Errorf("%w wan up count: %w", ErrFailedToQuery, err)
	}

	if err := db.QueryRow(
		`SELECT COUNT(*) FROM status_snapshots WHERE timestamp >= ?`, cutoff,
	).Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("%w snapshot count: %w", ErrFailedToQuery, err)
	}

	var avgTemp sql.NullFloat64

	if err := db.QueryRow(
		`SELECT AVG(cpu_temp) FROM status_snapshots WHERE timestamp >= ? AND cpu_temp IS NOT NULL`, cutoff,
	).Scan(&avgTemp); err != nil {
		return nil, fmt.Errorf("%w avg temp: %w", ErrFailedToQuery, err)
	}

	if err := db.QueryRow(
		`SELECT COUNT(*) FROM network_events WHERE event_time >= ? AND event_type LIKE 'pppoe%'`, cutoff,
	).Scan(&stats.PPPoEEvents); err != nil {
		return nil, fmt.Errorf("%w pppoe events: %w", ErrFailedToQuery, err)
	}

	if err := db.QueryRow(
		`SELECT COUNT(*) FROM network_events WHERE event_time >= ? AND event_type LIKE '%wan%'`, cutoff,
	).Scan(&stats.WANEvents); err != nil {
		return nil, fmt.Errorf("%w wan events: %w", ErrFailedToQuery, err)
	}

	if stats.TotalRecords > 0 {
		stats.WANAvailability = float64(wanUp) / float64(stats.TotalRecords) * 100
	}

	if totalPing > 0 {
		stats.PacketLossRate = float64(lossPing) / float64(totalPing) * 100
	}

	// Mean temperature is reported to one decimal, nil when no snapshot
	// carried a reading.
	if avgTemp.Valid {
		rounded := math.Round(avgTemp.Float64*10) / 10
		stats.AvgCPUTemp = &rounded
	}

	return stats, nil
}
