// Package monitor pkg/monitor/aggregator.go hourly rollup computation.
package monitor

import (
	"fmt"
	"log"
	"time"

	"github.com/mfreeman451/netmon/pkg/db"
)

// RollupHour computes one rollup record for the hour starting at hourStart.
// It is idempotent: an hour that already has a rollup is a no-op, which
// makes the hourly job safe to re-trigger or run concurrently with itself.
// It is also re-runnable manually for backfill.
func (s *Service) RollupHour(hourStart time.Time) error {
	hourStart = hourStart.UTC().Truncate(time.Hour)
	hourEnd := hourStart.Add(time.Hour)

	exists, err := s.store.RollupExists(hourStart)
	if err != nil {
		return fmt.Errorf("failed to check rollup: %w", err)
	}

	if exists {
		log.Printf("Hourly rollup for %s already exists", hourStart.Format(time.RFC3339))
		return nil
	}

	pings, err := s.store.GetPingSamplesBetween(hourStart, hourEnd)
	if err != nil {
		return fmt.Errorf("failed to read ping samples: %w", err)
	}

	snapshots, err := s.store.GetStatusSnapshotsBetween(hourStart, hourEnd)
	if err != nil {
		return fmt.Errorf("failed to read snapshots: %w", err)
	}

	// An hour with no data at all gets no row; a poller outage must not
	// pollute the rollup table with all-null records.
	if len(pings) == 0 && len(snapshots) == 0 {
		log.Printf("No data found for %s, skipping rollup", hourStart.Format(time.RFC3339))
		return nil
	}

	rollup := computeRollup(hourStart, pings, snapshots)

	if err := s.store.InsertHourlyRollup(rollup); err != nil {
		return fmt.Errorf("failed to insert rollup: %w", err)
	}

	log.Printf("Generated hourly rollup for %s", hourStart.Format(time.RFC3339))

	return nil
}

func computeRollup(hour time.Time, pings []db.PingSample, snapshots []db.StatusSnapshot) *db.HourlyRollup {
	rollup := &db.HourlyRollup{Hour: hour}

	// RTT statistics cover completed probes only; samples with no RTT still
	// count toward the loss tally below.
	var rttSum float64

	var rttCount int

	for _, p := range pings {
		if p.Loss > 0 {
			rollup.PacketLossCount++
		}

		if p.RTT == nil {
			continue
		}

		rtt := *p.RTT
		rttSum += rtt
		rttCount++

		if rollup.MaxPingRTT == nil || rtt > *rollup.MaxPingRTT {
			v := rtt
			rollup.MaxPingRTT = &v
		}

		if rollup.MinPingRTT == nil || rtt < *rollup.MinPingRTT {
			v := rtt
			rollup.MinPingRTT = &v
		}
	}

	if rttCount > 0 {
		avg := rttSum / float64(rttCount)
		rollup.AvgPingRTT = &avg
	}

	if len(snapshots) > 0 {
		var pppoeSum, wanDownSum int

		for _, snap := range snapshots {
			pppoeSum += snap.PPPoEReconnectCount
			wanDownSum += snap.WANDownCount
		}

		// Integer-truncated mean of the per-poll rolling counters.
		rollup.PPPoEReconnectCount = pppoeSum / len(snapshots)
		rollup.WANDownCount = wanDownSum / len(snapshots)
	}

	var tempSum float64

	var tempCount int

	for _, snap := range snapshots {
		if snap.CPUTemp == nil {
			continue
		}

		temp := *snap.CPUTemp
		tempSum += temp
		tempCount++

		if rollup.MaxCPUTemp == nil || temp > *rollup.MaxCPUTemp {
			v := temp
			rollup.MaxCPUTemp = &v
		}
	}

	if tempCount > 0 {
		avg := tempSum / float64(tempCount)
		rollup.AvgCPUTemp = &avg
	}

	return rollup
}
