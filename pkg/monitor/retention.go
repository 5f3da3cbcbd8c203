// Package monitor pkg/monitor/retention.go rolling retention over raw samples.
package monitor

import (
	"fmt"
	"log"
	"time"
)

// Prune deletes raw ping samples and status snapshots older than the
// retention horizon. Events and rollups are permanent history and are never
// pruned. A failure is logged by the scheduler and retried on the next
// daily trigger.
func (s *Service) Prune(now time.Time) error {
	cutoff := now.UTC().Add(-time.Duration(s.retentionDays) * 24 * time.Hour)

	pings, snapshots, err := s.store.DeleteSamplesBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune old data: %w", err)
	}

	log.Printf("Cleaned up %d ping records and %d status records", pings, snapshots)

	return nil
}
