package db

import (
	"fmt"
	"log"
	"time"
)

// DeleteSamplesBefore removes raw ping samples and status snapshots with
// capture time older than cutoff. Network events and hourly rollups are
// permanent history and are never touched here.
func (db *DB) DeleteSamplesBefore(cutoff time.Time) (pingsDeleted, snapshotsDeleted int64, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, 0, err
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

	result, err := tx.Exec(
		"DELETE FROM ping_samples WHERE timestamp < ?",
		cutoff.UTC(),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w ping samples: %w", ErrFailedToClean, err)
	}

	pingsDeleted, _ = result.RowsAffected()

	result, err = tx.Exec(
		"DELETE FROM status_snapshots WHERE timestamp < ?",
		cutoff.UTC(),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w status snapshots: %w", ErrFailedToClean, err)
	}

	snapshotsDeleted, _ = result.RowsAffected()

	return pingsDeleted, snapshotsDeleted, nil
}
