// Package dbadmin implements the maintenance worker (C12, §4.12):
// wiping the database back to empty, taking a timestamped backup
// before a risky write, and importing a legacy DeveLanCacheUI-style
// database into this schema.
package dbadmin

import (
	"context"
	"fmt"

	"github.com/lancache-ops/cache-pipeline/internal/store"
)

// resetBatchSize bounds how many rows one DELETE removes at a time,
// so reset can report incremental progress (§4.12).
const resetBatchSize = 5000

// resetTables lists every table a reset clears, children before
// parents so the un-enforced delete order still reads naturally even
// though foreign keys are off for the duration.
var resetTables = []string{
	"log_entries",
	"stream_sessions",
	"downloads",
	"client_stats",
	"service_stats",
	"steam_depot_mappings",
}

// ResetResult totals one reset run.
type ResetResult struct {
	RowsDeleted map[string]int64
}

// ProgressFunc reports incremental reset progress; table is the table
// currently being cleared, deletedSoFar its running total.
type ProgressFunc func(table string, deletedSoFar int64)

// Reset truncates every table in resetTables, disabling foreign keys
// for the duration (since earlier deletes would otherwise be blocked
// by later tables' references) and VACUUMs afterward to reclaim space
// (§4.12).
func Reset(ctx context.Context, s *store.Store, progress ProgressFunc) (ResetResult, error) {
	result := ResetResult{RowsDeleted: make(map[string]int64)}
	db := s.DB()

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return result, fmt.Errorf("disable foreign keys: %w", err)
	}
	defer db.ExecContext(ctx, "PRAGMA foreign_keys=ON")

	for _, table := range resetTables {
		var total int64
		query := fmt.Sprintf(
			`DELETE FROM %s WHERE rowid IN (SELECT rowid FROM %s LIMIT %d)`, table, table, resetBatchSize)
		for {
			res, err := db.ExecContext(ctx, query)
			if err != nil {
				return result, fmt.Errorf("clear %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return result, fmt.Errorf("rows affected for %s: %w", table, err)
			}
			total += n
			if progress != nil {
				progress(table, total)
			}
			if n == 0 {
				break
			}
		}
		result.RowsDeleted[table] = total
	}

	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return result, fmt.Errorf("vacuum: %w", err)
	}

	return result, nil
}
