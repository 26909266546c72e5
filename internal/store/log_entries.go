package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DuplicateExists probes the 5-tuple duplicate predicate of §3/§4.5
// step 1: (client_ip, service, timestamp, url, bytes).
func DuplicateExists(ctx context.Context, q querier, clientIP, service, timestampUTC, url string, bytes int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM log_entries WHERE client_ip = ? AND service = ? AND timestamp_utc = ? AND url = ? AND bytes_served = ?`,
		clientIP, service, timestampUTC, url, bytes).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return n > 0, nil
}

// InsertLogEntry inserts one raw entry row attributed to downloadID
// (§4.5 step 5). The unique index on the 5-tuple rejects a second copy
// of the same entry: if another writer stored the same line between
// the probe and the insert, the constraint violation is returned as a
// wrapped error.
func InsertLogEntry(ctx context.Context, q querier, e *LogEntry, downloadID int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO log_entries (timestamp_utc, client_ip, service, method, url, status_code, bytes_served, cache_status, depot_id, download_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TimestampUTC, e.ClientIP, e.Service, e.Method, e.URL, e.StatusCode, e.BytesServed, e.CacheStatus, e.DepotID, downloadID)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// LogEntryURLsForService returns every distinct URL recorded in
// log_entries for a service. Service-scoped removal builds its target
// set with TargetsForService, not with this function.
func LogEntryURLsForService(ctx context.Context, db *sql.DB, service string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT url FROM log_entries WHERE service = ?`, service)
	if err != nil {
		return nil, fmt.Errorf("log entry urls for service: %w", err)
	}
	defer rows.Close()
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// DeleteLogEntriesByDownloadIDs removes child log entries ahead of
// their parent Downloads (§4.9 step 5, FK ordering).
func DeleteLogEntriesByDownloadIDs(ctx context.Context, q querier, ids []int64, batchSize int) error {
	return batchDeleteByColumn(ctx, q, "log_entries", "download_id", ids, batchSize)
}

// DeleteLogEntriesByService removes every log entry for a service,
// used when the caller already knows there are no surviving Downloads
// to cascade from (corruption-scoped and game-scoped removal operate
// on URLs instead; this path is the service-scoped shortcut).
func DeleteLogEntriesByService(ctx context.Context, q querier, service string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM log_entries WHERE service = ?`, service)
	if err != nil {
		return fmt.Errorf("delete log entries by service: %w", err)
	}
	return nil
}
