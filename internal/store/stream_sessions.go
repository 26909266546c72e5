package store

import (
	"context"
	"fmt"
)

// InsertStreamSession inserts a StreamSession row, relying on the
// unique index over the duplicate-suppression tuple (§3) to make a
// conflicting insert a no-op rather than an error.
func InsertStreamSession(ctx context.Context, q querier, s *StreamSession) (inserted bool, err error) {
	res, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO stream_sessions
			(client_ip, protocol, status, bytes_sent, bytes_received, duration_seconds, upstream_host, start_time_utc, end_time_utc, datasource)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ClientIP, s.Protocol, s.Status, s.BytesSent, s.BytesReceived, s.DurationSecs, s.UpstreamHost, s.StartTimeUTC, s.EndTimeUTC, s.Datasource)
	if err != nil {
		return false, fmt.Errorf("insert stream session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert stream session rows affected: %w", err)
	}
	return n > 0, nil
}
