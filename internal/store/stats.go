package store

import (
	"context"
	"fmt"
)

// UpsertClientStats adds hit/miss bytes to a client's running totals,
// creating the row on first sight, and optionally increments the
// download counter (§4.5 step 3: incremented only on a new session).
func UpsertClientStats(ctx context.Context, q querier, clientIP, lastActivityUTC, lastActivityLocal string, hitBytes, missBytes int64, incrementDownloads bool) error {
	inc := int64(0)
	if incrementDownloads {
		inc = 1
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO client_stats (client_ip, total_cache_hit_bytes, total_cache_miss_bytes, last_activity_utc, last_activity_local, total_downloads)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_ip) DO UPDATE SET
			total_cache_hit_bytes = total_cache_hit_bytes + excluded.total_cache_hit_bytes,
			total_cache_miss_bytes = total_cache_miss_bytes + excluded.total_cache_miss_bytes,
			last_activity_utc = excluded.last_activity_utc,
			last_activity_local = excluded.last_activity_local,
			total_downloads = total_downloads + excluded.total_downloads`,
		clientIP, hitBytes, missBytes, lastActivityUTC, lastActivityLocal, inc)
	if err != nil {
		return fmt.Errorf("upsert client stats: %w", err)
	}
	return nil
}

// UpsertServiceStats is ClientStats' counterpart keyed by service
// name (§3).
func UpsertServiceStats(ctx context.Context, q querier, service, lastActivityUTC, lastActivityLocal string, hitBytes, missBytes int64, incrementDownloads bool) error {
	inc := int64(0)
	if incrementDownloads {
		inc = 1
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO service_stats (service, total_cache_hit_bytes, total_cache_miss_bytes, last_activity_utc, last_activity_local, total_downloads)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			total_cache_hit_bytes = total_cache_hit_bytes + excluded.total_cache_hit_bytes,
			total_cache_miss_bytes = total_cache_miss_bytes + excluded.total_cache_miss_bytes,
			last_activity_utc = excluded.last_activity_utc,
			last_activity_local = excluded.last_activity_local,
			total_downloads = total_downloads + excluded.total_downloads`,
		service, hitBytes, missBytes, lastActivityUTC, lastActivityLocal, inc)
	if err != nil {
		return fmt.Errorf("upsert service stats: %w", err)
	}
	return nil
}

// GetClientStats looks up one client's totals, for tests and reports.
func GetClientStats(ctx context.Context, q querier, clientIP string) (*ClientStats, error) {
	cs := &ClientStats{}
	err := q.QueryRowContext(ctx,
		`SELECT client_ip, total_cache_hit_bytes, total_cache_miss_bytes, last_activity_utc, last_activity_local, total_downloads
		 FROM client_stats WHERE client_ip = ?`, clientIP).
		Scan(&cs.ClientIP, &cs.TotalCacheHitBytes, &cs.TotalCacheMissBytes, &cs.LastActivityUTC, &cs.LastActivityLocal, &cs.TotalDownloads)
	if err != nil {
		return nil, err
	}
	return cs, nil
}
