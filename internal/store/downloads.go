package store

import (
	"context"
	"database/sql"
	"fmt"
)

// querier is satisfied by both *sql.DB (read paths) and *ImmediateTx
// (the single write path used by the ingest aggregator, §4.5), so
// every query function below works unchanged in either context.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CloseActiveDownloads flips every active Download for (clientIP,
// service) to inactive. Called before inserting a new Download so
// that "mark prior active inactive" happens strictly before "insert
// new" (§3 lifecycle, §9 open question b).
func CloseActiveDownloads(ctx context.Context, q querier, clientIP, service string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE downloads SET is_active = 0 WHERE client_ip = ? AND service = ? AND is_active = 1`,
		clientIP, service)
	if err != nil {
		return fmt.Errorf("close active downloads: %w", err)
	}
	return nil
}

// InsertDownload creates a new Download row and returns its id.
func InsertDownload(ctx context.Context, q querier, d *Download) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO downloads
			(service, client_ip, start_time_utc, end_time_utc, start_time_local, end_time_local,
			 cache_hit_bytes, cache_miss_bytes, is_active, last_url, depot_id, game_app_id, game_name, game_image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)`,
		d.Service, d.ClientIP, d.StartTimeUTC, d.EndTimeUTC, d.StartTimeLocal, d.EndTimeLocal,
		d.CacheHitBytes, d.CacheMissBytes, d.LastURL, d.DepotID, d.GameAppID, d.GameName, d.GameImageURL)
	if err != nil {
		return 0, fmt.Errorf("insert download: %w", err)
	}
	return res.LastInsertId()
}

// FindActiveDownload locates the active Download for (clientIP,
// service, depotID) with NULL-aware depot matching (§4.5 step 3,
// "continue" branch).
func FindActiveDownload(ctx context.Context, q querier, clientIP, service string, depotID *int64) (*Download, error) {
	var query string
	args := []any{clientIP, service}
	if depotID == nil {
		query = `SELECT id, service, client_ip, start_time_utc, end_time_utc, start_time_local, end_time_local,
			cache_hit_bytes, cache_miss_bytes, is_active, last_url, depot_id, game_app_id, game_name, game_image_url
			FROM downloads WHERE client_ip = ? AND service = ? AND is_active = 1 AND depot_id IS NULL
			ORDER BY id DESC LIMIT 1`
	} else {
		query = `SELECT id, service, client_ip, start_time_utc, end_time_utc, start_time_local, end_time_local,
			cache_hit_bytes, cache_miss_bytes, is_active, last_url, depot_id, game_app_id, game_name, game_image_url
			FROM downloads WHERE client_ip = ? AND service = ? AND is_active = 1 AND depot_id = ?
			ORDER BY id DESC LIMIT 1`
		args = append(args, *depotID)
	}
	row := q.QueryRowContext(ctx, query, args...)
	d, err := scanDownload(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active download: %w", err)
	}
	return d, nil
}

// ExtendDownload updates an ongoing Download's end time, last URL,
// and byte counters (§4.5 step 3, "continue" branch). Bytes are
// additive, never reassigned, preserving the monotonic invariant.
func ExtendDownload(ctx context.Context, q querier, id int64, endUTC, endLocal, lastURL string, hitBytes, missBytes int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE downloads
		SET end_time_utc = ?, end_time_local = ?, last_url = ?,
		    cache_hit_bytes = cache_hit_bytes + ?, cache_miss_bytes = cache_miss_bytes + ?
		WHERE id = ?`,
		endUTC, endLocal, lastURL, hitBytes, missBytes, id)
	if err != nil {
		return fmt.Errorf("extend download: %w", err)
	}
	return nil
}

// AnnotateGame sets the resolved app id/name on a Download (§4.5
// step 4).
func AnnotateGame(ctx context.Context, q querier, id, appID int64, appName string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE downloads SET game_app_id = ?, game_name = ? WHERE id = ?`, appID, appName, id)
	if err != nil {
		return fmt.Errorf("annotate game: %w", err)
	}
	return nil
}

func scanDownload(row *sql.Row) (*Download, error) {
	d := &Download{}
	err := row.Scan(&d.ID, &d.Service, &d.ClientIP, &d.StartTimeUTC, &d.EndTimeUTC, &d.StartTimeLocal, &d.EndTimeLocal,
		&d.CacheHitBytes, &d.CacheMissBytes, &d.IsActive, &d.LastURL, &d.DepotID, &d.GameAppID, &d.GameName, &d.GameImageURL)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DownloadsByService returns every Download id for service, used by
// service-scoped removal (§4.9 step 5).
func DownloadsByService(ctx context.Context, q querier, service string) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM downloads WHERE service = ?`, service)
	if err != nil {
		return nil, fmt.Errorf("downloads by service: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDownloads removes Downloads by id in batches of at most
// batchSize parameters (§4.9 step 5).
func DeleteDownloads(ctx context.Context, q querier, ids []int64, batchSize int) error {
	return batchDeleteByID(ctx, q, "downloads", ids, batchSize)
}
