package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RemovalTarget is one (service, url) pair slated for removal, along
// with the largest response size observed for it — needed to derive
// every ranged cache-key candidate for the URL (§4.9 step 3).
type RemovalTarget struct {
	Service string
	URL     string
	MaxSize int64
}

// TargetsForService returns every (url, max size) pair recorded in
// log_entries for service, grouped so each URL is visited once regardless of how
// many times it was logged (§4.9 step 1, service variant).
func TargetsForService(ctx context.Context, db *sql.DB, service string) ([]RemovalTarget, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT url, MAX(bytes_served) FROM log_entries WHERE service = ? GROUP BY url`, service)
	if err != nil {
		return nil, fmt.Errorf("targets for service: %w", err)
	}
	defer rows.Close()
	var targets []RemovalTarget
	for rows.Next() {
		t := RemovalTarget{Service: service}
		if err := rows.Scan(&t.URL, &t.MaxSize); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// TargetsForGame returns every (service, url, max size) pair whose
// depot id maps to appID, joining the Steam depot mapping table
// (§4.9 step 1, game variant).
func TargetsForGame(ctx context.Context, db *sql.DB, appID int64) ([]RemovalTarget, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT le.service, le.url, MAX(le.bytes_served)
		FROM log_entries le
		JOIN steam_depot_mappings m ON le.depot_id = m.depot_id
		WHERE m.app_id = ?
		GROUP BY le.service, le.url`, appID)
	if err != nil {
		return nil, fmt.Errorf("targets for game: %w", err)
	}
	defer rows.Close()
	var targets []RemovalTarget
	for rows.Next() {
		var t RemovalTarget
		if err := rows.Scan(&t.Service, &t.URL, &t.MaxSize); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// DownloadsForGame returns every Download id attributed to appID, for
// the game-scoped removal variant to prune alongside its log entries.
func DownloadsForGame(ctx context.Context, db *sql.DB, appID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM downloads WHERE game_app_id = ?`, appID)
	if err != nil {
		return nil, fmt.Errorf("downloads for game: %w", err)
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

// DeleteLogEntriesByURLs removes every log entry matching one of urls
// for service, in batches (§4.9 step 5, corruption and game variants
// where no single Download id set cleanly covers the rows).
func DeleteLogEntriesByURLs(ctx context.Context, q querier, service string, urls []string, batchSize int) error {
	if len(urls) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	for start := 0; start < len(urls); start += batchSize {
		end := start + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[start:end]
		placeholders := ""
		args := make([]any, 0, len(chunk)+1)
		args = append(args, service)
		for i, u := range chunk {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, u)
		}
		q2 := fmt.Sprintf(`DELETE FROM log_entries WHERE service = ? AND url IN (%s)`, placeholders)
		if _, err := q.ExecContext(ctx, q2, args...); err != nil {
			return fmt.Errorf("delete log entries by urls: %w", err)
		}
	}
	return nil
}
