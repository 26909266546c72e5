package dbadmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
	"github.com/lancache-ops/cache-pipeline/internal/store"
)

// importBatchSize bounds how many source rows are read and committed
// per transaction (§4.12).
const importBatchSize = 1000

// legacyTimeLayout matches DeveLanCacheUI's CreatedAt/LastUpdatedAt
// column format: a naive UTC timestamp with optional fractional
// seconds.
const legacyTimeLayout = "2006-01-02 15:04:05"

// ImportResult totals one legacy-database import run.
type ImportResult struct {
	RecordsProcessed int64
	RecordsImported  int64
	RecordsSkipped   int64
	RecordsErrors    int64
	BackupPath       string
}

// ImportProgressFunc reports incremental import progress.
type ImportProgressFunc func(result ImportResult)

// ImportDeveLanCacheUI imports every row of a legacy DeveLanCacheUI
// DownloadEvents table into this schema's downloads table, taking a
// backup of the target database first. Existing rows sharing
// (client_ip, start_time_utc) are skipped unless overwrite is set
// (§4.12).
func ImportDeveLanCacheUI(ctx context.Context, s *store.Store, targetDBPath, sourceDBPath string, overwrite bool, loc *time.Location, progress ImportProgressFunc) (ImportResult, error) {
	var result ImportResult

	backupPath, err := Backup(targetDBPath)
	if err != nil {
		return result, err
	}
	result.BackupPath = backupPath

	src, err := sql.Open("sqlite", "file:"+sourceDBPath+"?mode=ro")
	if err != nil {
		return result, fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	var tableExists int
	if err := src.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='DownloadEvents'`).Scan(&tableExists); err != nil {
		return result, fmt.Errorf("check source schema: %w", err)
	}
	if tableExists == 0 {
		return result, fmt.Errorf("DownloadEvents table not found in source database")
	}

	rows, err := src.QueryContext(ctx, `
		SELECT CacheIdentifier, DownloadIdentifier, ClientIp, CreatedAt, LastUpdatedAt, CacheHitBytes, CacheMissBytes
		FROM DownloadEvents ORDER BY CreatedAt`)
	if err != nil {
		return result, fmt.Errorf("query source rows: %w", err)
	}
	defer rows.Close()

	var batch []legacyRecord
	for rows.Next() {
		var (
			service       string
			depotOrAppRaw sql.NullInt64
			clientIP      string
			createdAt     string
			lastUpdatedAt string
			hitBytes      int64
			missBytes     int64
		)
		if err := rows.Scan(&service, &depotOrAppRaw, &clientIP, &createdAt, &lastUpdatedAt, &hitBytes, &missBytes); err != nil {
			result.RecordsErrors++
			continue
		}

		rec, err := toLegacyRecord(service, depotOrAppRaw, clientIP, createdAt, lastUpdatedAt, hitBytes, missBytes, loc)
		if err != nil {
			result.RecordsErrors++
			continue
		}
		batch = append(batch, rec)
		result.RecordsProcessed++

		if len(batch) >= importBatchSize {
			if err := importBatch(ctx, s, batch, overwrite, &result); err != nil {
				return result, err
			}
			batch = batch[:0]
			if progress != nil {
				progress(result)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate source rows: %w", err)
	}

	if len(batch) > 0 {
		if err := importBatch(ctx, s, batch, overwrite, &result); err != nil {
			return result, err
		}
	}
	if progress != nil {
		progress(result)
	}

	return result, nil
}

type legacyRecord struct {
	service        string
	clientIP       string
	startUTC       string
	endUTC         string
	startLocal     string
	endLocal       string
	hitBytes       int64
	missBytes      int64
	depotID        *int64
	gameAppID      *int64
}

func toLegacyRecord(service string, depotOrApp sql.NullInt64, clientIP, createdAt, lastUpdatedAt string, hitBytes, missBytes int64, loc *time.Location) (legacyRecord, error) {
	created, err := time.Parse(legacyTimeLayout, truncateFraction(createdAt))
	if err != nil {
		return legacyRecord{}, fmt.Errorf("parse CreatedAt: %w", err)
	}
	updated, err := time.Parse(legacyTimeLayout, truncateFraction(lastUpdatedAt))
	if err != nil {
		return legacyRecord{}, fmt.Errorf("parse LastUpdatedAt: %w", err)
	}
	created = created.UTC()
	updated = updated.UTC()

	rec := legacyRecord{
		service:    strings.ToLower(service),
		clientIP:   clientIP,
		startUTC:   pipeutil.FormatUTC(created),
		endUTC:     pipeutil.FormatUTC(updated),
		startLocal: pipeutil.UTCToLocal(created, loc),
		endLocal:   pipeutil.UTCToLocal(updated, loc),
		hitBytes:   hitBytes,
		missBytes:  missBytes,
	}

	if depotOrApp.Valid {
		id := depotOrApp.Int64
		if rec.service == "steam" {
			rec.depotID = &id
		} else {
			rec.gameAppID = &id
		}
	}
	return rec, nil
}

// truncateFraction drops a trailing ".ffffff" fractional-seconds
// suffix, which legacyTimeLayout doesn't model.
func truncateFraction(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

func importBatch(ctx context.Context, s *store.Store, batch []legacyRecord, overwrite bool, result *ImportResult) error {
	tx, err := s.BeginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("begin import batch: %w", err)
	}

	for _, rec := range batch {
		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM downloads WHERE client_ip = ? AND start_time_utc = ?`, rec.clientIP, rec.startUTC).Scan(&existingID)
		exists := err == nil
		if err != nil && err != sql.ErrNoRows {
			tx.Rollback(ctx)
			return fmt.Errorf("check existing download: %w", err)
		}

		if exists && !overwrite {
			result.RecordsSkipped++
			continue
		}

		if exists {
			_, err = tx.ExecContext(ctx, `
				UPDATE downloads SET end_time_utc=?, end_time_local=?, cache_hit_bytes=?, cache_miss_bytes=?, depot_id=?, game_app_id=?
				WHERE id = ?`,
				rec.endUTC, rec.endLocal, rec.hitBytes, rec.missBytes, rec.depotID, rec.gameAppID, existingID)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO downloads (service, client_ip, start_time_utc, end_time_utc, start_time_local, end_time_local, cache_hit_bytes, cache_miss_bytes, is_active, last_url, depot_id, game_app_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)`,
				rec.service, rec.clientIP, rec.startUTC, rec.endUTC, rec.startLocal, rec.endLocal, rec.hitBytes, rec.missBytes, rec.depotID, rec.gameAppID)
		}
		if err != nil {
			result.RecordsErrors++
			continue
		}
		result.RecordsImported++
	}

	return tx.Commit(ctx)
}
