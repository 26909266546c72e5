package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ResolveOwnedApp looks up the owning app for a depot id, restricted
// to is_owner=1 rows (§3, §4.5 step 4). Returns (0, "", false) when no
// owner row exists.
func ResolveOwnedApp(ctx context.Context, q querier, depotID int64) (appID int64, appName string, ok bool, err error) {
	row := q.QueryRowContext(ctx,
		`SELECT app_id, app_name FROM steam_depot_mappings WHERE depot_id = ? AND is_owner = 1 LIMIT 1`, depotID)
	err = row.Scan(&appID, &appName)
	if err == sql.ErrNoRows {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, fmt.Errorf("resolve owned app: %w", err)
	}
	return appID, appName, true, nil
}
