package store

import (
	"context"
	"fmt"
	"strings"
)

// batchDeleteByID deletes rows from table whose id is in ids, issuing
// one DELETE per chunk of at most batchSize parameters to stay inside
// SQLite's parameter limit (§4.9 step 5).
func batchDeleteByID(ctx context.Context, q querier, table string, ids []int64, batchSize int) error {
	return batchDeleteByColumn(ctx, q, table, "id", ids, batchSize)
}

func batchDeleteByColumn(ctx context.Context, q querier, table, column string, ids []int64, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, id := range chunk {
			placeholders[i] = "?"
			args[i] = id
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", table, column, strings.Join(placeholders, ","))
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("batch delete from %s: %w", table, err)
		}
	}
	return nil
}
