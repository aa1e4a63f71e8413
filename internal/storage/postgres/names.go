package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jeovahfialho/grid-analyzer/pkg/metrics"
)

type NameRepository struct {
	db *DB
}

func NewNameRepository(db *DB) *NameRepository {
	return &NameRepository{db: db}
}

// Upsert stores every mapping entry in a single batch.
func (r *NameRepository) Upsert(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	timer := metrics.NewTimer()

	batch := &pgx.Batch{}
	for code, name := range names {
		batch.Queue(`INSERT INTO instrument_names (stock_code, name, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (stock_code) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`, code, name)
	}

	if err := r.db.pool.SendBatch(ctx, batch).Close(); err != nil {
		metrics.RecordDatabaseQuery("upsert_names", "error", timer.Elapsed().Seconds())
		return fmt.Errorf("error upserting names: %w", err)
	}

	metrics.RecordDatabaseQuery("upsert_names", "success", timer.Elapsed().Seconds())
	return nil
}

func (r *NameRepository) All(ctx context.Context) (map[string]string, error) {
	timer := metrics.NewTimer()

	rows, err := r.db.pool.Query(ctx, `SELECT stock_code, name FROM instrument_names`)
	if err != nil {
		metrics.RecordDatabaseQuery("list_names", "error", timer.Elapsed().Seconds())
		return nil, fmt.Errorf("error querying names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("error scanning name: %w", err)
		}
		names[code] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	metrics.RecordDatabaseQuery("list_names", "success", timer.Elapsed().Seconds())
	return names, nil
}
