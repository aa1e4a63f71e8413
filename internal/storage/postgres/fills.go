package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/pkg/logger"
	"github.com/jeovahfialho/grid-analyzer/pkg/metrics"
)

// LoadFunc writes replacement rows inside the transaction opened by
// ReplaceRange.
type LoadFunc func(ctx context.Context, tx pgx.Tx) (int64, error)

type FillRepository struct {
	db  *DB
	loc *time.Location
}

// NewFillRepository reads trans_time back in loc, the location the
// normalizer parsed it in, so month buckets match a fresh analysis.
func NewFillRepository(db *DB, loc *time.Location) *FillRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &FillRepository{db: db, loc: loc}
}

// ReplaceRange deletes the stored fills in [start, end) and calls load in
// the same transaction, so a re-sync never duplicates rows.
func (r *FillRepository) ReplaceRange(ctx context.Context, start, end time.Time, load LoadFunc) (int64, error) {
	timer := metrics.NewTimer()

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM trade_fills WHERE trans_time >= $1 AND trans_time < $2`, start, end)
	if err != nil {
		metrics.RecordDatabaseQuery("replace_fills", "error", timer.Elapsed().Seconds())
		return 0, fmt.Errorf("error deleting fills: %w", err)
	}

	count, err := load(ctx, tx)
	if err != nil {
		metrics.RecordDatabaseQuery("replace_fills", "error", timer.Elapsed().Seconds())
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing: %w", err)
	}

	metrics.RecordDatabaseQuery("replace_fills", "success", timer.Elapsed().Seconds())
	logger.Debug("fills replaced",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int64("deleted", tag.RowsAffected()),
		zap.Int64("inserted", count))

	return count, nil
}

// ListFills returns stored fills in chronological order. Seq is reassigned
// from that order so the matching tie-break stays deterministic.
func (r *FillRepository) ListFills(ctx context.Context, filter domain.TradeFilter) ([]domain.Trade, error) {
	timer := metrics.NewTimer()

	query, args := buildFillsQuery(filter)
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDatabaseQuery("list_fills", "error", timer.Elapsed().Seconds())
		return nil, fmt.Errorf("error querying fills: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var row fillRow
		if err := rows.Scan(&row.id, &row.account, &row.instrument, &row.transTime, &row.op, &row.qty, &row.cash); err != nil {
			return nil, fmt.Errorf("error scanning fill: %w", err)
		}
		trades = append(trades, row.trade(len(trades), r.loc))
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDatabaseQuery("list_fills", "error", timer.Elapsed().Seconds())
		return nil, fmt.Errorf("error reading fills: %w", err)
	}

	metrics.RecordDatabaseQuery("list_fills", "success", timer.Elapsed().Seconds())
	return trades, nil
}

type fillRow struct {
	id         int64
	account    string
	instrument string
	transTime  time.Time
	op         int16
	qty, cash  pgtype.Numeric
}

// trade converts a scanned row. TIMESTAMPTZ comes back in the session's
// local zone; it is moved into loc before months are derived from it.
func (f fillRow) trade(seq int, loc *time.Location) domain.Trade {
	return domain.Trade{
		ID:         f.id,
		Seq:        seq,
		Account:    f.account,
		Instrument: f.instrument,
		Time:       f.transTime.In(loc),
		Side:       domain.Side(f.op),
		Quantity:   toDecimal(f.qty),
		CashFlow:   toDecimal(f.cash),
	}
}

func buildFillsQuery(filter domain.TradeFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Account != "" {
		args = append(args, filter.Account)
		conds = append(conds, fmt.Sprintf("account_name = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conds = append(conds, fmt.Sprintf("trans_time >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conds = append(conds, fmt.Sprintf("trans_time < $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT id, account_name, stock_code, trans_time, op, trans_count, moneychg FROM trade_fills`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY trans_time, seq, id")

	return b.String(), args
}

func toDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil || n.NaN {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
