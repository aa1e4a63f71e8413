package ingestion

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

// FillsTable holds normalized trades synced from the broker.
const FillsTable = "trade_fills"

var fillColumns = []string{
	"account_name",
	"stock_code",
	"trans_time",
	"op",
	"trans_count",
	"moneychg",
	"seq",
}

// Copier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type BulkLoader struct {
	batchSize int
}

func NewBulkLoader(batchSize int) *BulkLoader {
	if batchSize < 1 {
		batchSize = 5000
	}
	return &BulkLoader{batchSize: batchSize}
}

// LoadTrades copies trades into trade_fills in chunks of batchSize. Chunks
// go through dst sequentially so a transaction can be used as dst.
func (l *BulkLoader) LoadTrades(ctx context.Context, dst Copier, trades []domain.Trade) (int64, error) {
	var total int64
	for _, chunk := range l.splitIntoChunks(trades) {
		count, err := dst.CopyFrom(ctx, pgx.Identifier{FillsTable}, fillColumns, &tradeSource{trades: chunk})
		total += count
		if err != nil {
			return total, fmt.Errorf("error in COPY: %w", err)
		}
	}
	return total, nil
}

type tradeSource struct {
	trades []domain.Trade
	index  int
}

func (ts *tradeSource) Next() bool {
	ts.index++
	return ts.index <= len(ts.trades)
}

func (ts *tradeSource) Values() ([]interface{}, error) {
	if ts.index > len(ts.trades) {
		return nil, nil
	}

	trade := ts.trades[ts.index-1]
	return []interface{}{
		trade.Account,
		trade.Instrument,
		trade.Time,
		int16(trade.Side),
		numeric(trade.Quantity),
		numeric(trade.CashFlow),
		int64(trade.Seq),
	}, nil
}

func (ts *tradeSource) Err() error {
	return nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func (l *BulkLoader) splitIntoChunks(trades []domain.Trade) [][]domain.Trade {
	var chunks [][]domain.Trade

	for i := 0; i < len(trades); i += l.batchSize {
		end := i + l.batchSize
		if end > len(trades) {
			end = len(trades)
		}
		chunks = append(chunks, trades[i:end])
	}

	return chunks
}
