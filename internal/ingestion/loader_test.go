package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

type recordingCopier struct {
	table   pgx.Identifier
	columns []string
	rows    [][]interface{}
	calls   int
	failOn  int
}

func (c *recordingCopier) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	c.calls++
	if c.calls == c.failOn {
		return 0, errors.New("copy failed")
	}
	c.table, c.columns = table, columns

	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		c.rows = append(c.rows, values)
		n++
	}
	return n, src.Err()
}

func fills(n int) []domain.Trade {
	ts := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	out := make([]domain.Trade, n)
	for i := range out {
		out[i] = domain.Trade{
			Seq:        i,
			Account:    "acc",
			Instrument: "600000",
			Time:       ts.Add(time.Duration(i) * time.Minute),
			Side:       domain.SideBuy,
			Quantity:   decimal.NewFromInt(100),
			CashFlow:   decimal.RequireFromString("-1234.56"),
		}
	}
	return out
}

func TestBulkLoader_LoadTrades(t *testing.T) {
	dst := &recordingCopier{}
	count, err := NewBulkLoader(2).LoadTrades(context.Background(), dst, fills(5))

	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Equal(t, 3, dst.calls)
	assert.Equal(t, pgx.Identifier{FillsTable}, dst.table)
	assert.Equal(t, fillColumns, dst.columns)

	require.Len(t, dst.rows, 5)
	row := dst.rows[4]
	assert.Equal(t, "acc", row[0])
	assert.Equal(t, int16(domain.SideBuy), row[3])
	assert.Equal(t, int64(4), row[6])

	cash := row[5].(pgtype.Numeric)
	assert.Equal(t, "-1234.56", decimal.NewFromBigInt(cash.Int, cash.Exp).String())
}

func TestBulkLoader_StopsOnError(t *testing.T) {
	dst := &recordingCopier{failOn: 2}
	count, err := NewBulkLoader(2).LoadTrades(context.Background(), dst, fills(5))

	require.Error(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 2, dst.calls)
}
