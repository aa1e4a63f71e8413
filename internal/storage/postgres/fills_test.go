package postgres

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

func TestBuildFillsQuery(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	tests := []struct {
		name     string
		filter   domain.TradeFilter
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "no filter",
			wantSQL: "SELECT id, account_name, stock_code, trans_time, op, trans_count, moneychg FROM trade_fills ORDER BY trans_time, seq, id",
		},
		{
			name:     "account only",
			filter:   domain.TradeFilter{Account: "acc"},
			wantSQL:  "SELECT id, account_name, stock_code, trans_time, op, trans_count, moneychg FROM trade_fills WHERE account_name = $1 ORDER BY trans_time, seq, id",
			wantArgs: 1,
		},
		{
			name:     "account and range",
			filter:   domain.TradeFilter{Account: "acc", StartDate: &start, EndDate: &end},
			wantSQL:  "SELECT id, account_name, stock_code, trans_time, op, trans_count, moneychg FROM trade_fills WHERE account_name = $1 AND trans_time >= $2 AND trans_time < $3 ORDER BY trans_time, seq, id",
			wantArgs: 3,
		},
		{
			name:     "range only",
			filter:   domain.TradeFilter{StartDate: &start},
			wantSQL:  "SELECT id, account_name, stock_code, trans_time, op, trans_count, moneychg FROM trade_fills WHERE trans_time >= $1 ORDER BY trans_time, seq, id",
			wantArgs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildFillsQuery(tt.filter)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestToDecimal(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(-123456), Exp: -2, Valid: true}
	assert.Equal(t, "-1234.56", toDecimal(n).String())
	assert.True(t, toDecimal(pgtype.Numeric{}).IsZero())
	assert.True(t, toDecimal(pgtype.Numeric{Valid: true, NaN: true}).IsZero())
}

func TestFillRow_MonthFollowsConfiguredLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	parsed := time.Date(2024, 2, 1, 5, 0, 0, 0, shanghai)

	m := pgtype.NewMap()
	buf, err := m.Encode(pgtype.TimestamptzOID, pgtype.BinaryFormatCode, parsed, nil)
	require.NoError(t, err)

	var scanned time.Time
	require.NoError(t, m.Scan(pgtype.TimestamptzOID, pgtype.BinaryFormatCode, buf, &scanned))
	// a server process running in UTC sees the previous day
	scanned = scanned.UTC()
	require.Equal(t, time.January, scanned.Month())

	row := fillRow{
		id:         7,
		account:    "acc",
		instrument: "600000",
		transTime:  scanned,
		op:         1,
		qty:        pgtype.Numeric{Int: big.NewInt(100), Valid: true},
		cash:       pgtype.Numeric{Int: big.NewInt(-100050), Exp: -2, Valid: true},
	}
	trade := row.trade(3, shanghai)

	assert.True(t, parsed.Equal(trade.Time))
	assert.Equal(t, domain.Month{Year: 2024, Month: time.February}, trade.Month())
	assert.Equal(t, 3, trade.Seq)
	assert.Equal(t, int64(7), trade.ID)
	assert.Equal(t, domain.SideBuy, trade.Side)
	assert.Equal(t, "100", trade.Quantity.String())
	assert.Equal(t, "-1000.5", trade.CashFlow.String())
}

func TestNewFillRepository_DefaultsToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewFillRepository(nil, nil).loc)
}
