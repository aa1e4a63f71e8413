package grid

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

func raw(account, code string, ts any, money, count, op any) domain.RawTrade {
	return domain.RawTrade{
		domain.FieldAccount:    account,
		domain.FieldInstrument: code,
		domain.FieldTimestamp:  ts,
		domain.FieldCashFlow:   money,
		domain.FieldQuantity:   count,
		domain.FieldOperation:  op,
	}
}

func TestNormalizer_Timestamps(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	n := NewNormalizer(shanghai)

	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"compact", "20240105093001", time.Date(2024, 1, 5, 9, 30, 1, 0, shanghai)},
		{"compact json number", json.Number("20240105093001"), time.Date(2024, 1, 5, 9, 30, 1, 0, shanghai)},
		{"dashed", "2024-01-05 09:30:01", time.Date(2024, 1, 5, 9, 30, 1, 0, shanghai)},
		{"iso", "2024-01-05T09:30:01", time.Date(2024, 1, 5, 9, 30, 1, 0, shanghai)},
		{"rfc3339 converted", "2024-01-05T01:30:01Z", time.Date(2024, 1, 5, 9, 30, 1, 0, shanghai)},
		{"slashes", "2024/01/05 09:30:01", time.Date(2024, 1, 5, 9, 30, 1, 0, shanghai)},
		{"date only", "2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, shanghai)},
		{"compact date", "20240105", time.Date(2024, 1, 5, 0, 0, 0, 0, shanghai)},
		{"fractional seconds", "2024-01-05 09:30:01.250", time.Date(2024, 1, 5, 9, 30, 1, 250e6, shanghai)},
		{"space offset colon", "2024-01-05 09:30:00+08:00", time.Date(2024, 1, 5, 9, 30, 0, 0, shanghai)},
		{"space offset utc", "2024-01-05 01:30:00+00:00", time.Date(2024, 1, 5, 9, 30, 0, 0, shanghai)},
		{"iso offset no colon", "2024-01-05T09:30:00.123+0800", time.Date(2024, 1, 5, 9, 30, 0, 123e6, shanghai)},
		{"space separated offset", "2024-01-05 09:30:00 +0900", time.Date(2024, 1, 5, 8, 30, 0, 0, shanghai)},
		{"single digit slashes", "2024/1/5 9:30:00", time.Date(2024, 1, 5, 9, 30, 0, 0, shanghai)},
		{"minutes only", "2024-01-05 09:30", time.Date(2024, 1, 5, 9, 30, 0, 0, shanghai)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewRunLog(nil)
			trades := n.Normalize([]domain.RawTrade{raw("a", "600000", tt.in, "-10", "1", "1")}, log)
			require.Len(t, trades, 1)
			assert.True(t, tt.want.Equal(trades[0].Time), "got %s", trades[0].Time)
			assert.Empty(t, log.Entries())
		})
	}
}

func TestNormalizer_DropsUnparseableTimestamps(t *testing.T) {
	log := NewRunLog(nil)
	trades := NewNormalizer(time.UTC).Normalize([]domain.RawTrade{
		raw("a", "600000", "yesterday", "-10", "1", "1"),
		raw("a", "600000", nil, "-10", "1", "1"),
		raw("a", "600000", "20240105093000", "-10", "1", "1"),
	}, log)

	require.Len(t, trades, 1)
	assert.Equal(t, 2, trades[0].Seq)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0], "warning: 2 record(s)"), entries[0])
}

func TestNormalizer_OperationCodes(t *testing.T) {
	log := NewRunLog(nil)
	trades := NewNormalizer(time.UTC).Normalize([]domain.RawTrade{
		raw("a", "1", "20240105093000", "-10", "1", 1),
		raw("a", "2", "20240105093000", "10", "-1", "2"),
		raw("a", "3", "20240105093000", "0", "1", "3"),
		raw("a", "4", "20240105093000", "0", "1", "dividend"),
		raw("a", "5", "20240105093000", "0", "1", nil),
		raw("a", "6", "20240105093000", "-10", "1", json.Number("1.0")),
	}, log)

	require.Len(t, trades, 3)
	assert.Equal(t, domain.SideBuy, trades[0].Side)
	assert.Equal(t, domain.SideSell, trades[1].Side)
	assert.Equal(t, "6", trades[2].Instrument)
	assert.Empty(t, log.Entries(), "unknown operations are skipped silently")
}

func TestNormalizer_NumericCoercion(t *testing.T) {
	log := NewRunLog(nil)
	trades := NewNormalizer(time.UTC).Normalize([]domain.RawTrade{
		raw("a", "600000", "20240105093000", "-1234.56", "-300", "1"),
		raw("a", "600000", "20240105093000", "n/a", json.Number("200"), "2"),
		raw("a", "600000", "20240105093000", 99.5, 100.0, 2),
		raw("a", "600000", "20240105093000", "10", "abc", "2"),
	}, log)

	require.Len(t, trades, 3)

	assertDec(t, "-1234.56", trades[0].CashFlow)
	assertDec(t, "300", trades[0].Quantity)

	assertDec(t, "0", trades[1].CashFlow)
	assertDec(t, "200", trades[1].Quantity)

	assertDec(t, "99.5", trades[2].CashFlow)
	assertDec(t, "100", trades[2].Quantity)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "zero trans_count")
}

func TestNormalizer_MissingFieldsBecomePlaceholders(t *testing.T) {
	log := NewRunLog(nil)
	trades := NewNormalizer(time.UTC).Normalize([]domain.RawTrade{
		{
			domain.FieldTimestamp: "20240105093000",
			domain.FieldQuantity:  "100",
			domain.FieldOperation: "1",
		},
		{
			domain.FieldAccount:    json.Number("8812"),
			domain.FieldInstrument: 600519,
			domain.FieldTimestamp:  "20240105093000",
			domain.FieldQuantity:   "100",
			domain.FieldOperation:  "1",
		},
	}, log)

	require.Len(t, trades, 2)
	assert.Equal(t, "", trades[0].Account)
	assert.Equal(t, "", trades[0].Instrument)
	assert.True(t, trades[0].CashFlow.IsZero())

	assert.Equal(t, "8812", trades[1].Account)
	assert.Equal(t, "600519", trades[1].Instrument)
}
