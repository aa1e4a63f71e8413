package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/pkg/metrics"
)

const compactLayout = "20060102150405"

// extraLayouts cover forms cast does not know. Single-digit month, day and
// hour are accepted by these layouts as well.
var extraLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"20060102",
}

type Normalizer struct {
	loc *time.Location
}

// NewNormalizer interprets offset-less timestamps in loc (UTC when nil).
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Normalize converts raw broker entries into typed trades. Rows with an
// unparseable timestamp or a zero quantity are dropped with a warning; rows
// whose operation is neither buy nor sell are skipped silently.
func (n *Normalizer) Normalize(raw []domain.RawTrade, log *RunLog) []domain.Trade {
	trades := make([]domain.Trade, 0, len(raw))

	var badTime, otherOp, zeroQty int

	for i, entry := range raw {
		ts, err := n.parseTime(entry[domain.FieldTimestamp])
		if err != nil {
			badTime++
			log.Logger().Debug("dropping record with unparseable timestamp",
				zap.Int("index", i),
				zap.Any("value", entry[domain.FieldTimestamp]))
			continue
		}

		side := domain.Side(toInt(entry[domain.FieldOperation]))
		if side != domain.SideBuy && side != domain.SideSell {
			otherOp++
			continue
		}

		quantity := toDecimal(entry[domain.FieldQuantity]).Abs()
		if quantity.IsZero() {
			zeroQty++
			continue
		}

		trades = append(trades, domain.Trade{
			Seq:        i,
			Account:    toString(entry[domain.FieldAccount]),
			Instrument: toString(entry[domain.FieldInstrument]),
			Time:       ts,
			Side:       side,
			Quantity:   quantity,
			CashFlow:   toDecimal(entry[domain.FieldCashFlow]),
		})
	}

	if badTime > 0 {
		log.Warnf("%d record(s) have an unparseable %s and were ignored", badTime, domain.FieldTimestamp)
	}
	if zeroQty > 0 {
		log.Warnf("%d record(s) have a zero %s and were ignored", zeroQty, domain.FieldQuantity)
	}

	metrics.RecordTradeNormalized("accepted", len(trades))
	metrics.RecordTradeNormalized("bad_timestamp", badTime)
	metrics.RecordTradeNormalized("other_op", otherOp)
	metrics.RecordTradeNormalized("zero_quantity", zeroQty)

	return trades
}

func (n *Normalizer) parseTime(v any) (time.Time, error) {
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.ParseInLocation(compactLayout, s, n.loc); err == nil {
		return t, nil
	}

	if t, err := cast.ToTimeInDefaultLocationE(s, n.loc); err == nil {
		return t.In(n.loc), nil
	}

	for _, layout := range extraLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t.In(n.loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// toDecimal never fails: anything that is not a finite number becomes zero.
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(val)
	case float32:
		return toDecimal(float64(val))
	}

	d, err := decimal.NewFromString(strings.TrimSpace(toString(v)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toInt(v any) int64 {
	return toDecimal(v).IntPart()
}
