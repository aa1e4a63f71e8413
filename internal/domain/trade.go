package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawTrade is one entry of the broker trade list, exactly as decoded from JSON.
type RawTrade map[string]any

const (
	FieldAccount    = "account_name"
	FieldInstrument = "stock_code"
	FieldTimestamp  = "transDateTime"
	FieldCashFlow   = "moneychg"
	FieldQuantity   = "trans_count"
	FieldOperation  = "op"
)

type Side int

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Trade is a normalized fill. Quantity is always positive; CashFlow keeps the
// broker sign (negative for buys, positive for sells).
type Trade struct {
	ID         int64           `db:"id" json:"-"`
	Seq        int             `db:"-" json:"seq"`
	Account    string          `db:"account_name" json:"account_name"`
	Instrument string          `db:"stock_code" json:"stock_code"`
	Time       time.Time       `db:"trans_time" json:"trans_time"`
	Side       Side            `db:"op" json:"op"`
	Quantity   decimal.Decimal `db:"trans_count" json:"quantity"`
	CashFlow   decimal.Decimal `db:"moneychg" json:"moneychg"`
}

func (t Trade) Month() Month {
	return MonthOf(t.Time)
}

type TradeFilter struct {
	Account   string
	StartDate *time.Time
	EndDate   *time.Time
}

// Month is a calendar month, rendered as YYYY-MM.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// GroupKey identifies one reconciliation unit.
type GroupKey struct {
	Account    string
	Instrument string
	Month      Month
}

func (k GroupKey) Less(o GroupKey) bool {
	if k.Account != o.Account {
		return k.Account < o.Account
	}
	if k.Instrument != o.Instrument {
		return k.Instrument < o.Instrument
	}
	return k.Month.Before(o.Month)
}

type TradeGroup struct {
	Key    GroupKey
	Trades []Trade
}
