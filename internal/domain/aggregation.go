package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchedPair is one sell quantity matched against part of an earlier buy.
type MatchedPair struct {
	Account    string          `json:"account_name"`
	Instrument string          `json:"stock_code"`
	Month      Month           `json:"month"`
	BuyTime    time.Time       `json:"buy_datetime"`
	SellTime   time.Time       `json:"sell_datetime"`
	Quantity   decimal.Decimal `json:"matched_quantity"`
	BuyCash    decimal.Decimal `json:"buy_moneychg"`
	SellCash   decimal.Decimal `json:"sell_moneychg"`
	Profit     decimal.Decimal `json:"profit"`
}

// GroupResult is the matching output of a single TradeGroup.
type GroupResult struct {
	Key         GroupKey
	TotalProfit decimal.Decimal
	Pairs       []MatchedPair
}

type GroupSummary struct {
	Account     string          `json:"account_name"`
	Instrument  string          `json:"stock_code"`
	Month       Month           `json:"month"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	PairCount   int             `json:"trade_pair_count"`
}

type AccountMonthSummary struct {
	Account            string          `json:"account_name"`
	Month              Month           `json:"month"`
	MonthlyTotalProfit decimal.Decimal `json:"monthly_total_profit"`
}

type StockSummary struct {
	Account          string          `json:"account_name"`
	Month            Month           `json:"month"`
	Instrument       string          `json:"stock_code"`
	Name             string          `json:"stock_name,omitempty"`
	StockTotalProfit decimal.Decimal `json:"stock_total_profit"`
}

type StockDetailSummary struct {
	Account     string          `json:"account_name"`
	Month       Month           `json:"month"`
	Instrument  string          `json:"stock_code"`
	Name        string          `json:"stock_name,omitempty"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	PairCount   int             `json:"trade_pair_count"`
}

// PairDetail is the presentation row of a MatchedPair; Profit is rounded.
type PairDetail struct {
	Account    string          `json:"account_name"`
	Month      Month           `json:"month"`
	Instrument string          `json:"stock_code"`
	Name       string          `json:"stock_name,omitempty"`
	BuyTime    time.Time       `json:"buy_datetime"`
	SellTime   time.Time       `json:"sell_datetime"`
	Quantity   decimal.Decimal `json:"matched_quantity"`
	BuyCash    decimal.Decimal `json:"buy_moneychg"`
	SellCash   decimal.Decimal `json:"sell_moneychg"`
	Profit     decimal.Decimal `json:"profit"`
}

// Report is everything a single analysis run hands to its consumers.
type Report struct {
	RunID         string                `json:"run_id"`
	GeneratedAt   time.Time             `json:"generated_at"`
	AccountMonths []AccountMonthSummary `json:"account_month_summary"`
	Stocks        []StockSummary        `json:"stock_summary"`
	StockDetails  []StockDetailSummary  `json:"stock_detail_summary"`
	Pairs         []PairDetail          `json:"pair_details"`
	Groups        []GroupSummary        `json:"groups"`
	HasNames      bool                  `json:"has_names"`
	Logs          []string              `json:"logs"`
}

func (r *Report) Empty() bool {
	return len(r.AccountMonths) == 0 && len(r.Stocks) == 0 &&
		len(r.StockDetails) == 0 && len(r.Pairs) == 0
}
