package grid

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

// MoneyPlaces is the precision of every presented profit figure.
const MoneyPlaces = 2

type Tables struct {
	Groups        []domain.GroupSummary
	AccountMonths []domain.AccountMonthSummary
	Stocks        []domain.StockSummary
	StockDetails  []domain.StockDetailSummary
	Pairs         []domain.PairDetail
	HasNames      bool
}

type accountMonth struct {
	account string
	month   domain.Month
}

// Aggregate rolls group results up into the presentation tables. Sums are
// taken over unrounded values and rounded once. names is optional; when it
// is empty no row carries a name.
func Aggregate(results []domain.GroupResult, names map[string]string) Tables {
	tables := Tables{
		Groups:        []domain.GroupSummary{},
		AccountMonths: []domain.AccountMonthSummary{},
		Stocks:        []domain.StockSummary{},
		StockDetails:  []domain.StockDetailSummary{},
		Pairs:         []domain.PairDetail{},
		HasNames:      len(names) > 0,
	}

	nameOf := func(code string) string {
		if !tables.HasNames {
			return ""
		}
		if name, ok := names[code]; ok {
			return name
		}
		return code
	}

	monthly := make(map[accountMonth]decimal.Decimal)

	for _, r := range results {
		tables.Groups = append(tables.Groups, domain.GroupSummary{
			Account:     r.Key.Account,
			Instrument:  r.Key.Instrument,
			Month:       r.Key.Month,
			TotalProfit: r.TotalProfit,
			PairCount:   len(r.Pairs),
		})

		am := accountMonth{account: r.Key.Account, month: r.Key.Month}
		monthly[am] = monthly[am].Add(r.TotalProfit)

		rounded := Round(r.TotalProfit)
		if !rounded.IsZero() {
			tables.Stocks = append(tables.Stocks, domain.StockSummary{
				Account:          r.Key.Account,
				Month:            r.Key.Month,
				Instrument:       r.Key.Instrument,
				Name:             nameOf(r.Key.Instrument),
				StockTotalProfit: rounded,
			})
			tables.StockDetails = append(tables.StockDetails, domain.StockDetailSummary{
				Account:     r.Key.Account,
				Month:       r.Key.Month,
				Instrument:  r.Key.Instrument,
				Name:        nameOf(r.Key.Instrument),
				TotalProfit: rounded,
				PairCount:   len(r.Pairs),
			})
		}

		for _, p := range r.Pairs {
			tables.Pairs = append(tables.Pairs, domain.PairDetail{
				Account:    p.Account,
				Month:      p.Month,
				Instrument: p.Instrument,
				Name:       nameOf(p.Instrument),
				BuyTime:    p.BuyTime,
				SellTime:   p.SellTime,
				Quantity:   p.Quantity,
				BuyCash:    p.BuyCash,
				SellCash:   p.SellCash,
				Profit:     Round(p.Profit),
			})
		}
	}

	for am, total := range monthly {
		tables.AccountMonths = append(tables.AccountMonths, domain.AccountMonthSummary{
			Account:            am.account,
			Month:              am.month,
			MonthlyTotalProfit: Round(total),
		})
	}

	sort.Slice(tables.AccountMonths, func(i, j int) bool {
		a, b := tables.AccountMonths[i], tables.AccountMonths[j]
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		return a.Month.Before(b.Month)
	})
	sort.SliceStable(tables.Stocks, func(i, j int) bool {
		a, b := tables.Stocks[i], tables.Stocks[j]
		return rowLess(a.Account, a.Month, a.Instrument, b.Account, b.Month, b.Instrument)
	})
	sort.SliceStable(tables.StockDetails, func(i, j int) bool {
		a, b := tables.StockDetails[i], tables.StockDetails[j]
		return rowLess(a.Account, a.Month, a.Instrument, b.Account, b.Month, b.Instrument)
	})
	sort.SliceStable(tables.Pairs, func(i, j int) bool {
		a, b := tables.Pairs[i], tables.Pairs[j]
		if a.Account != b.Account || a.Month != b.Month || a.Instrument != b.Instrument {
			return rowLess(a.Account, a.Month, a.Instrument, b.Account, b.Month, b.Instrument)
		}
		if !a.SellTime.Equal(b.SellTime) {
			return a.SellTime.Before(b.SellTime)
		}
		return a.BuyTime.After(b.BuyTime)
	})

	return tables
}

// Round applies the presentation rounding (half to even, like the pandas
// based reports this tool replaces).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(MoneyPlaces)
}

func rowLess(accA string, monA domain.Month, insA string, accB string, monB domain.Month, insB string) bool {
	if accA != accB {
		return accA < accB
	}
	if monA != monB {
		return monA.Before(monB)
	}
	return insA < insB
}

// StockFilter narrows the instrument summary the way the report views do.
type StockFilter struct {
	Account string
	Month   *domain.Month
	// Ascending orders profit low to high inside each account and month.
	Ascending bool
}

func FilterStocks(rows []domain.StockSummary, f StockFilter) []domain.StockSummary {
	out := make([]domain.StockSummary, 0, len(rows))
	for _, r := range rows {
		if f.Account != "" && r.Account != f.Account {
			continue
		}
		if f.Month != nil && r.Month != *f.Month {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		if a.Month != b.Month {
			return a.Month.Before(b.Month)
		}
		if f.Ascending {
			return a.StockTotalProfit.LessThan(b.StockTotalProfit)
		}
		return a.StockTotalProfit.GreaterThan(b.StockTotalProfit)
	})

	return out
}
