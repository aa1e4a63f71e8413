package grid

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

// lot is a buy fill with the quantity not yet consumed by sells.
type lot struct {
	trade     domain.Trade
	remaining decimal.Decimal
}

// Match pairs every sell of the group with the most recent earlier buys that
// still have quantity left. Sell quantity that finds no eligible buy is left
// unmatched.
//
// Among buys with the same timestamp the one that came later in the input is
// considered more recent.
func Match(group domain.TradeGroup) domain.GroupResult {
	var buys []lot
	var sells []domain.Trade

	for _, t := range group.Trades {
		switch t.Side {
		case domain.SideBuy:
			buys = append(buys, lot{trade: t, remaining: t.Quantity})
		case domain.SideSell:
			sells = append(sells, t)
		}
	}

	sort.SliceStable(buys, func(i, j int) bool {
		return chronological(buys[i].trade, buys[j].trade)
	})
	sort.SliceStable(sells, func(i, j int) bool {
		return chronological(sells[i], sells[j])
	})

	result := domain.GroupResult{
		Key:         group.Key,
		TotalProfit: decimal.Zero,
	}

	for _, sell := range sells {
		demand := sell.Quantity

		// buys[:eligible] are strictly earlier than the sell.
		eligible := sort.Search(len(buys), func(i int) bool {
			return !buys[i].trade.Time.Before(sell.Time)
		})

		for i := eligible - 1; i >= 0 && demand.IsPositive(); i-- {
			buy := &buys[i]
			if !buy.remaining.IsPositive() {
				continue
			}

			matched := decimal.Min(demand, buy.remaining)
			buyCash := buy.trade.CashFlow.Mul(matched).Div(buy.trade.Quantity)
			sellCash := sell.CashFlow.Mul(matched).Div(sell.Quantity)
			profit := sellCash.Add(buyCash)

			result.Pairs = append(result.Pairs, domain.MatchedPair{
				Account:    group.Key.Account,
				Instrument: group.Key.Instrument,
				Month:      group.Key.Month,
				BuyTime:    buy.trade.Time,
				SellTime:   sell.Time,
				Quantity:   matched,
				BuyCash:    buyCash,
				SellCash:   sellCash,
				Profit:     profit,
			})
			result.TotalProfit = result.TotalProfit.Add(profit)

			buy.remaining = buy.remaining.Sub(matched)
			demand = demand.Sub(matched)
		}
	}

	return result
}

func chronological(a, b domain.Trade) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.Seq < b.Seq
}
