package grid

import (
	"sort"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

// Group partitions trades by (account, instrument, month). Trades keep their
// input order inside a group; groups are sorted by key.
func Group(trades []domain.Trade) []domain.TradeGroup {
	index := make(map[domain.GroupKey]int)
	var groups []domain.TradeGroup

	for _, t := range trades {
		key := domain.GroupKey{
			Account:    t.Account,
			Instrument: t.Instrument,
			Month:      t.Month(),
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, domain.TradeGroup{Key: key})
		}
		groups[i].Trades = append(groups[i].Trades, t)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key.Less(groups[j].Key)
	})

	return groups
}
