package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

const ruleWidth = 150

// WritePairText renders the matched pair rows as an aligned plain-text
// table, the way the CLI prints them.
func WritePairText(w io.Writer, report *domain.Report) error {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Matched trade pairs (profit = sell moneychg + buy moneychg)")
	fmt.Fprintln(w, rule)

	if len(report.Pairs) == 0 {
		_, err := fmt.Fprintln(w, "No matched pairs.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{"account", "month"}
	if report.HasNames {
		header = append(header, "name")
	}
	header = append(header, "code", "buy time", "sell time", "quantity", "buy moneychg", "sell moneychg", "profit")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, p := range report.Pairs {
		cols := []string{p.Account, p.Month.String()}
		if report.HasNames {
			cols = append(cols, p.Name)
		}
		cols = append(cols,
			p.Instrument,
			p.BuyTime.Format(timeLayout),
			p.SellTime.Format(timeLayout),
			p.Quantity.String(),
			money(p.BuyCash),
			money(p.SellCash),
			money(p.Profit),
		)
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}

	return tw.Flush()
}

// WriteSummaryText prints the account-month and stock tables.
func WriteSummaryText(w io.Writer, report *domain.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "account\tmonth\tmonthly profit")
	for _, r := range report.AccountMonths {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Account, r.Month, money(r.MonthlyTotalProfit))
	}
	fmt.Fprintln(tw)

	if report.HasNames {
		fmt.Fprintln(tw, "account\tmonth\tcode\tname\tprofit\tpairs")
	} else {
		fmt.Fprintln(tw, "account\tmonth\tcode\tprofit\tpairs")
	}
	for _, r := range report.StockDetails {
		if report.HasNames {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", r.Account, r.Month, r.Instrument, r.Name, money(r.TotalProfit), r.PairCount)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.Account, r.Month, r.Instrument, money(r.TotalProfit), r.PairCount)
		}
	}

	return tw.Flush()
}
