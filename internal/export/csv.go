package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

const (
	AccountMonthFile = "account_month_summary.csv"
	StockFile        = "stock_summary.csv"
	StockDetailFile  = "stock_detail_summary.csv"
	PairFile         = "pair_details.csv"

	timeLayout = "2006-01-02 15:04:05"
)

type accountMonthRow struct {
	Account string `csv:"account_name"`
	Month   string `csv:"month"`
	Profit  string `csv:"monthly_total_profit"`
}

type stockRow struct {
	Account    string `csv:"account_name"`
	Month      string `csv:"month"`
	Instrument string `csv:"stock_code"`
	Profit     string `csv:"stock_total_profit"`
}

type namedStockRow struct {
	Account    string `csv:"account_name"`
	Month      string `csv:"month"`
	Instrument string `csv:"stock_code"`
	Name       string `csv:"stock_name"`
	Profit     string `csv:"stock_total_profit"`
}

type stockDetailRow struct {
	Account    string `csv:"account_name"`
	Month      string `csv:"month"`
	Instrument string `csv:"stock_code"`
	Profit     string `csv:"total_profit"`
	PairCount  string `csv:"trade_pair_count"`
}

type namedStockDetailRow struct {
	Account    string `csv:"account_name"`
	Month      string `csv:"month"`
	Instrument string `csv:"stock_code"`
	Name       string `csv:"stock_name"`
	Profit     string `csv:"total_profit"`
	PairCount  string `csv:"trade_pair_count"`
}

type pairRow struct {
	Account    string `csv:"account_name"`
	Month      string `csv:"month"`
	Instrument string `csv:"stock_code"`
	BuyTime    string `csv:"buy_datetime"`
	SellTime   string `csv:"sell_datetime"`
	Quantity   string `csv:"matched_quantity"`
	BuyCash    string `csv:"buy_moneychg"`
	SellCash   string `csv:"sell_moneychg"`
	Profit     string `csv:"profit"`
}

type namedPairRow struct {
	Account    string `csv:"account_name"`
	Month      string `csv:"month"`
	Instrument string `csv:"stock_code"`
	Name       string `csv:"stock_name"`
	BuyTime    string `csv:"buy_datetime"`
	SellTime   string `csv:"sell_datetime"`
	Quantity   string `csv:"matched_quantity"`
	BuyCash    string `csv:"buy_moneychg"`
	SellCash   string `csv:"sell_moneychg"`
	Profit     string `csv:"profit"`
}

func money(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}

// WriteCSV writes the non-empty report tables into dir and returns the
// paths written. The stock_name column is present only when the report
// was enriched with names.
func WriteCSV(dir string, report *domain.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory: %w", err)
	}

	tables := []struct {
		file  string
		empty bool
		write func(io.Writer) error
	}{
		{AccountMonthFile, len(report.AccountMonths) == 0, func(w io.Writer) error { return WriteAccountMonths(w, report) }},
		{StockFile, len(report.Stocks) == 0, func(w io.Writer) error { return WriteStocks(w, report) }},
		{StockDetailFile, len(report.StockDetails) == 0, func(w io.Writer) error { return WriteStockDetails(w, report) }},
		{PairFile, len(report.Pairs) == 0, func(w io.Writer) error { return WritePairs(w, report) }},
	}

	var written []string
	for _, table := range tables {
		if table.empty {
			continue
		}
		path := filepath.Join(dir, table.file)
		if err := writeFile(path, table.write); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", filepath.Base(path), err)
	}
	return file.Close()
}

func WriteAccountMonths(w io.Writer, report *domain.Report) error {
	rows := make([]*accountMonthRow, 0, len(report.AccountMonths))
	for _, r := range report.AccountMonths {
		rows = append(rows, &accountMonthRow{
			Account: r.Account,
			Month:   r.Month.String(),
			Profit:  money(r.MonthlyTotalProfit),
		})
	}
	return gocsv.Marshal(rows, w)
}

func WriteStocks(w io.Writer, report *domain.Report) error {
	if report.HasNames {
		rows := make([]*namedStockRow, 0, len(report.Stocks))
		for _, r := range report.Stocks {
			rows = append(rows, &namedStockRow{
				Account: r.Account, Month: r.Month.String(), Instrument: r.Instrument,
				Name: r.Name, Profit: money(r.StockTotalProfit),
			})
		}
		return gocsv.Marshal(rows, w)
	}

	rows := make([]*stockRow, 0, len(report.Stocks))
	for _, r := range report.Stocks {
		rows = append(rows, &stockRow{
			Account: r.Account, Month: r.Month.String(), Instrument: r.Instrument,
			Profit: money(r.StockTotalProfit),
		})
	}
	return gocsv.Marshal(rows, w)
}

func WriteStockDetails(w io.Writer, report *domain.Report) error {
	if report.HasNames {
		rows := make([]*namedStockDetailRow, 0, len(report.StockDetails))
		for _, r := range report.StockDetails {
			rows = append(rows, &namedStockDetailRow{
				Account: r.Account, Month: r.Month.String(), Instrument: r.Instrument,
				Name: r.Name, Profit: money(r.TotalProfit), PairCount: fmt.Sprint(r.PairCount),
			})
		}
		return gocsv.Marshal(rows, w)
	}

	rows := make([]*stockDetailRow, 0, len(report.StockDetails))
	for _, r := range report.StockDetails {
		rows = append(rows, &stockDetailRow{
			Account: r.Account, Month: r.Month.String(), Instrument: r.Instrument,
			Profit: money(r.TotalProfit), PairCount: fmt.Sprint(r.PairCount),
		})
	}
	return gocsv.Marshal(rows, w)
}

func WritePairs(w io.Writer, report *domain.Report) error {
	if report.HasNames {
		rows := make([]*namedPairRow, 0, len(report.Pairs))
		for _, p := range report.Pairs {
			rows = append(rows, &namedPairRow{
				Account: p.Account, Month: p.Month.String(), Instrument: p.Instrument, Name: p.Name,
				BuyTime: p.BuyTime.Format(timeLayout), SellTime: p.SellTime.Format(timeLayout),
				Quantity: p.Quantity.String(), BuyCash: money(p.BuyCash), SellCash: money(p.SellCash),
				Profit: money(p.Profit),
			})
		}
		return gocsv.Marshal(rows, w)
	}

	rows := make([]*pairRow, 0, len(report.Pairs))
	for _, p := range report.Pairs {
		rows = append(rows, &pairRow{
			Account: p.Account, Month: p.Month.String(), Instrument: p.Instrument,
			BuyTime: p.BuyTime.Format(timeLayout), SellTime: p.SellTime.Format(timeLayout),
			Quantity: p.Quantity.String(), BuyCash: money(p.BuyCash), SellCash: money(p.SellCash),
			Profit: money(p.Profit),
		})
	}
	return gocsv.Marshal(rows, w)
}
