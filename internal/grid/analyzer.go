package grid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
	"github.com/jeovahfialho/grid-analyzer/pkg/metrics"
)

// Analyzer runs the Normalize -> Group -> Match -> Aggregate pipeline.
type Analyzer struct {
	normalizer *Normalizer
	workers    int
}

func NewAnalyzer(normalizer *Normalizer, workers int) *Analyzer {
	if normalizer == nil {
		normalizer = NewNormalizer(time.UTC)
	}
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{
		normalizer: normalizer,
		workers:    workers,
	}
}

// Run analyzes raw broker entries. It never fails: problems are reported as
// lines in log and the affected tables are left empty.
func (a *Analyzer) Run(raw []domain.RawTrade, names map[string]string, log *RunLog) *domain.Report {
	report := newReport()

	defer func() {
		if r := recover(); r != nil {
			log.Addf("unexpected error during analysis: %v", r)
			*report = *newReport()
		}
		report.Logs = log.Entries()
	}()

	if len(raw) == 0 {
		log.Add("no trade records found")
		return report
	}

	log.Addf("parsed %d raw record(s)", len(raw))
	log.Add("preprocessing trade data...")

	timer := metrics.NewTimer()
	trades := a.normalizer.Normalize(raw, log)
	timer.ObserveDuration(metrics.StageDuration.WithLabelValues("normalize"))

	if len(trades) == 0 {
		log.Add("no valid trade records after preprocessing")
		return report
	}

	log.Addf("%d valid trade record(s) after preprocessing", len(trades))

	a.analyze(trades, names, log, report)
	return report
}

// RunTrades analyzes trades that were normalized earlier, e.g. read back from
// storage. Seq must reflect the original input order.
func (a *Analyzer) RunTrades(trades []domain.Trade, names map[string]string, log *RunLog) *domain.Report {
	report := newReport()

	defer func() {
		if r := recover(); r != nil {
			log.Addf("unexpected error during analysis: %v", r)
			*report = *newReport()
		}
		report.Logs = log.Entries()
	}()

	if len(trades) == 0 {
		log.Add("no trade records found")
		return report
	}

	log.Addf("loaded %d stored trade record(s)", len(trades))
	a.analyze(trades, names, log, report)
	return report
}

func (a *Analyzer) analyze(trades []domain.Trade, names map[string]string, log *RunLog, report *domain.Report) {
	log.Add("matching trades and computing profit...")

	timer := metrics.NewTimer()
	groups := Group(trades)
	results, err := a.matchAll(groups)
	timer.ObserveDuration(metrics.StageDuration.WithLabelValues("match"))
	if err != nil {
		log.Addf("unexpected error during matching: %v", err)
		return
	}

	pairs := 0
	for _, r := range results {
		pairs += len(r.Pairs)
	}
	metrics.GroupsMatched.Add(float64(len(results)))
	metrics.PairsMatched.Add(float64(pairs))

	log.Addf("matching complete: %d group(s), %d matched pair(s)", len(results), pairs)

	if len(names) > 0 {
		log.Add("adding instrument names...")
	}

	timer = metrics.NewTimer()
	tables := Aggregate(results, names)
	timer.ObserveDuration(metrics.StageDuration.WithLabelValues("aggregate"))

	if tables.HasNames {
		log.Add("instrument names added")
	}

	report.Groups = tables.Groups
	report.AccountMonths = tables.AccountMonths
	report.Stocks = tables.Stocks
	report.StockDetails = tables.StockDetails
	report.Pairs = tables.Pairs
	report.HasNames = tables.HasNames

	log.Logger().Debug("analysis finished",
		zap.String("run_id", report.RunID),
		zap.Int("groups", len(results)),
		zap.Int("pairs", pairs))
}

// matchAll matches every group on a bounded pool. Each result lands at its
// group's index so the output order does not depend on scheduling.
func (a *Analyzer) matchAll(groups []domain.TradeGroup) ([]domain.GroupResult, error) {
	results := make([]domain.GroupResult, len(groups))

	var g errgroup.Group
	g.SetLimit(a.workers)

	for i := range groups {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("group %s/%s/%s: %v",
						groups[i].Key.Account, groups[i].Key.Instrument, groups[i].Key.Month, r)
				}
			}()
			results[i] = Match(groups[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func newReport() *domain.Report {
	return &domain.Report{
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		AccountMonths: []domain.AccountMonthSummary{},
		Stocks:        []domain.StockSummary{},
		StockDetails:  []domain.StockDetailSummary{},
		Pairs:         []domain.PairDetail{},
		Groups:        []domain.GroupSummary{},
	}
}
